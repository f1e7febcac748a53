package generator

import (
	"context"
	"strings"

	"leaguelingo/internal/domain"
)

const maxStubTitle = 120

// Stub имитирует LLM без сетевых вызовов. Используется, когда ключ OpenAI не задан.
type Stub struct{}

var _ domain.Generator = Stub{}

// NewStub создаёт заглушку.
func NewStub() Stub {
	return Stub{}
}

// Generate возвращает первую непустую строку запроса.
func (Stub) Generate(_ context.Context, _, userPrompt string) (string, error) {
	return firstLine(userPrompt, "Stub article"), nil
}

// GenerateArticle возвращает заголовок из первой строки и текст из остальных.
func (Stub) GenerateArticle(_ context.Context, _, userPrompt string) (domain.GeneratedArticle, error) {
	title := firstLine(userPrompt, "Weekly update")
	if runes := []rune(title); len(runes) > maxStubTitle {
		title = string(runes[:maxStubTitle]) + "…"
	}
	return domain.GeneratedArticle{Title: title, Content: strings.TrimSpace(userPrompt)}, nil
}

func firstLine(text, fallback string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
