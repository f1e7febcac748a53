package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leaguelingo/internal/domain"
	openai "leaguelingo/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const articleFunction = "write_article"

var articleSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "Headline of the article"},
    "content": {"type": "string", "description": "Body of the article in Markdown"}
  },
  "required": ["title", "content"]
}`)

// OpenAI реализует domain.Generator через Chat Completions.
type OpenAI struct {
	client       chatClient
	model        string
	articleModel string
	timeout      time.Duration
}

var _ domain.Generator = (*OpenAI)(nil)

// NewOpenAI создаёт генератор. articleModel используется для статей со структурированным ответом.
func NewOpenAI(client chatClient, model, articleModel string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if articleModel == "" {
		articleModel = model
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAI{client: client, model: model, articleModel: articleModel, timeout: timeout}
}

// Generate возвращает свободный текст.
func (g *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.8,
		Messages:    messages(systemPrompt, userPrompt),
	})
	if err != nil {
		return "", domain.E(domain.KindUpstreamUnavailable, "generator.generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.E(domain.KindUpstreamUnavailable, "generator.generate", errors.New("пустой ответ"))
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", domain.E(domain.KindUpstreamUnavailable, "generator.generate", errors.New("пустой ответ"))
	}
	return content, nil
}

// GenerateArticle просит модель вызвать функцию write_article и разбирает аргументы.
func (g *OpenAI) GenerateArticle(ctx context.Context, systemPrompt, userPrompt string) (domain.GeneratedArticle, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.articleModel,
		Messages: messages(systemPrompt, userPrompt),
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        articleFunction,
				Description: "Publish a newsletter article with a title and body",
				Parameters:  articleSchema,
			},
		}},
		ToolChoice: openai.ForceFunction(articleFunction),
	})
	if err != nil {
		return domain.GeneratedArticle{}, domain.E(domain.KindUpstreamUnavailable, "generator.article", err)
	}
	if len(resp.Choices) == 0 {
		return domain.GeneratedArticle{}, domain.E(domain.KindUpstreamUnavailable, "generator.article", errors.New("пустой ответ"))
	}

	msg := resp.Choices[0].Message
	raw := msg.Content
	for _, call := range msg.ToolCalls {
		if call.Function.Name == articleFunction {
			raw = call.Function.Arguments
			break
		}
	}
	article, err := ParseArticle(raw)
	if err != nil {
		return domain.GeneratedArticle{}, domain.E(domain.KindMalformedOutput, "generator.article", err)
	}
	return article, nil
}

// ParseArticle разбирает JSON {"title","content"}. При ошибке повторяет попытку,
// выбросив управляющие символы, которые модели иногда вставляют в строки.
func ParseArticle(raw string) (domain.GeneratedArticle, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.GeneratedArticle{}, errors.New("пустые аргументы")
	}
	var payload struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		if err2 := json.Unmarshal([]byte(StripControl(raw)), &payload); err2 != nil {
			return domain.GeneratedArticle{}, fmt.Errorf("распаковка ответа LLM: %w", err)
		}
	}
	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if title == "" && content == "" {
		return domain.GeneratedArticle{}, errors.New("в ответе нет заголовка и текста")
	}
	return domain.GeneratedArticle{Title: title, Content: content}, nil
}

// StripControl удаляет символы с кодом меньше 32.
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, s)
}

func messages(systemPrompt, userPrompt string) []openai.ChatMessage {
	out := make([]openai.ChatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, openai.ChatMessage{Role: openai.RoleSystem, Content: systemPrompt})
	}
	return append(out, openai.ChatMessage{Role: openai.RoleUser, Content: userPrompt})
}
