package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"leaguelingo/internal/domain"
	openai "leaguelingo/internal/infra/openai"
)

type fakeChat struct {
	resp openai.ChatCompletionResponse
	err  error
	last openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	return f.resp, f.err
}

func toolResponse(args string) openai.ChatCompletionResponse {
	call := openai.ToolCall{ID: "call_1", Type: openai.ToolTypeFunction}
	call.Function.Name = articleFunction
	call.Function.Arguments = args
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatMessage{Role: "assistant", ToolCalls: []openai.ToolCall{call}},
	}}}
}

func TestGenerateArticleFromToolCall(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"title":"Week 3 Recap","content":"Chaos reigned."}`)}
	gen := NewOpenAI(chat, "mini", "big", 0)

	article, err := gen.GenerateArticle(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if article.Title != "Week 3 Recap" || article.Content != "Chaos reigned." {
		t.Fatalf("unexpected article: %+v", article)
	}
	if chat.last.Model != "big" || chat.last.ToolChoice == nil || chat.last.ToolChoice.Function.Name != articleFunction {
		t.Fatalf("запрос построен неверно: %+v", chat.last)
	}
	if len(chat.last.Messages) != 2 || chat.last.Messages[0].Role != openai.RoleSystem {
		t.Fatalf("ожидали системное и пользовательское сообщения: %+v", chat.last.Messages)
	}
}

func TestGenerateArticleStripsControlCharacters(t *testing.T) {
	chat := &fakeChat{resp: toolResponse("{\"title\":\"Waiver\tWatch\",\"content\":\"Pick up\nthis guy\"}")}
	gen := NewOpenAI(chat, "", "", 0)

	article, err := gen.GenerateArticle(context.Background(), "", "user")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if article.Title != "WaiverWatch" || article.Content != "Pick upthis guy" {
		t.Fatalf("unexpected article: %+v", article)
	}
}

func TestGenerateArticleMalformed(t *testing.T) {
	chat := &fakeChat{resp: toolResponse(`{"title": `)}
	gen := NewOpenAI(chat, "", "", 0)

	_, err := gen.GenerateArticle(context.Background(), "", "user")
	if domain.KindOf(err) != domain.KindMalformedOutput {
		t.Fatalf("ожидали malformed_output, получили %v", err)
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	chat := &fakeChat{err: errors.New("boom")}
	gen := NewOpenAI(chat, "", "", 0)

	_, err := gen.Generate(context.Background(), "", "user")
	if domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("ожидали upstream_unavailable, получили %v", err)
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: "  "}}}}}
	gen := NewOpenAI(chat, "", "", 0)

	if _, err := gen.Generate(context.Background(), "", "user"); domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("ожидали upstream_unavailable, получили %v", err)
	}
}

func TestStubGenerateArticle(t *testing.T) {
	article, err := NewStub().GenerateArticle(context.Background(), "", "\nWeek 1 Overview\nbody")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if article.Title != "Week 1 Overview" {
		t.Fatalf("unexpected title %q", article.Title)
	}
}

func TestStubTruncatesTitleOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 130)
	article, err := NewStub().GenerateArticle(context.Background(), "", long)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !utf8.ValidString(article.Title) {
		t.Fatalf("заголовок разрезан посреди символа: %q", article.Title)
	}
	if got := utf8.RuneCountInString(article.Title); got != maxStubTitle+1 {
		t.Fatalf("ожидали %d символов, получили %d", maxStubTitle+1, got)
	}
}
