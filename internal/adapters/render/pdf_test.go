package render

import (
	"bytes"
	"testing"

	"leaguelingo/internal/domain"
)

func TestRenderProducesPDF(t *testing.T) {
	doc := domain.NewsletterDocument{
		LeagueName: "Dynasty Bros",
		Week:       3,
		Articles: []domain.Article{
			{Title: "Week 3 Matchup Previews", Content: "# Game 1\n**Team A** vs Team B\n\n---\n\nGame 2"},
			{Title: "Waiver Watch", Content: "Pick up the backup RB. Café-level takes only."},
		},
	}
	out, err := NewPDF().Render(doc)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("ожидали PDF, получили %q", out[:min(len(out), 16)])
	}
}

func TestRenderEmptyDocument(t *testing.T) {
	out, err := NewPDF().Render(domain.NewsletterDocument{LeagueName: "L", Week: 1})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("ожидали непустой документ")
	}
}

func TestRenderAllMarkdownBlocks(t *testing.T) {
	content := "## Trade Grades\nThe _bold_ move was **trading** the *QB*.\n\n- first\n  - nested\n- second\n\n```\nA+ / C-\n```\n\n---\n\n<b>raw</b> tail"
	doc := domain.NewsletterDocument{LeagueName: "L", Week: 9, Articles: []domain.Article{{Title: "Trades", Content: content}}}
	out, err := NewPDF().Render(doc)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("ожидали PDF")
	}
}
