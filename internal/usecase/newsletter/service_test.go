package newsletter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
)

type memArticles struct {
	items []domain.Article
}

func (m *memArticles) UpsertArticle(_ context.Context, a domain.Article) (domain.Article, error) {
	m.items = append(m.items, a)
	return a, nil
}

func (m *memArticles) ListArticles(_ context.Context, leagueID int64, week int) ([]domain.Article, error) {
	var out []domain.Article
	for _, a := range m.items {
		if a.LeagueID == leagueID && a.Week == week {
			out = append(out, a)
		}
	}
	return out, nil
}

type memNewsletters struct {
	rows    map[int]domain.Newsletter
	upserts int
}

func (m *memNewsletters) UpsertNewsletter(_ context.Context, n domain.Newsletter) (domain.Newsletter, error) {
	if m.rows == nil {
		m.rows = map[int]domain.Newsletter{}
	}
	m.upserts++
	if existing, ok := m.rows[n.Week]; ok {
		n.ID = existing.ID
	} else {
		n.ID = int64(len(m.rows) + 1)
	}
	m.rows[n.Week] = n
	return n, nil
}

func (m *memNewsletters) ListNewsletters(context.Context, int64) ([]domain.Newsletter, error) {
	return nil, nil
}

type fakeRecipients struct {
	domain.RecipientRepo
	items []domain.Recipient
}

func (f *fakeRecipients) ListRecipients(context.Context, int64) ([]domain.Recipient, error) {
	return f.items, nil
}

type fakeRenderer struct {
	docs []domain.NewsletterDocument
	err  error
}

func (f *fakeRenderer) Render(doc domain.NewsletterDocument) ([]byte, error) {
	f.docs = append(f.docs, doc)
	return []byte("%PDF-fake"), f.err
}

type fakeStore struct {
	saved map[string][]byte
	err   error
}

func (f *fakeStore) Save(_ context.Context, path string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[path] = data
	return path, nil
}

func (f *fakeStore) URL(location string) string { return "https://cdn.test/" + location }

type fakeMailer struct {
	sent   []domain.Email
	failTo string
}

func (f *fakeMailer) Send(_ context.Context, email domain.Email) error {
	if email.To == f.failTo {
		return domain.E(domain.KindDeliveryFailed, "mailer.send", errors.New("smtp 550"))
	}
	f.sent = append(f.sent, email)
	return nil
}

type fixture struct {
	articles    *memArticles
	newsletters *memNewsletters
	recipients  *fakeRecipients
	renderer    *fakeRenderer
	store       *fakeStore
	mailer      *fakeMailer
	dispatcher  *Dispatcher
}

func newFixture(articles []domain.Article, recipients []domain.Recipient) *fixture {
	f := &fixture{
		articles:    &memArticles{items: articles},
		newsletters: &memNewsletters{},
		recipients:  &fakeRecipients{items: recipients},
		renderer:    &fakeRenderer{},
		store:       &fakeStore{},
		mailer:      &fakeMailer{},
	}
	f.dispatcher = NewDispatcher(f.articles, f.newsletters, f.recipients, f.renderer, f.store, f.mailer, "https://site.test/", "Writer <w@test>", zerolog.Nop())
	return f
}

var league = domain.League{ID: 5, Name: "Dynasty Bros"}

func TestDispatchSkipsMatchupArticles(t *testing.T) {
	f := newFixture([]domain.Article{
		{ID: 1, LeagueID: 5, Week: 3, Label: domain.LabelLeagueOverview, Title: "Welcome", Content: "Hello league"},
		{ID: 2, LeagueID: 5, Week: 3, Label: "matchup_7", Title: "Matchup 7", Content: "raw"},
	}, []domain.Recipient{{ID: 10, Email: "a@test", Confirmed: true}})

	res, err := f.dispatcher.Dispatch(context.Background(), league, 3)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Articles != 1 || res.Sent != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	n := f.newsletters.rows[3]
	if len(n.ArticleIDs) != 1 || n.ArticleIDs[0] != 1 {
		t.Fatalf("ожидали только league_overview, получили %v", n.ArticleIDs)
	}
	if len(f.renderer.docs[0].Articles) != 1 || f.renderer.docs[0].Articles[0].Label != domain.LabelLeagueOverview {
		t.Fatalf("в PDF попали лишние статьи: %+v", f.renderer.docs[0].Articles)
	}
	if _, ok := f.store.saved["newsletters/league_5_week_3.pdf"]; !ok {
		t.Fatalf("PDF не сохранён: %v", f.store.saved)
	}
	if n.DocumentURL != "https://cdn.test/newsletters/league_5_week_3.pdf" {
		t.Fatalf("unexpected url %q", n.DocumentURL)
	}
}

func TestDispatchEmptyWeek(t *testing.T) {
	f := newFixture([]domain.Article{
		{ID: 2, LeagueID: 5, Week: 3, Label: "matchup_recap_1"},
		{ID: 3, LeagueID: 5, Week: 4, Label: domain.LabelWaiverWatch},
	}, []domain.Recipient{{ID: 10, Email: "a@test", Confirmed: true}})

	res, err := f.dispatcher.Dispatch(context.Background(), league, 3)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if f.newsletters.upserts != 0 || len(f.mailer.sent) != 0 || len(f.renderer.docs) != 0 {
		t.Fatalf("пустая неделя не должна ничего создавать")
	}
	if res != (domain.DispatchResult{}) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatchSendsOnlyToDeliverable(t *testing.T) {
	f := newFixture([]domain.Article{
		{ID: 1, LeagueID: 5, Week: 3, Label: domain.LabelWaiverWatch, Title: "Waivers", Content: "**Pick** him up"},
	}, []domain.Recipient{
		{ID: 10, Email: "ok@test", Confirmed: true},
		{ID: 11, Email: "pending@test"},
		{ID: 12, Email: "gone@test", Confirmed: true, Unsubscribed: true},
	})

	res, err := f.dispatcher.Dispatch(context.Background(), league, 3)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Sent != 1 || len(f.mailer.sent) != 1 {
		t.Fatalf("ожидали одно письмо, получили %+v", res)
	}
	email := f.mailer.sent[0]
	if email.To != "ok@test" || email.Subject != "Your Weekly Newsletter - Dynasty Bros" || email.From != "Writer <w@test>" {
		t.Fatalf("unexpected email: %+v", email)
	}
	if !strings.Contains(email.HTML, `href="https://site.test/unsubscribe/10"`) {
		t.Fatalf("нет ссылки отписки: %s", email.HTML)
	}
	if !strings.Contains(email.HTML, "<strong>Pick</strong>") {
		t.Fatalf("markdown не обработан: %s", email.HTML)
	}
	if !strings.Contains(email.Text, "https://cdn.test/newsletters/league_5_week_3.pdf") {
		t.Fatalf("нет ссылки на PDF: %s", email.Text)
	}
}

func TestDispatchContinuesAfterFailedEmail(t *testing.T) {
	f := newFixture([]domain.Article{
		{ID: 1, LeagueID: 5, Week: 3, Label: domain.LabelWaiverWatch, Title: "Waivers", Content: "text"},
	}, []domain.Recipient{
		{ID: 10, Email: "bad@test", Confirmed: true},
		{ID: 11, Email: "good@test", Confirmed: true},
	})
	f.mailer.failTo = "bad@test"

	res, err := f.dispatcher.Dispatch(context.Background(), league, 3)
	if err != nil {
		t.Fatalf("ошибка письма не должна прерывать рассылку: %v", err)
	}
	if res.Sent != 1 || res.Failed != 1 || f.mailer.sent[0].To != "good@test" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatchResendsOnRerun(t *testing.T) {
	f := newFixture([]domain.Article{
		{ID: 1, LeagueID: 5, Week: 3, Label: domain.LabelLeagueOverview, Title: "Welcome", Content: "text"},
	}, []domain.Recipient{{ID: 10, Email: "a@test", Confirmed: true}})

	first, _ := f.dispatcher.Dispatch(context.Background(), league, 3)
	second, err := f.dispatcher.Dispatch(context.Background(), league, 3)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if first.NewsletterID != second.NewsletterID {
		t.Fatalf("повторный запуск должен обновить тот же выпуск")
	}
	if len(f.mailer.sent) != 2 {
		t.Fatalf("ожидали повторную отправку, писем: %d", len(f.mailer.sent))
	}
}

func TestDispatchReturnsStoreError(t *testing.T) {
	f := newFixture([]domain.Article{
		{ID: 1, LeagueID: 5, Week: 3, Label: domain.LabelLeagueOverview, Title: "Welcome", Content: "text"},
	}, []domain.Recipient{{ID: 10, Email: "a@test", Confirmed: true}})
	f.store.err = domain.E(domain.KindDeliveryFailed, "storage.save", errors.New("bucket missing"))

	_, err := f.dispatcher.Dispatch(context.Background(), league, 3)
	if domain.KindOf(err) != domain.KindDeliveryFailed {
		t.Fatalf("ожидали delivery_failed, получили %v", err)
	}
	if f.newsletters.upserts != 0 || len(f.mailer.sent) != 0 {
		t.Fatalf("при ошибке хранилища выпуск не сохраняется")
	}
}

func TestFormatterSanitizesContent(t *testing.T) {
	html, text, err := NewFormatter().Newsletter(domain.NewsletterDocument{
		LeagueName: "L",
		Week:       2,
		Articles:   []domain.Article{{Title: "T", Content: "# Head\n<script>alert(1)</script>\n\n---\nend"}},
	}, "", "https://site.test/unsubscribe/1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("скрипт не вырезан: %s", html)
	}
	if !strings.Contains(html, "<h3>Head</h3>") || !strings.Contains(html, "<hr>") {
		t.Fatalf("разметка не обработана: %s", html)
	}
	if strings.Contains(text, "# Head") {
		t.Fatalf("заголовок остался в тексте: %s", text)
	}
}
