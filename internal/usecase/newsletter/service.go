package newsletter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
)

// Dispatcher собирает выпуск из статей недели, сохраняет PDF и рассылает письма.
type Dispatcher struct {
	articles    domain.ArticleRepo
	newsletters domain.NewsletterRepo
	recipients  domain.RecipientRepo
	renderer    domain.DocumentRenderer
	store       domain.ObjectStore
	mailer      domain.Mailer
	formatter   *Formatter
	siteURL     string
	from        string
	log         zerolog.Logger
}

var _ domain.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher создаёт сервис рассылки.
func NewDispatcher(articles domain.ArticleRepo, newsletters domain.NewsletterRepo, recipients domain.RecipientRepo, renderer domain.DocumentRenderer, store domain.ObjectStore, mailer domain.Mailer, siteURL, from string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		articles:    articles,
		newsletters: newsletters,
		recipients:  recipients,
		renderer:    renderer,
		store:       store,
		mailer:      mailer,
		formatter:   NewFormatter(),
		siteURL:     strings.TrimRight(siteURL, "/"),
		from:        from,
		log:         logger.With().Str("component", "newsletter").Logger(),
	}
}

// DocumentPath возвращает ключ PDF выпуска в хранилище.
func DocumentPath(leagueID int64, week int) string {
	return fmt.Sprintf("newsletters/league_%d_week_%d.pdf", leagueID, week)
}

// UnsubscribeURL возвращает персональную ссылку отписки.
func UnsubscribeURL(siteURL string, recipientID int64) string {
	return fmt.Sprintf("%s/unsubscribe/%d", strings.TrimRight(siteURL, "/"), recipientID)
}

// ConfirmURL возвращает ссылку подтверждения подписки.
func ConfirmURL(siteURL string, recipientID int64) string {
	return fmt.Sprintf("%s/confirm/%d", strings.TrimRight(siteURL, "/"), recipientID)
}

// Sections отбирает статьи, которые попадают в выпуск, сохраняя порядок.
func Sections(articles []domain.Article) []domain.Article {
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if domain.IsNewsletterSection(a.Label) {
			out = append(out, a)
		}
	}
	return out
}

// Dispatch собирает и рассылает выпуск лиги за неделю.
// Пустая неделя не ошибка. Ошибки отдельных писем считаются в Failed и не возвращаются.
func (d *Dispatcher) Dispatch(ctx context.Context, league domain.League, week int) (domain.DispatchResult, error) {
	logger := d.log.With().Int64("league_id", league.ID).Int("week", week).Logger()

	all, err := d.articles.ListArticles(ctx, league.ID, week)
	if err != nil {
		metrics.ObserveDispatch("error")
		return domain.DispatchResult{}, fmt.Errorf("статьи выпуска: %w", err)
	}
	sections := Sections(all)
	if len(sections) == 0 {
		logger.Info().Msg("нет статей для выпуска")
		metrics.ObserveDispatch("empty")
		return domain.DispatchResult{}, nil
	}

	doc := domain.NewsletterDocument{LeagueName: league.Name, Week: week, Articles: sections}
	pdf, err := d.renderer.Render(doc)
	if err != nil {
		metrics.ObserveDispatch("error")
		return domain.DispatchResult{}, domain.E(domain.KindInternal, "newsletter.render", err)
	}
	location, err := d.store.Save(ctx, DocumentPath(league.ID, week), pdf)
	if err != nil {
		metrics.ObserveDispatch("error")
		return domain.DispatchResult{}, err
	}
	documentURL := d.store.URL(location)

	ids := make([]int64, 0, len(sections))
	for _, a := range sections {
		ids = append(ids, a.ID)
	}
	saved, err := d.newsletters.UpsertNewsletter(ctx, domain.Newsletter{
		LeagueID:     league.ID,
		Week:         week,
		DocumentPath: location,
		DocumentURL:  documentURL,
		ArticleIDs:   ids,
	})
	if err != nil {
		metrics.ObserveDispatch("error")
		return domain.DispatchResult{}, fmt.Errorf("сохранение выпуска: %w", err)
	}

	result := domain.DispatchResult{NewsletterID: saved.ID, Articles: len(sections), DocumentURL: documentURL}

	recipients, err := d.recipients.ListRecipients(ctx, league.ID)
	if err != nil {
		metrics.ObserveDispatch("error")
		return result, fmt.Errorf("подписчики: %w", err)
	}
	for _, r := range recipients {
		if !r.Deliverable() {
			continue
		}
		err := d.send(ctx, doc, documentURL, r)
		metrics.ObserveEmail("newsletter", err)
		if err != nil {
			result.Failed++
			logger.Error().Err(err).Int64("recipient_id", r.ID).Str("kind", string(domain.KindOf(err))).Msg("письмо не отправлено")
			continue
		}
		result.Sent++
	}

	metrics.ObserveDispatch("sent")
	logger.Info().
		Int64("newsletter_id", saved.ID).
		Int("articles", result.Articles).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Str("document_url", documentURL).
		Msg("выпуск разослан")
	return result, nil
}

func (d *Dispatcher) send(ctx context.Context, doc domain.NewsletterDocument, documentURL string, r domain.Recipient) error {
	htmlBody, textBody, err := d.formatter.Newsletter(doc, documentURL, UnsubscribeURL(d.siteURL, r.ID))
	if err != nil {
		return domain.E(domain.KindInternal, "newsletter.format", err)
	}
	return d.mailer.Send(ctx, domain.Email{
		From:    d.from,
		To:      r.Email,
		Subject: NewsletterSubject(doc.LeagueName),
		HTML:    htmlBody,
		Text:    textBody,
	})
}
