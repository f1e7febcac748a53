package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
	"leaguelingo/internal/usecase/newsletter"
)

const (
	// MaxRecipients - предел адресов на одну лигу.
	MaxRecipients = 32
	// ResendInterval - минимальный интервал между письмами подтверждения.
	ResendInterval = 15 * time.Minute
)

var (
	// ErrEmailInvalid возвращается для адресов без локальной части или домена.
	ErrEmailInvalid = errors.New("некорректный email")
	// ErrRecipientLimit возвращается, когда у лиги уже MaxRecipients адресов.
	ErrRecipientLimit = fmt.Errorf("нельзя добавить больше %d адресов", MaxRecipients)
	// ErrResendThrottled возвращается, если подтверждение отправляли меньше ResendInterval назад.
	ErrResendThrottled = errors.New("подтверждение можно отправлять раз в 15 минут")
	// ErrAlreadyConfirmed возвращается при повторной отправке подтверждения подтверждённому адресу.
	ErrAlreadyConfirmed = errors.New("адрес уже подтверждён")
	// ErrUnsubscribed возвращается для отписавшегося адреса: вернуть его можно только новой подпиской.
	ErrUnsubscribed = errors.New("адрес отписан")
)

// Service оформляет подписки на рассылку лиги.
type Service struct {
	leagues    domain.LeagueRepo
	recipients domain.RecipientRepo
	mailer     domain.Mailer
	formatter  *newsletter.Formatter
	siteURL    string
	from       string
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт сервис подписок.
func NewService(leagues domain.LeagueRepo, recipients domain.RecipientRepo, mailer domain.Mailer, siteURL, from string, logger zerolog.Logger) *Service {
	return &Service{
		leagues:    leagues,
		recipients: recipients,
		mailer:     mailer,
		formatter:  newsletter.NewFormatter(),
		siteURL:    siteURL,
		from:       from,
		log:        logger.With().Str("component", "subscription").Logger(),
		now:        time.Now,
	}
}

// Subscribe создаёт подписчика и отправляет письмо подтверждения.
// Если письмо не ушло, подписчик остаётся неподтверждённым и ошибка возвращается.
func (s *Service) Subscribe(ctx context.Context, leagueID int64, email string) (domain.Recipient, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if at := strings.LastIndex(email, "@"); at <= 0 || at == len(email)-1 {
		return domain.Recipient{}, ErrEmailInvalid
	}
	league, err := s.leagues.GetLeague(ctx, leagueID)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("получение лиги: %w", err)
	}
	existing, err := s.recipients.ListRecipients(ctx, league.ID)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("подписчики лиги: %w", err)
	}
	if !contains(existing, email) && len(existing) >= MaxRecipients {
		return domain.Recipient{}, ErrRecipientLimit
	}
	recipient, err := s.recipients.CreateRecipient(ctx, league.ID, email)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("создание подписчика: %w", err)
	}
	if recipient.Confirmed {
		return recipient, nil
	}
	if s.throttled(recipient) {
		s.log.Debug().Int64("recipient_id", recipient.ID).Msg("подтверждение уже отправлено недавно")
		return recipient, nil
	}
	if err := s.sendConfirmation(ctx, league, recipient); err != nil {
		return recipient, err
	}
	return recipient, nil
}

// ResendConfirmation повторно отправляет письмо подтверждения не чаще раза в ResendInterval.
func (s *Service) ResendConfirmation(ctx context.Context, recipientID int64) (domain.Recipient, error) {
	recipient, err := s.recipients.GetRecipient(ctx, recipientID)
	if err != nil {
		return domain.Recipient{}, err
	}
	if recipient.Unsubscribed {
		return recipient, ErrUnsubscribed
	}
	if recipient.Confirmed {
		return recipient, ErrAlreadyConfirmed
	}
	if s.throttled(recipient) {
		return recipient, ErrResendThrottled
	}
	league, err := s.leagues.GetLeague(ctx, recipient.LeagueID)
	if err != nil {
		return recipient, fmt.Errorf("получение лиги: %w", err)
	}
	if err := s.sendConfirmation(ctx, league, recipient); err != nil {
		return recipient, err
	}
	return s.recipients.GetRecipient(ctx, recipientID)
}

// Recipient возвращает подписчика по id.
func (s *Service) Recipient(ctx context.Context, recipientID int64) (domain.Recipient, error) {
	return s.recipients.GetRecipient(ctx, recipientID)
}

func (s *Service) throttled(r domain.Recipient) bool {
	return r.LastConfirmationSent != nil && s.now().Before(r.LastConfirmationSent.Add(ResendInterval))
}

func contains(list []domain.Recipient, email string) bool {
	for _, r := range list {
		if r.Email == email {
			return true
		}
	}
	return false
}

func (s *Service) sendConfirmation(ctx context.Context, league domain.League, r domain.Recipient) error {
	htmlBody, textBody, err := s.formatter.Confirmation(league.Name, newsletter.ConfirmURL(s.siteURL, r.ID))
	if err != nil {
		return domain.E(domain.KindInternal, "subscription.format", err)
	}
	err = s.mailer.Send(ctx, domain.Email{
		From:    s.from,
		To:      r.Email,
		Subject: newsletter.ConfirmationSubject(league.Name),
		HTML:    htmlBody,
		Text:    textBody,
	})
	metrics.ObserveEmail("confirmation", err)
	if err != nil {
		s.log.Error().Err(err).Int64("recipient_id", r.ID).Msg("письмо подтверждения не отправлено")
		return err
	}
	if err := s.recipients.MarkConfirmationSent(ctx, r.ID, s.now()); err != nil {
		return fmt.Errorf("отметка подтверждения: %w", err)
	}
	return nil
}

// Confirm подтверждает подписку.
func (s *Service) Confirm(ctx context.Context, recipientID int64) (domain.Recipient, error) {
	if err := s.recipients.ConfirmRecipient(ctx, recipientID); err != nil {
		return domain.Recipient{}, err
	}
	s.log.Info().Int64("recipient_id", recipientID).Msg("подписка подтверждена")
	return s.recipients.GetRecipient(ctx, recipientID)
}

// Unsubscribe отписывает получателя. Повторная отписка не ошибка.
func (s *Service) Unsubscribe(ctx context.Context, recipientID int64) (domain.Recipient, error) {
	if err := s.recipients.UnsubscribeRecipient(ctx, recipientID); err != nil {
		return domain.Recipient{}, err
	}
	s.log.Info().Int64("recipient_id", recipientID).Msg("подписчик отписался")
	return s.recipients.GetRecipient(ctx, recipientID)
}
