package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
)

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPConfig описывает SMTP-релей.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP отправляет письма через SMTP с обязательным STARTTLS.
type SMTP struct {
	client sender
	from   string
}

var _ domain.Mailer = (*SMTP)(nil)

// NewSMTP создаёт отправителя.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return &SMTP{client: client, from: cfg.From}, nil
}

// Send отправляет одно письмо. Пустой From заменяется адресом по умолчанию.
func (s *SMTP) Send(ctx context.Context, email domain.Email) error {
	if email.From == "" {
		email.From = s.from
	}
	msg, err := buildMessage(email)
	if err != nil {
		return domain.E(domain.KindDeliveryFailed, "mailer.build", err)
	}
	start := time.Now()
	err = s.client.DialAndSendWithContext(ctx, msg)
	metrics.ObserveNetworkRequest("smtp", "send", domainOf(email.To), start, err)
	if err != nil {
		return domain.E(domain.KindDeliveryFailed, "mailer.send", err)
	}
	return nil
}

func buildMessage(email domain.Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	msg.Subject(email.Subject)
	switch {
	case email.Text != "" && email.HTML != "":
		msg.SetBodyString(mail.TypeTextPlain, email.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	case email.HTML != "":
		msg.SetBodyString(mail.TypeTextHTML, email.HTML)
	default:
		msg.SetBodyString(mail.TypeTextPlain, email.Text)
	}
	return msg, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return strings.ToLower(addr[i+1:])
	}
	return "unknown"
}

// Log пишет письма в лог вместо отправки. Для dev без SMTP.
type Log struct {
	log zerolog.Logger
}

var _ domain.Mailer = Log{}

// NewLog создаёт отправитель-заглушку.
func NewLog(logger zerolog.Logger) Log {
	return Log{log: logger}
}

// Send логирует письмо.
func (l Log) Send(_ context.Context, email domain.Email) error {
	l.log.Info().Str("to", email.To).Str("subject", email.Subject).Int("html_bytes", len(email.HTML)).Msg("письмо не отправлено: SMTP не настроен")
	return nil
}
