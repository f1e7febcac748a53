package repo

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
)

var recipientColumns = []string{"id", "league_id", "email", "confirmed", "unsubscribed", "subscribed_at", "last_confirmation_sent"}

func scanRecipient(row pgx.Row) (domain.Recipient, error) {
	var r domain.Recipient
	err := row.Scan(&r.ID, &r.LeagueID, &r.Email, &r.Confirmed, &r.Unsubscribed, &r.SubscribedAt, &r.LastConfirmationSent)
	return r, err
}

// resubscribeSet снимает отписку, а у отписавшегося адреса сбрасывает подтверждение:
// доставка возобновится только после нового подтверждения.
const resubscribeSet = "confirmed = recipients.confirmed AND NOT recipients.unsubscribed, unsubscribed = FALSE"

// CreateRecipient добавляет подписчика. Повторная подписка того же адреса снимает отписку.
func (p *Postgres) CreateRecipient(ctx context.Context, leagueID int64, email string) (domain.Recipient, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Insert("recipients").
		Columns("league_id", "email").
		Values(leagueID, strings.ToLower(strings.TrimSpace(email))).
		Suffix(`ON CONFLICT (league_id, email) DO UPDATE SET ` + resubscribeSet + `
RETURNING ` + strings.Join(recipientColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Recipient{}, err
	}
	start := time.Now()
	r, err := scanRecipient(p.pool.QueryRow(ctx, query, args...))
	metrics.ObserveNetworkRequest("postgres", "recipient_create", "recipients", start, err)
	return r, err
}

// GetRecipient возвращает подписчика по id.
func (p *Postgres) GetRecipient(ctx context.Context, id int64) (domain.Recipient, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Select(recipientColumns...).From("recipients").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Recipient{}, err
	}
	start := time.Now()
	r, err := scanRecipient(p.pool.QueryRow(ctx, query, args...))
	metrics.ObserveNetworkRequest("postgres", "recipient_get", "recipients", start, err)
	return r, notFound(err)
}

// ListRecipients возвращает всех подписчиков лиги. Фильтрация по статусу на стороне вызывающего.
func (p *Postgres) ListRecipients(ctx context.Context, leagueID int64) ([]domain.Recipient, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Select(recipientColumns...).
		From("recipients").
		Where(sq.Eq{"league_id": leagueID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "recipient_list", "recipients", start, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			metrics.ObserveNetworkRequest("postgres", "recipient_list", "recipients", start, err)
			return nil, err
		}
		out = append(out, r)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "recipient_list", "recipients", start, err)
	return out, err
}

// ConfirmRecipient подтверждает подписку.
func (p *Postgres) ConfirmRecipient(ctx context.Context, id int64) error {
	return p.updateRecipient(ctx, "recipient_confirm", id, map[string]any{"confirmed": true})
}

// UnsubscribeRecipient отписывает адрес.
func (p *Postgres) UnsubscribeRecipient(ctx context.Context, id int64) error {
	return p.updateRecipient(ctx, "recipient_unsubscribe", id, map[string]any{"unsubscribed": true})
}

// MarkConfirmationSent запоминает время отправки письма с подтверждением.
func (p *Postgres) MarkConfirmationSent(ctx context.Context, id int64, at time.Time) error {
	return p.updateRecipient(ctx, "recipient_confirmation_sent", id, map[string]any{"last_confirmation_sent": at})
}

func (p *Postgres) updateRecipient(ctx context.Context, operation string, id int64, values map[string]any) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Update("recipients").SetMap(values).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	start := time.Now()
	tag, err := p.pool.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", operation, "recipients", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
