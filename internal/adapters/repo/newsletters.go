package repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
)

// UpsertNewsletter создаёт или обновляет выпуск (league, week) и заменяет связанные статьи в одной транзакции.
func (p *Postgres) UpsertNewsletter(ctx context.Context, n domain.Newsletter) (domain.Newsletter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.Begin(ctx)
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "newsletters", start, err)
	if err != nil {
		return domain.Newsletter{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query, args, err := psql.Insert("newsletters").
		Columns("league_id", "week", "document_path", "document_url").
		Values(n.LeagueID, n.Week, n.DocumentPath, n.DocumentURL).
		Suffix(`ON CONFLICT (league_id, week) DO UPDATE SET
    document_path = EXCLUDED.document_path,
    document_url = EXCLUDED.document_url,
    updated_at = NOW()
RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return domain.Newsletter{}, err
	}
	start = time.Now()
	err = tx.QueryRow(ctx, query, args...).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "newsletter_upsert", "newsletters", start, err)
	if err != nil {
		return domain.Newsletter{}, fmt.Errorf("upsert newsletter: %w", err)
	}

	query, args, err = psql.Delete("newsletter_articles").Where(sq.Eq{"newsletter_id": n.ID}).ToSql()
	if err != nil {
		return domain.Newsletter{}, err
	}
	start = time.Now()
	_, err = tx.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "newsletter_articles_clear", "newsletter_articles", start, err)
	if err != nil {
		return domain.Newsletter{}, fmt.Errorf("clear newsletter articles: %w", err)
	}

	if len(n.ArticleIDs) > 0 {
		insert := psql.Insert("newsletter_articles").Columns("newsletter_id", "article_id")
		for _, id := range n.ArticleIDs {
			insert = insert.Values(n.ID, id)
		}
		query, args, err = insert.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return domain.Newsletter{}, err
		}
		start = time.Now()
		_, err = tx.Exec(ctx, query, args...)
		metrics.ObserveNetworkRequest("postgres", "newsletter_articles_insert", "newsletter_articles", start, err)
		if err != nil {
			return domain.Newsletter{}, fmt.Errorf("link newsletter articles: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Newsletter{}, err
	}
	return n, nil
}

// ListNewsletters возвращает выпуски лиги, свежие недели первыми.
func (p *Postgres) ListNewsletters(ctx context.Context, leagueID int64) ([]domain.Newsletter, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Select(
		"n.id", "n.league_id", "n.week", "n.document_path", "n.document_url",
		"COALESCE(array_agg(na.article_id ORDER BY na.article_id) FILTER (WHERE na.article_id IS NOT NULL), '{}')",
		"n.created_at", "n.updated_at",
	).
		From("newsletters n").
		LeftJoin("newsletter_articles na ON na.newsletter_id = n.id").
		Where(sq.Eq{"n.league_id": leagueID}).
		GroupBy("n.id").
		OrderBy("n.week DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "newsletter_list", "newsletters", start, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Newsletter
	for rows.Next() {
		var n domain.Newsletter
		if err := rows.Scan(&n.ID, &n.LeagueID, &n.Week, &n.DocumentPath, &n.DocumentURL, &n.ArticleIDs, &n.CreatedAt, &n.UpdatedAt); err != nil {
			metrics.ObserveNetworkRequest("postgres", "newsletter_list", "newsletters", start, err)
			return nil, err
		}
		out = append(out, n)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "newsletter_list", "newsletters", start, err)
	return out, err
}
