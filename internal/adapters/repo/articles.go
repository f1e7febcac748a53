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

var articleColumns = []string{"id", "league_id", "week", "label", "title", "content", "status", "created_at", "updated_at"}

func scanArticle(row pgx.Row) (domain.Article, error) {
	var a domain.Article
	err := row.Scan(&a.ID, &a.LeagueID, &a.Week, &a.Label, &a.Title, &a.Content, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// UpsertArticle сохраняет статью по ключу (league, week, label).
func (p *Postgres) UpsertArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	status := article.Status
	if status == "" {
		status = domain.ArticleStatusDraft
	}
	query, args, err := psql.Insert("articles").
		Columns("league_id", "week", "label", "title", "content", "status").
		Values(article.LeagueID, article.Week, article.Label, article.Title, article.Content, status).
		Suffix(`ON CONFLICT (league_id, week, label) DO UPDATE SET
    title = EXCLUDED.title,
    content = EXCLUDED.content,
    status = EXCLUDED.status,
    updated_at = NOW()
RETURNING ` + strings.Join(articleColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Article{}, err
	}
	start := time.Now()
	saved, err := scanArticle(p.pool.QueryRow(ctx, query, args...))
	metrics.ObserveNetworkRequest("postgres", "article_upsert", "articles", start, err)
	return saved, err
}

// ListArticles возвращает статьи лиги за неделю в порядке создания.
func (p *Postgres) ListArticles(ctx context.Context, leagueID int64, week int) ([]domain.Article, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"league_id": leagueID, "week": week}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "article_list", "articles", start, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			metrics.ObserveNetworkRequest("postgres", "article_list", "articles", start, err)
			return nil, err
		}
		out = append(out, a)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "article_list", "articles", start, err)
	return out, err
}
