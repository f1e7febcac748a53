package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
)

// querier покрывает и *pgxpool.Pool, и pgxmock в тестах.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres реализует репозитории на основе pgx.
type Postgres struct {
	pool querier
}

var (
	_ domain.LeagueRepo     = (*Postgres)(nil)
	_ domain.ArticleRepo    = (*Postgres)(nil)
	_ domain.NewsletterRepo = (*Postgres)(nil)
	_ domain.RecipientRepo  = (*Postgres)(nil)
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool querier) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

var leagueColumns = []string{
	"id", "sleeper_league_id", "name", "status", "season",
	"num_teams", "playoff_teams", "playoff_week_start", "waiver_budget", "trade_deadline",
	"roster_positions", "latest_winner_roster_id", "custom_system_prompt",
	"scheduled_day", "scheduled_time::text", "last_run_time", "schedule_updated_at",
	"created_at", "updated_at",
}

func scanLeague(row pgx.Row) (domain.League, error) {
	var (
		l         domain.League
		day       *int16
		timeOfDay *string
	)
	err := row.Scan(
		&l.ID, &l.SleeperLeagueID, &l.Name, &l.Status, &l.Season,
		&l.NumTeams, &l.PlayoffTeams, &l.PlayoffWeekStart, &l.WaiverBudget, &l.TradeDeadline,
		&l.RosterPositions, &l.LatestWinnerRosterID, &l.CustomSystemPrompt,
		&day, &timeOfDay, &l.LastRunTime, &l.ScheduleUpdatedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.League{}, err
	}
	if day != nil {
		wd := time.Weekday(*day)
		l.ScheduledDay = &wd
	}
	if timeOfDay != nil {
		parsed, err := domain.ParseTimeOfDay(*timeOfDay)
		if err != nil {
			return domain.League{}, fmt.Errorf("league %d: %w", l.ID, err)
		}
		l.ScheduledTime = &parsed
	}
	return l, nil
}

// UpsertLeague создаёт лигу или обновляет её настройки по sleeper_league_id.
// Расписание, last_run_time и пользовательский промпт не перезаписываются.
func (p *Postgres) UpsertLeague(ctx context.Context, league domain.League) (domain.League, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	positions := league.RosterPositions
	if positions == nil {
		positions = []string{}
	}
	query, args, err := psql.Insert("leagues").
		Columns("sleeper_league_id", "name", "status", "season", "num_teams", "playoff_teams",
			"playoff_week_start", "waiver_budget", "trade_deadline", "roster_positions",
			"latest_winner_roster_id", "custom_system_prompt").
		Values(league.SleeperLeagueID, league.Name, league.Status, league.Season, league.NumTeams, league.PlayoffTeams,
			league.PlayoffWeekStart, league.WaiverBudget, league.TradeDeadline, positions,
			league.LatestWinnerRosterID, league.CustomSystemPrompt).
		Suffix(`ON CONFLICT (sleeper_league_id) DO UPDATE SET
    name = EXCLUDED.name,
    status = EXCLUDED.status,
    season = EXCLUDED.season,
    num_teams = EXCLUDED.num_teams,
    playoff_teams = EXCLUDED.playoff_teams,
    playoff_week_start = EXCLUDED.playoff_week_start,
    waiver_budget = EXCLUDED.waiver_budget,
    trade_deadline = EXCLUDED.trade_deadline,
    roster_positions = EXCLUDED.roster_positions,
    latest_winner_roster_id = EXCLUDED.latest_winner_roster_id,
    updated_at = NOW()
RETURNING ` + strings.Join(leagueColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.League{}, err
	}

	start := time.Now()
	saved, err := scanLeague(p.pool.QueryRow(ctx, query, args...))
	metrics.ObserveNetworkRequest("postgres", "league_upsert", "leagues", start, err)
	return saved, err
}

// GetLeague возвращает лигу по id.
func (p *Postgres) GetLeague(ctx context.Context, id int64) (domain.League, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Select(leagueColumns...).From("leagues").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.League{}, err
	}
	start := time.Now()
	league, err := scanLeague(p.pool.QueryRow(ctx, query, args...))
	metrics.ObserveNetworkRequest("postgres", "league_get", "leagues", start, err)
	return league, notFound(err)
}

// ListLeaguesByStatus возвращает лиги с указанными статусами в порядке id. Без статусов возвращает все.
func (p *Postgres) ListLeaguesByStatus(ctx context.Context, statuses ...string) ([]domain.League, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	builder := psql.Select(leagueColumns...).From("leagues").OrderBy("id")
	if len(statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", "league_list", "leagues", start, err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.League
	for rows.Next() {
		league, err := scanLeague(rows)
		if err != nil {
			metrics.ObserveNetworkRequest("postgres", "league_list", "leagues", start, err)
			return nil, err
		}
		out = append(out, league)
	}
	err = rows.Err()
	metrics.ObserveNetworkRequest("postgres", "league_list", "leagues", start, err)
	return out, err
}

// MarkRun сдвигает last_run_time вперёд. Более ранний момент не перезаписывает более поздний.
func (p *Postgres) MarkRun(ctx context.Context, leagueID int64, at time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Update("leagues").
		Set("last_run_time", sq.Expr("GREATEST(COALESCE(last_run_time, ?), ?)", at, at)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": leagueID}).
		ToSql()
	if err != nil {
		return err
	}
	start := time.Now()
	tag, err := p.pool.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "league_mark_run", "leagues", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateSchedule задаёт день и время рассылки.
func (p *Postgres) UpdateSchedule(ctx context.Context, leagueID int64, day time.Weekday, at domain.TimeOfDay, updatedAt time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	query, args, err := psql.Update("leagues").
		Set("scheduled_day", int16(day)).
		Set("scheduled_time", sq.Expr("?::time", at.String())).
		Set("schedule_updated_at", updatedAt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": leagueID}).
		ToSql()
	if err != nil {
		return err
	}
	start := time.Now()
	tag, err := p.pool.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "league_update_schedule", "leagues", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
