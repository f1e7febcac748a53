package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
	"leaguelingo/internal/usecase/schedule"
)

// ErrNoCurrentWeek возвращается, когда текущую неделю НФЛ определить не удалось.
var ErrNoCurrentWeek = errors.New("current week is unavailable")

type weekSource interface {
	FetchCurrentWeek(ctx context.Context) (int, error)
}

// TaskResult - итог одной задачи.
type TaskResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// LeagueResult - итог обработки одной лиги.
type LeagueResult struct {
	LeagueID    int64
	Tasks       []TaskResult
	Dispatch    domain.DispatchResult
	DispatchErr error
	Marked      bool
}

// Summary - итог запуска.
type Summary struct {
	RunID     string
	Week      int
	Evaluated int
	Leagues   []LeagueResult
}

// FailedTasks считает упавшие задачи по всем лигам.
func (s Summary) FailedTasks() int {
	n := 0
	for _, l := range s.Leagues {
		for _, t := range l.Tasks {
			if t.Err != nil {
				n++
			}
		}
	}
	return n
}

// Runner выполняет задачи недели для лиг, затем рассылку.
type Runner struct {
	weeks      weekSource
	leagues    domain.LeagueRepo
	registry   *Registry
	dispatcher domain.Dispatcher
	evaluator  schedule.Evaluator
	log        zerolog.Logger
	now        func() time.Time
}

// NewRunner создаёт раннер.
func NewRunner(weeks weekSource, leagues domain.LeagueRepo, registry *Registry, dispatcher domain.Dispatcher, evaluator schedule.Evaluator, logger zerolog.Logger) *Runner {
	return &Runner{
		weeks:      weeks,
		leagues:    leagues,
		registry:   registry,
		dispatcher: dispatcher,
		evaluator:  evaluator,
		log:        logger,
		now:        time.Now,
	}
}

// RunScheduled запускает пайплайн для лиг в сезоне, чьё расписание наступило.
// Ошибку возвращает только если не удалось определить неделю или прочитать лиги.
func (r *Runner) RunScheduled(ctx context.Context) (Summary, error) {
	week, err := r.weeks.FetchCurrentWeek(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrNoCurrentWeek, err)
	}
	if week <= 0 {
		return Summary{}, fmt.Errorf("%w: week %d", ErrNoCurrentWeek, week)
	}
	leagues, err := r.leagues.ListLeaguesByStatus(ctx, domain.LeagueStatusInSeason)
	if err != nil {
		return Summary{}, fmt.Errorf("список лиг: %w", err)
	}

	now := r.now()
	eligible := make([]domain.League, 0, len(leagues))
	for _, league := range leagues {
		ok, reason := r.evaluator.Evaluate(league, now)
		metrics.ObserveEvaluation(ok)
		if !ok {
			ev := r.log.Debug().Int64("league_id", league.ID)
			if reason != nil {
				ev = ev.Str("kind", string(domain.KindOf(reason)))
			}
			ev.Msg("лига пропущена расписанием")
			continue
		}
		eligible = append(eligible, league)
	}

	summary := r.Run(ctx, eligible, week)
	summary.Evaluated = len(leagues)
	return summary, nil
}

// Run выполняет пайплайн для переданных лиг без проверки расписания.
func (r *Runner) Run(ctx context.Context, leagues []domain.League, week int) Summary {
	summary := Summary{RunID: uuid.NewString(), Week: week, Evaluated: len(leagues)}
	logger := r.log.With().Str("run_id", summary.RunID).Int("week", week).Logger()
	logger.Info().Int("leagues", len(leagues)).Msg("запуск пайплайна")

	for _, league := range leagues {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Msg("пайплайн прерван")
			break
		}
		summary.Leagues = append(summary.Leagues, r.runLeague(ctx, logger, league, week))
	}

	logger.Info().Int("leagues", len(summary.Leagues)).Int("failed_tasks", summary.FailedTasks()).Msg("пайплайн завершён")
	return summary
}

func (r *Runner) runLeague(ctx context.Context, logger zerolog.Logger, league domain.League, week int) LeagueResult {
	logger = logger.With().Int64("league_id", league.ID).Str("league", league.Name).Logger()
	result := LeagueResult{LeagueID: league.ID}

	for _, task := range r.registry.ForWeek(week) {
		start := time.Now()
		err := runTask(ctx, task, league, week)
		metrics.ObserveTask(task.Name(), start, err)
		tr := TaskResult{Name: task.Name(), Err: err, Duration: time.Since(start)}
		result.Tasks = append(result.Tasks, tr)
		if err != nil {
			logger.Error().Err(err).Str("task", task.Name()).Str("kind", string(domain.KindOf(err))).Msg("задача завершилась ошибкой")
			continue
		}
		logger.Info().Str("task", task.Name()).Dur("duration", tr.Duration).Msg("задача выполнена")
	}

	dispatch, err := r.dispatcher.Dispatch(ctx, league, week)
	result.Dispatch = dispatch
	if err != nil {
		result.DispatchErr = err
		logger.Error().Err(err).Str("kind", string(domain.KindOf(err))).Msg("рассылка не выполнена, last_run_time не обновлён")
		return result
	}

	if err := r.leagues.MarkRun(ctx, league.ID, r.now()); err != nil {
		logger.Error().Err(err).Msg("не удалось обновить last_run_time")
		return result
	}
	result.Marked = true
	return result
}

// runTask изолирует панику задачи, превращая её в ошибку.
func runTask(ctx context.Context, task domain.Task, league domain.League, week int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.E(domain.KindInternal, "task."+task.Name(), fmt.Errorf("panic: %v\n%s", rec, debug.Stack()))
		}
	}()
	return task.Run(ctx, league, week)
}
