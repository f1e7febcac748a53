package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"leaguelingo/internal/app"
	"leaguelingo/internal/infra/config"
	"leaguelingo/internal/infra/log"
	"leaguelingo/internal/infra/metrics"
	"leaguelingo/internal/usecase/pipeline"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv).With().Str("service", "scheduler").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: инициализация")
	}
	defer a.Close()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	var refreshedOn string
	for {
		// Раз в сутки обновляем лиги: статус in_season приходит из Sleeper.
		if today := time.Now().In(a.Location).Format("2006-01-02"); today != refreshedOn {
			n, err := a.Leagues.RefreshAll(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("scheduler: обновление лиг")
			} else {
				refreshedOn = today
				logger.Info().Int("leagues", n).Msg("scheduler: лиги обновлены")
			}
		}

		summary, err := a.Runner.RunScheduled(ctx)
		switch {
		case errors.Is(err, pipeline.ErrNoCurrentWeek):
			logger.Error().Err(err).Msg("scheduler: текущая неделя неизвестна, запуск пропущен")
		case err != nil:
			logger.Error().Err(err).Msg("scheduler: ошибка запуска")
		case len(summary.Leagues) > 0:
			logger.Info().Str("run_id", summary.RunID).Int("leagues", len(summary.Leagues)).Int("failed_tasks", summary.FailedTasks()).Msg("scheduler: запуск завершён")
		}
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
		}
	}
}
