package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"leaguelingo/internal/adapters/generator"
	"leaguelingo/internal/adapters/mailer"
	"leaguelingo/internal/adapters/render"
	"leaguelingo/internal/adapters/repo"
	"leaguelingo/internal/adapters/sleeper"
	"leaguelingo/internal/adapters/storage"
	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/cache"
	"leaguelingo/internal/infra/config"
	"leaguelingo/internal/infra/db"
	"leaguelingo/internal/infra/openai"
	"leaguelingo/internal/usecase/content"
	"leaguelingo/internal/usecase/leagues"
	"leaguelingo/internal/usecase/newsletter"
	"leaguelingo/internal/usecase/pipeline"
	"leaguelingo/internal/usecase/schedule"
	"leaguelingo/internal/usecase/subscription"
)

// App собирает зависимости, общие для всех бинарников.
type App struct {
	Config        config.AppConfig
	Log           zerolog.Logger
	Location      *time.Location
	Repo          *repo.Postgres
	Source        *sleeper.Client
	Tasks         map[string]domain.Task
	Registry      *pipeline.Registry
	Dispatcher    *newsletter.Dispatcher
	Runner        *pipeline.Runner
	Leagues       *leagues.Service
	Schedules     *schedule.Service
	Subscriptions *subscription.Service
	// MediaDir заполнен, если документы сохраняются локально.
	MediaDir string

	pool  *pgxpool.Pool
	redis *redis.Client
}

// New подключается к БД и внешним сервисам.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	loc, err := schedule.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", cfg.TZ, err)
	}

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("нет подключения к БД: %w", err)
	}
	a := &App{Config: cfg, Log: logger, Location: loc, pool: pool}
	a.Repo = repo.NewPostgres(pool)

	var c domain.Cache
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		c = cache.NewRedis(a.redis, "leaguelingo:")
	} else {
		mem, err := cache.NewMemory(64)
		if err != nil {
			a.Close()
			return nil, err
		}
		c = mem
	}
	a.Source = sleeper.NewClient(cfg.Sleeper.BaseURL, cfg.Sleeper.RPS, sleeper.WithCache(c))

	var gen domain.Generator
	if cfg.OpenAI.APIKey != "" {
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		gen = generator.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.ArticleModel, cfg.OpenAI.Timeout)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY не задан, используется заглушка генератора")
		gen = generator.NewStub()
	}

	var store domain.ObjectStore
	if cfg.S3.Endpoint != "" {
		s3, err := storage.NewS3(storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			PublicURL: cfg.S3.PublicURL,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		store = s3
	} else {
		local := storage.NewLocal(cfg.LocalMediaDir, cfg.SiteURL)
		a.MediaDir = local.Dir()
		store = local
	}

	var mail domain.Mailer
	if cfg.SMTP.Password != "" {
		smtp, err := mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		mail = smtp
	} else {
		mail = mailer.NewLog(logger.With().Str("component", "mailer").Logger())
	}

	a.Tasks = content.Tasks(content.Deps{
		Source:    a.Source,
		Generator: gen,
		Articles:  a.Repo,
		Log:       logger.With().Str("component", "content").Logger(),
	})
	a.Registry, err = pipeline.Load(cfg.TasksFile, a.Tasks)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dispatcher = newsletter.NewDispatcher(a.Repo, a.Repo, a.Repo, render.NewPDF(), store, mail, cfg.SiteURL, cfg.SMTP.From, logger)
	a.Runner = pipeline.NewRunner(a.Source, a.Repo, a.Registry, a.Dispatcher, schedule.NewEvaluator(loc), logger.With().Str("component", "pipeline").Logger())
	a.Leagues = leagues.NewService(a.Source, a.Repo, logger)
	a.Schedules = schedule.NewService(a.Repo)
	a.Subscriptions = subscription.NewService(a.Repo, a.Repo, mail, cfg.SiteURL, cfg.SMTP.From, logger)
	return a, nil
}

// CurrentWeek спрашивает неделю у Sleeper, а при ошибке считает её от SEASON_START.
func (a *App) CurrentWeek(ctx context.Context) (int, error) {
	week, err := a.Source.FetchCurrentWeek(ctx)
	if err == nil && week > 0 {
		return week, nil
	}
	a.Log.Warn().Err(err).Int("week", week).Msg("неделя из Sleeper недоступна, считаем от SEASON_START")
	start, perr := a.Config.SeasonStartDate(a.Location)
	if perr != nil {
		return 0, fmt.Errorf("SEASON_START: %w", perr)
	}
	return WeekSince(start, time.Now().In(a.Location)), nil
}

// WeekSince возвращает номер недели сезона, начиная с 1.
func WeekSince(start, now time.Time) int {
	if now.Before(start) {
		return 1
	}
	return int(now.Sub(start)/(7*24*time.Hour)) + 1
}

// Close освобождает соединения.
func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// Plan читает план задач без подключения к внешним сервисам.
func Plan(tasksFile string) (*pipeline.Registry, error) {
	return pipeline.Load(tasksFile, content.Tasks(content.Deps{}))
}
