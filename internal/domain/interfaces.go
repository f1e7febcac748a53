package domain

import (
	"context"
	"errors"
	"time"
)

// LeagueSource читает данные лиги из внешнего API.
type LeagueSource interface {
	FetchLeague(ctx context.Context, sleeperLeagueID string) (League, error)
	FetchRosters(ctx context.Context, sleeperLeagueID string) ([]Roster, error)
	FetchUsers(ctx context.Context, sleeperLeagueID string) ([]Team, error)
	FetchMatchups(ctx context.Context, sleeperLeagueID string, week int) ([]Matchup, error)
	FetchTransactions(ctx context.Context, sleeperLeagueID string, week int) ([]Transaction, error)
	FetchPlayers(ctx context.Context) (map[string]Player, error)
	FetchTrending(ctx context.Context, kind TrendingKind, lookbackHours, limit int) ([]TrendingPlayer, error)
	FetchCurrentWeek(ctx context.Context) (int, error)
}

// Generator генерирует тексты через LLM.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateArticle(ctx context.Context, systemPrompt, userPrompt string) (GeneratedArticle, error)
}

// LeagueRepo управляет лигами.
type LeagueRepo interface {
	UpsertLeague(ctx context.Context, league League) (League, error)
	GetLeague(ctx context.Context, id int64) (League, error)
	ListLeaguesByStatus(ctx context.Context, statuses ...string) ([]League, error)
	MarkRun(ctx context.Context, leagueID int64, at time.Time) error
	UpdateSchedule(ctx context.Context, leagueID int64, day time.Weekday, at TimeOfDay, updatedAt time.Time) error
}

// ArticleRepo хранит статьи.
type ArticleRepo interface {
	UpsertArticle(ctx context.Context, article Article) (Article, error)
	ListArticles(ctx context.Context, leagueID int64, week int) ([]Article, error)
}

// NewsletterRepo хранит выпуски.
type NewsletterRepo interface {
	// UpsertNewsletter создаёт или обновляет выпуск (league, week) и заменяет список статей.
	UpsertNewsletter(ctx context.Context, newsletter Newsletter) (Newsletter, error)
	ListNewsletters(ctx context.Context, leagueID int64) ([]Newsletter, error)
}

// RecipientRepo управляет подписчиками.
type RecipientRepo interface {
	CreateRecipient(ctx context.Context, leagueID int64, email string) (Recipient, error)
	GetRecipient(ctx context.Context, id int64) (Recipient, error)
	ListRecipients(ctx context.Context, leagueID int64) ([]Recipient, error)
	ConfirmRecipient(ctx context.Context, id int64) error
	UnsubscribeRecipient(ctx context.Context, id int64) error
	MarkConfirmationSent(ctx context.Context, id int64, at time.Time) error
}

// Email - одно письмо одному получателю.
type Email struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// DocumentRenderer превращает выпуск в PDF.
type DocumentRenderer interface {
	Render(doc NewsletterDocument) ([]byte, error)
}

// ObjectStore сохраняет файлы и выдаёт на них ссылки.
type ObjectStore interface {
	Save(ctx context.Context, path string, data []byte) (string, error)
	URL(location string) string
}

// ErrCacheMiss возвращается кэшем, когда ключа нет.
var ErrCacheMiss = errors.New("cache miss")

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Task - именованная задача генерации контента для лиги и недели.
type Task interface {
	Name() string
	Run(ctx context.Context, league League, week int) error
}

// Dispatcher собирает и рассылает выпуск.
type Dispatcher interface {
	Dispatch(ctx context.Context, league League, week int) (DispatchResult, error)
}
