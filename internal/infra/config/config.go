package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"America/Phoenix"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	SiteURL     string `envconfig:"SITE_URL" default:"http://127.0.0.1:8080"`
	SeasonStart string `envconfig:"SEASON_START" default:"2024-09-04"`
	TasksFile   string `envconfig:"TASKS_FILE"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	OpenAI struct {
		APIKey       string        `envconfig:"OPENAI_API_KEY"`
		BaseURL      string        `envconfig:"OPENAI_BASE_URL"`
		Model        string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		ArticleModel string        `envconfig:"OPENAI_ARTICLE_MODEL" default:"gpt-4o"`
		Timeout      time.Duration `envconfig:"OPENAI_TIMEOUT" default:"120s"`
	} `envconfig:""`

	Sleeper struct {
		BaseURL string  `envconfig:"SLEEPER_BASE_URL" default:"https://api.sleeper.app/v1"`
		RPS     float64 `envconfig:"SLEEPER_RPS" default:"10"`
	} `envconfig:""`

	SMTP struct {
		Host     string `envconfig:"SMTP_HOST" default:"smtp.sendgrid.net"`
		Port     int    `envconfig:"SMTP_PORT" default:"587"`
		Username string `envconfig:"SMTP_USERNAME" default:"apikey"`
		Password string `envconfig:"SMTP_PASSWORD"`
		From     string `envconfig:"MAIL_FROM" default:"Sports Writer <sportswriter@lol.com>"`
	} `envconfig:""`

	S3 struct {
		Endpoint  string `envconfig:"S3_ENDPOINT"`
		AccessKey string `envconfig:"S3_ACCESS_KEY"`
		SecretKey string `envconfig:"S3_SECRET_KEY"`
		Bucket    string `envconfig:"S3_BUCKET"`
		Region    string `envconfig:"S3_REGION"`
		PublicURL string `envconfig:"S3_PUBLIC_URL"`
		UseSSL    bool   `envconfig:"S3_USE_SSL" default:"true"`
	} `envconfig:""`

	LocalMediaDir string `envconfig:"LOCAL_MEDIA_DIR" default:"media"`
}

// Load загружает конфиг из окружения. В dev сначала подхватывается .env, если он есть.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// SeasonStartDate разбирает SEASON_START в формате YYYY-MM-DD.
func (c AppConfig) SeasonStartDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", c.SeasonStart, loc)
}
