package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов академии.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token string `envconfig:"TG_BOT_TOKEN"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL string `envconfig:"AMQP_URL"`

	Remote struct {
		Backend string `envconfig:"REMOTE_BACKEND" default:"postgres"`
		GridURL string `envconfig:"GRID_API_URL"`
		GridKey string `envconfig:"GRID_API_TOKEN"`
	} `envconfig:""`

	Sync struct {
		PollInterval  time.Duration `envconfig:"SYNC_POLL_INTERVAL" default:"15s"`
		Debounce      time.Duration `envconfig:"SYNC_DEBOUNCE" default:"2s"`
		Grace         time.Duration `envconfig:"SYNC_GRACE" default:"2s"`
		ToastWindow   time.Duration `envconfig:"SYNC_TOAST_WINDOW" default:"10s"`
		SessionExpiry time.Duration `envconfig:"SYNC_SESSION_EXPIRY" default:"30m"`
	} `envconfig:""`

	Queues struct {
		Broadcast string `envconfig:"BROADCAST_QUEUE_KEY" default:"broadcast_jobs"`
		Changes   string `envconfig:"CHANGES_EXCHANGE" default:"academy.changes"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
