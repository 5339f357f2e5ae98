package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		ReviewChat int64  `envconfig:"TG_REVIEW_CHAT_ID"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL string `envconfig:"AMQP_URL"`

	Retention struct {
		Record          time.Duration `envconfig:"RECORD_TTL" default:"168h"`
		Appeal          time.Duration `envconfig:"APPEAL_TTL" default:"720h"`
		DuplicateWindow time.Duration `envconfig:"DUPLICATE_WINDOW" default:"10m"`
	} `envconfig:""`

	Limits struct {
		DuplicateCacheSize int     `envconfig:"DUPLICATE_CACHE_SIZE" default:"4096"`
		SpamFrequency      float64 `envconfig:"SPAM_FREQUENCY_PER_MIN" default:"10"`
	} `envconfig:""`

	Moderation struct {
		TrustedUserIDs []int64       `envconfig:"TRUSTED_USER_IDS"`
		MuteDuration   time.Duration `envconfig:"MUTE_DURATION" default:"24h"`
	} `envconfig:""`

	Queues struct {
		Review string `envconfig:"REVIEW_QUEUE_KEY" default:"review_jobs"`
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
