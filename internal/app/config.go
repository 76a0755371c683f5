package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/stanislavgolubev/rbs/internal/service/booking"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SeatingBuffer — половина окна занятости брони [t-Δ, t+Δ].
	SeatingBuffer time.Duration

	RateLimitPerMinute int64

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SeatingBuffer:       booking.DefaultSeatingBuffer,
		RateLimitPerMinute:  120,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
	}
}

// LoadConfig собирает конфигурацию из окружения поверх значений по
// умолчанию. Файл .env подхватывается, если существует; переменные
// окружения имеют приоритет над ним.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.HTTPAddr = envString("RBS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("RBS_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = envString("RBS_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.KafkaBrokers = envString("RBS_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.RedisAddr = envString("RBS_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString("RBS_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("RBS_REDIS_DB", cfg.RedisDB)
	cfg.SeatingBuffer = envDuration("RBS_SEATING_BUFFER", cfg.SeatingBuffer)
	cfg.RateLimitPerMinute = int64(envInt("RBS_RATE_LIMIT_PER_MINUTE", int(cfg.RateLimitPerMinute)))
	cfg.OutboxPollInterval = envDuration("RBS_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("RBS_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("RBS_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)

	if driver := envString("RBS_STORAGE_DRIVER", ""); driver != "" {
		cfg.StorageDriver = StorageDriver(driver)
	} else if cfg.PostgresDSN != "" {
		// Заданный DSN означает намерение работать с Postgres.
		cfg.StorageDriver = StorageDriverPostgres
	}
	if raw := envString("RBS_POSTGRES_AUTO_MIGRATE", ""); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	return cfg
}

func envString(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if value := os.Getenv(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if value := os.Getenv(name); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
