package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
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

	CatalogURL string

	KafkaBrokers string
	OutboxTopic  string
	DLQTopic     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval time.Duration
}

// DefaultConfig возвращает базовые настройки: HTTP API на :8080,
// метрики на :9090, in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                   ":8080",
		MetricsAddr:                ":9090",
		StorageDriver:              StorageDriverMemory,
		PostgresAutoMigrate:        true,
		OutboxTopic:                kafka.TopicOrderEvents,
		DLQTopic:                   kafka.TopicDeadLetterQueue,
		OutboxPollInterval:         time.Second,
		OutboxBatchSize:            100,
		OutboxMaxAttempts:          3,
		OutboxRetryDelay:           50 * time.Millisecond,
		IdempotencyCleanupInterval: 10 * time.Minute,
	}
}

// LoadConfig собирает конфигурацию из переменных окружения поверх дефолтов.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = getenv("ORDERS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = getenv("ORDERS_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = getenv("ORDERS_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.CatalogURL = getenv("ORDERS_CATALOG_URL", cfg.CatalogURL)
	cfg.KafkaBrokers = getenv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.OutboxTopic = getenv("ORDERS_OUTBOX_TOPIC", cfg.OutboxTopic)
	cfg.DLQTopic = getenv("ORDERS_DLQ_TOPIC", cfg.DLQTopic)

	switch StorageDriver(strings.ToLower(getenv("ORDERS_STORAGE_DRIVER", ""))) {
	case StorageDriverPostgres:
		cfg.StorageDriver = StorageDriverPostgres
	case StorageDriverMemory:
		cfg.StorageDriver = StorageDriverMemory
	default:
		// Без явного выбора postgres включается наличием DSN.
		if cfg.PostgresDSN != "" {
			cfg.StorageDriver = StorageDriverPostgres
		}
	}

	if raw := getenv("ORDERS_POSTGRES_AUTO_MIGRATE", ""); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.PostgresAutoMigrate = value
		}
	}
	if raw := getenv("ORDERS_OUTBOX_POLL_INTERVAL", ""); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil && value > 0 {
			cfg.OutboxPollInterval = value
		}
	}
	if raw := getenv("ORDERS_OUTBOX_BATCH_SIZE", ""); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.OutboxBatchSize = value
		}
	}
	if raw := getenv("ORDERS_OUTBOX_MAX_ATTEMPTS", ""); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.OutboxMaxAttempts = value
		}
	}
	if raw := getenv("ORDERS_OUTBOX_RETRY_DELAY", ""); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil && value > 0 {
			cfg.OutboxRetryDelay = value
		}
	}
	if raw := getenv("ORDERS_IDEMPOTENCY_CLEANUP_INTERVAL", ""); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil && value > 0 {
			cfg.IdempotencyCleanupInterval = value
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
