package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/catalog"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
	"github.com/vladislavdragonenkov/orders/internal/storage/postgres"
)

// runtimeDependencies содержит хранилище и внешние клиенты приложения.
type runtimeDependencies struct {
	repo            domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	historyRepo     domain.StatusHistoryRepository
	idempotencyRepo domain.IdempotencyRepository
	validator       domain.ProductValidator
	store           *postgres.Store
}

// initRuntimeDependencies собирает зависимости под выбранный драйвер хранилища.
// Без ORDERS_CATALOG_URL сервис работает с mock-каталогом: это режим для
// разработки и демо, в production URL обязателен.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.store = store
		deps.repo = postgres.NewOrderRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.historyRepo = postgres.NewStatusHistoryRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		logger.Info("postgres storage initialized")
	case StorageDriverMemory, "":
		deps.repo = memory.NewOrderRepository()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.historyRepo = memory.NewStatusHistoryRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("in-memory storage initialized")
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}

	if cfg.CatalogURL != "" {
		deps.validator = catalog.NewClient(cfg.CatalogURL, nil, logger.WithField("component", "catalog-client"))
		logger.WithField("catalog_url", cfg.CatalogURL).Info("catalog client initialized")
	} else {
		deps.validator = catalog.NewMockValidator()
		logger.Warn("ORDERS_CATALOG_URL is empty, using mock catalog")
	}

	return deps, nil
}

// close освобождает ресурсы хранилища.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres store")
	}
}
