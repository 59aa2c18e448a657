package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/catalog"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	return log.NewEntry(logger)
}

func TestInitRuntimeDependenciesMemory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := initRuntimeDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("initRuntimeDependencies: %v", err)
	}
	defer deps.close(testLogger())

	if deps.repo == nil || deps.outboxRepo == nil || deps.historyRepo == nil || deps.idempotencyRepo == nil {
		t.Fatal("expected all in-memory repositories to be initialized")
	}
	if deps.store != nil {
		t.Fatal("memory driver must not open a postgres store")
	}
	if _, ok := deps.validator.(*catalog.MockValidator); !ok {
		t.Fatalf("expected mock catalog without ORDERS_CATALOG_URL, got %T", deps.validator)
	}
}

func TestInitRuntimeDependenciesCatalogClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatalogURL = "http://catalog:8080"

	deps, err := initRuntimeDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("initRuntimeDependencies: %v", err)
	}
	defer deps.close(testLogger())

	if _, ok := deps.validator.(*catalog.Client); !ok {
		t.Fatalf("expected catalog client, got %T", deps.validator)
	}
}

func TestInitRuntimeDependenciesPostgresRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = ""

	if _, err := initRuntimeDependencies(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for postgres driver without DSN")
	}
}

func TestInitRuntimeDependenciesUnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriver("cassandra")

	if _, err := initRuntimeDependencies(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}
