package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestOrderRepository_PostgresCreateGetAndChangeStatus(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-1", now)

	if err := repo.CreateWithItems(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.ID != order.ID || got.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.TotalAmountMinor != order.TotalAmountMinor || got.TotalItems != order.TotalItems {
		t.Fatalf("unexpected totals: amount=%d items=%d", got.TotalAmountMinor, got.TotalItems)
	}
	if len(got.Items) != len(order.Items) {
		t.Fatalf("unexpected items count: got=%d want=%d", len(got.Items), len(order.Items))
	}

	updated, err := repo.ChangeStatus(ctx, order.ID, got.Version, domain.OrderStatusPaid)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if updated.Status != domain.OrderStatusPaid {
		t.Fatalf("unexpected status after change: %s", updated.Status)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after change: got=%d want=%d", updated.Version, got.Version+1)
	}
	if len(updated.Items) != len(order.Items) {
		t.Fatalf("items must survive status change, got %d", len(updated.Items))
	}
}

func TestOrderRepository_PostgresFindPage(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	for i := 0; i < 5; i++ {
		order := sampleOrder(fmt.Sprintf("order-page-%d", i), now.Add(time.Duration(i)*time.Second))
		if err := repo.CreateWithItems(ctx, order); err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
	}
	if _, err := repo.ChangeStatus(ctx, "order-page-0", 0, domain.OrderStatusPaid); err != nil {
		t.Fatalf("pay first order: %v", err)
	}

	page, total, err := repo.FindPage(ctx, domain.OrderFilter{Page: 1, PerPage: 3})
	if err != nil {
		t.Fatalf("find page: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total=5, got %d", total)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 orders on first page, got %d", len(page))
	}
	if len(page[0].Items) != 0 {
		t.Fatal("page rows must not carry items")
	}
	if page[0].CreatedAt.Before(page[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}

	second, total, err := repo.FindPage(ctx, domain.OrderFilter{Page: 2, PerPage: 3})
	if err != nil {
		t.Fatalf("find second page: %v", err)
	}
	if total != 5 || len(second) != 2 {
		t.Fatalf("unexpected second page: total=%d len=%d", total, len(second))
	}

	paid := domain.OrderStatusPaid
	filtered, total, err := repo.FindPage(ctx, domain.OrderFilter{Status: &paid, Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("find filtered page: %v", err)
	}
	if total != 1 || len(filtered) != 1 || filtered[0].ID != "order-page-0" {
		t.Fatalf("unexpected filtered page: total=%d %+v", total, filtered)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("order-errors", now)

	if _, err := repo.Get(ctx, "missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.ChangeStatus(ctx, "missing-order", 0, domain.OrderStatusPaid); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on change missing, got %v", err)
	}

	if err := repo.CreateWithItems(ctx, base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.CreateWithItems(ctx, base); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on duplicate create, got %v", err)
	}

	if _, err := repo.ChangeStatus(ctx, base.ID, 42, domain.OrderStatusPaid); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on stale version, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleOrder(id string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ID:         id + "-item-1",
			ProductID:  "prod-1",
			Qty:        2,
			PriceMinor: 150,
			CreatedAt:  createdAt,
		},
	}

	return domain.Order{
		ID:               id,
		Status:           domain.OrderStatusPending,
		TotalAmountMinor: 300,
		TotalItems:       2,
		Items:            items,
		Version:          0,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}
