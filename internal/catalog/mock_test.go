package catalog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/orders/internal/catalog"
	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// MockValidator подключается как боевой валидатор, когда каталог не настроен,
// и обслуживает конкурентные HTTP-запросы.
func TestMockValidator_ConcurrentCalls(t *testing.T) {
	mock := catalog.NewMockValidator(
		domain.Product{ID: "prod-a", Name: "Keyboard", PriceMinor: 500},
	)

	const goroutines = 8
	const callsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				if _, err := mock.ValidateProducts(context.Background(), []string{"prod-a", "prod-a"}); err != nil {
					t.Errorf("validate failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := mock.CallCount(); got != goroutines*callsPerGoroutine {
		t.Fatalf("expected %d calls, got %d", goroutines*callsPerGoroutine, got)
	}
	if batch := mock.LastRequestedIDs(); len(batch) != 1 || batch[0] != "prod-a" {
		t.Fatalf("expected deduplicated batch, got %v", batch)
	}
}
