package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/catalog"
	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func newCatalogServer(t *testing.T, products map[string]domain.Product) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/products/validate" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		resp := make([]map[string]any, 0, len(req.IDs))
		for _, id := range req.IDs {
			product, ok := products[id]
			if !ok {
				continue
			}
			resp = append(resp, map[string]any{
				"id":          product.ID,
				"name":        product.Name,
				"price_minor": product.PriceMinor,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientValidateProducts(t *testing.T) {
	server := newCatalogServer(t, map[string]domain.Product{
		"prod-a": {ID: "prod-a", Name: "Keyboard", PriceMinor: 500},
		"prod-b": {ID: "prod-b", Name: "Mouse", PriceMinor: 300},
	})
	defer server.Close()

	client := catalog.NewClient(server.URL, server.Client(), nil)

	// Дубли в батче допустимы: каталог получает уникальные id.
	products, err := client.ValidateProducts(context.Background(), []string{"prod-a", "prod-b", "prod-a"})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
}

func TestClientValidateProducts_MissingID(t *testing.T) {
	server := newCatalogServer(t, map[string]domain.Product{
		"prod-a": {ID: "prod-a", Name: "Keyboard", PriceMinor: 500},
	})
	defer server.Close()

	client := catalog.NewClient(server.URL, server.Client(), nil)

	_, err := client.ValidateProducts(context.Background(), []string{"prod-a", "prod-x"})
	if !errors.Is(err, domain.ErrProductValidation) {
		t.Fatalf("expected validation error for missing id, got %v", err)
	}
}

func TestClientValidateProducts_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "catalog is down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := catalog.NewClient(server.URL, server.Client(), nil)

	_, err := client.ValidateProducts(context.Background(), []string{"prod-a"})
	if !errors.Is(err, domain.ErrProductValidation) {
		t.Fatalf("expected validation error on 5xx, got %v", err)
	}
}

func TestClientValidateProducts_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := catalog.NewClient(server.URL, server.Client(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ValidateProducts(ctx, []string{"prod-a"}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestClientValidateProducts_EmptyBatch(t *testing.T) {
	client := catalog.NewClient("http://catalog.invalid", nil, nil)
	if _, err := client.ValidateProducts(context.Background(), nil); !errors.Is(err, domain.ErrProductValidation) {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}
}

func TestMockValidator(t *testing.T) {
	mock := catalog.NewMockValidator(
		domain.Product{ID: "prod-a", Name: "Keyboard", PriceMinor: 500},
	)

	products, err := mock.ValidateProducts(context.Background(), []string{"prod-a", "prod-a"})
	if err != nil {
		t.Fatalf("mock validate failed: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}
	if mock.CallCount() != 1 || len(mock.LastRequestedIDs()) != 1 {
		t.Fatalf("expected deduplicated batch recorded, got %v", mock.LastRequestedIDs())
	}

	if _, err := mock.ValidateProducts(context.Background(), []string{"prod-x"}); !errors.Is(err, domain.ErrProductValidation) {
		t.Fatalf("expected validation error for unknown id, got %v", err)
	}
}
