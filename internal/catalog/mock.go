package catalog

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// MockValidator — конфигурируемая заглушка ProductValidator для тестов и
// dev-режима. Вызовы ValidateProducts безопасны из нескольких горутин;
// Products и Err настраиваются до начала работы.
type MockValidator struct {
	// Products — каталог заглушки, индексированный по id.
	Products map[string]domain.Product
	// Err возвращается вместо результата, если задан.
	Err error

	mu        sync.Mutex
	calls     int
	lastBatch []string
}

// NewMockValidator возвращает mock с заданным набором товаров.
func NewMockValidator(products ...domain.Product) *MockValidator {
	index := make(map[string]domain.Product, len(products))
	for _, product := range products {
		index[product.ID] = product
	}
	return &MockValidator{Products: index}
}

// ValidateProducts резолвит батч по локальной таблице, имитируя контракт
// каталога: любой неизвестный id — ошибка валидации целиком.
func (m *MockValidator) ValidateProducts(_ context.Context, ids []string) ([]domain.Product, error) {
	distinct := domain.DistinctProductIDs(ids)

	m.mu.Lock()
	m.calls++
	m.lastBatch = distinct
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	result := make([]domain.Product, 0, len(distinct))
	for _, id := range distinct {
		product, ok := m.Products[id]
		if !ok {
			return nil, domain.ErrProductValidation
		}
		result = append(result, product)
	}
	return result, nil
}

// CallCount возвращает число выполненных вызовов ValidateProducts.
func (m *MockValidator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequestedIDs возвращает последний запрошенный батч id после дедупликации.
func (m *MockValidator) LastRequestedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lastBatch...)
}

var _ domain.ProductValidator = (*MockValidator)(nil)
