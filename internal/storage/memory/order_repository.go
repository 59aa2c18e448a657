package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// CreateWithItems сохраняет новый заказ вместе с позициями, если ID ещё не занят.
func (r *orderRepositoryInMemory) CreateWithItems(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// FindPage возвращает страницу заказов (без позиций) и общее число записей
// под фильтром. Страница за пределами выборки — пустой срез.
func (r *orderRepositoryInMemory) FindPage(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		summary := cloneOrder(order)
		summary.Items = nil
		matched = append(matched, summary)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))

	offset := (filter.Page - 1) * filter.PerPage
	if offset < 0 || offset >= len(matched) {
		return []domain.Order{}, total, nil
	}

	end := offset + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], total, nil
}

// ChangeStatus применяет новый статус через compare-and-set по версии.
func (r *orderRepositoryInMemory) ChangeStatus(ctx context.Context, id string, version int64, next domain.OrderStatus) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.Version != version {
		return domain.Order{}, domain.ErrOrderVersionConflict
	}

	current.Status = next
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.items[id] = cloneOrder(current)

	return cloneOrder(current), nil
}

// cloneOrder копирует заказ вместе с позициями, чтобы избежать
// непредсказуемых мутаций извне.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	if order.Items != nil {
		clone.Items = make([]domain.OrderItem, len(order.Items))
		copy(clone.Items, order.Items)
	}
	return clone
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
