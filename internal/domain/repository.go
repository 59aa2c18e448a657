package domain

import "context"

// OrderFilter описывает параметры выборки страницы заказов.
type OrderFilter struct {
	// Status фильтрует выборку по статусу; nil означает все статусы.
	Status *OrderStatus
	// Page — номер страницы, начиная с 1.
	Page int
	// PerPage — размер страницы.
	PerPage int
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateWithItems атомарно сохраняет заказ вместе с позициями.
	// При любой ошибке не остаётся ни заказа, ни осиротевших позиций.
	CreateWithItems(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// FindPage возвращает страницу заказов (без позиций) и общее число
	// заказов, подходящих под фильтр. Страница за пределами выборки —
	// это пустой срез, а не ошибка.
	FindPage(ctx context.Context, filter OrderFilter) ([]Order, int64, error)
	// ChangeStatus применяет новый статус через compare-and-set по версии
	// и возвращает обновлённый заказ. Возвращает ErrOrderVersionConflict,
	// если заказ параллельно изменился, и ErrOrderNotFound, если его нет.
	ChangeStatus(ctx context.Context, id string, version int64, next OrderStatus) (Order, error)
}
