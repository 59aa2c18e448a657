package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата ещё не подтверждена.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusPaid — оплата подтверждена.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён до завершения цикла.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к закрытому набору значений.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// validNext задаёт явный граф переходов между статусами.
// DELIVERED и CANCELLED — терминальные состояния.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:      {OrderStatusDelivered: true, OrderStatusCancelled: true},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// CanTransition сообщает, разрешён ли переход from -> to.
// Переход в тот же статус обрабатывается выше как идемпотентный no-op.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// OrderItem представляет одну позицию заказа.
// Позиции создаются вместе с заказом и после этого не меняются.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — слабая ссылка на товар во внешнем каталоге.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — снимок цены каталога на момент создания заказа,
	// в минимальных денежных единицах. Последующие изменения цены
	// в каталоге на это значение не влияют.
	PriceMinor int64
	// ProductName подтягивается из каталога при чтении и не персистится.
	ProductName string
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID string
	// TotalAmountMinor — производная сумма заказа, вычисляется один раз при создании.
	TotalAmountMinor int64
	// TotalItems — суммарное количество единиц товара по всем позициям.
	TotalItems int32
	Status     OrderStatus
	Items      []OrderItem
	// Version поддерживает optimistic locking при смене статуса.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrUnknownStatus)
	}
	if o.TotalAmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сохранённые итоги с суммами по позициям.
	var calcAmount int64
	var calcItems int32
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calcAmount += int64(item.Qty) * item.PriceMinor
		calcItems += item.Qty
	}
	if calcAmount != o.TotalAmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	if calcItems != o.TotalItems {
		errs = append(errs, ErrTotalItemsMismatch)
	}

	return errs
}
