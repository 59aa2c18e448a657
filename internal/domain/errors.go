package domain

import "errors"

var (
	// ErrProductValidation возвращается при любом сбое проверки товаров в каталоге:
	// неизвестный id, транспортная ошибка, таймаут или отмена запроса.
	// Для вызывающей стороны это единый класс клиентской ошибки.
	ErrProductValidation = errors.New("Error validating products")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition сигнализирует о запрещённом переходе статуса.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount_minor must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка несоответствия количества позиций и суммарного qty.
	ErrTotalItemsMismatch = errors.New("order total_items does not match items qty sum")
	// Ошибка статуса вне закрытого набора значений.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки idempotency-подсистемы.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
