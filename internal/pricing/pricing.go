// Package pricing вычисляет итоги заказа по валидированным товарам каталога.
package pricing

import (
	"fmt"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// RequestedItem — запрошенная позиция заказа до ценообразования.
type RequestedItem struct {
	ProductID string
	Qty       int32
}

// Quote — результат расчёта: позиции со снимками цен и итоговые суммы.
// Деньги считаются в минимальных денежных единицах, без плавающей точки.
type Quote struct {
	Items            []domain.OrderItem
	TotalAmountMinor int64
	TotalItems       int32
}

// ComputeTotals резолвит цену каждой позиции по каталожному снимку и
// считает итоговую сумму и количество. Чистая функция без I/O.
//
// Отсутствие запрошенного товара среди products — нарушение контракта
// валидации (валидация обязана была его отклонить); вызывающая сторона
// преобразует такую ошибку в обычную ошибку валидации, а не в панику.
func ComputeTotals(requested []RequestedItem, products []domain.Product) (Quote, error) {
	if len(requested) == 0 {
		return Quote{}, domain.ErrItemsRequired
	}

	index := domain.ProductIndex(products)

	quote := Quote{Items: make([]domain.OrderItem, 0, len(requested))}
	for _, item := range requested {
		if item.Qty <= 0 {
			return Quote{}, domain.ErrItemQtyInvalid
		}

		product, ok := index[item.ProductID]
		if !ok {
			return Quote{}, fmt.Errorf("product %s missing from validated set: %w", item.ProductID, domain.ErrProductValidation)
		}

		quote.Items = append(quote.Items, domain.OrderItem{
			ProductID:   item.ProductID,
			Qty:         item.Qty,
			PriceMinor:  product.PriceMinor,
			ProductName: product.Name,
		})
		quote.TotalAmountMinor += int64(item.Qty) * product.PriceMinor
		quote.TotalItems += item.Qty
	}

	return quote, nil
}
