package domain

// Product — read-only представление товара из внешнего каталога.
// Ядро заказов ничего из него не персистит, кроме снимка цены в OrderItem.
type Product struct {
	ID string
	// Name используется только для обогащения ответов и не сохраняется.
	Name string
	// PriceMinor — актуальная цена каталога в минимальных денежных единицах.
	PriceMinor int64
}

// ProductIndex строит индекс товаров по идентификатору.
func ProductIndex(products []Product) map[string]Product {
	index := make(map[string]Product, len(products))
	for _, product := range products {
		index[product.ID] = product
	}
	return index
}

// DistinctProductIDs возвращает уникальные идентификаторы товаров,
// сохраняя порядок первого вхождения.
func DistinctProductIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
