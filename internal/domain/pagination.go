package domain

const (
	defaultPage    = 1
	defaultPerPage = 10
)

// PageRequest описывает запрошенное окно пагинации.
type PageRequest struct {
	// Page — номер страницы, начиная с 1.
	Page int
	// PerPage — размер страницы.
	PerPage int
}

// Normalize подставляет значения по умолчанию вместо некорректных.
// Страница за пределами выборки не ограничивается: такая страница
// возвращает пустые данные с валидной метой.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = defaultPage
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	return p
}

// Offset возвращает смещение для 1-индексированной страницы.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageMeta описывает метаданные страничной выборки.
type PageMeta struct {
	Total    int64
	Page     int
	LastPage int
}

// NewPageMeta вычисляет мету страницы: last_page = ceil(total/per_page).
func NewPageMeta(total int64, page, perPage int) PageMeta {
	lastPage := 0
	if perPage > 0 {
		lastPage = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return PageMeta{
		Total:    total,
		Page:     page,
		LastPage: lastPage,
	}
}
