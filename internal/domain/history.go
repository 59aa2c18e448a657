package domain

import "time"

// StatusChange описывает одну смену статуса в истории заказа.
// Для события создания заказа поле From пустое.
type StatusChange struct {
	OrderID  string
	From     OrderStatus
	To       OrderStatus
	Occurred time.Time
}
