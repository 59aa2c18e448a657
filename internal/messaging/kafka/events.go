package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "orders.order.events"
	TopicDeadLetterQueue = "orders.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers, которые выставляет dlq-reprocess при повторной публикации
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType        EventType              `json:"event_type"`
	OrderID          string                 `json:"order_id"`
	Status           string                 `json:"status"`
	TotalAmountMinor int64                  `json:"total_amount_minor"`
	TotalItems       int32                  `json:"total_items"`
	Timestamp        time.Time              `json:"timestamp"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, status string, amountMinor int64, totalItems int32, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:        eventType,
		OrderID:          orderID,
		Status:           status,
		TotalAmountMinor: amountMinor,
		TotalItems:       totalItems,
		Timestamp:        time.Now(),
		Metadata:         metadata,
	}
}
