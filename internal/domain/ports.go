package domain

import (
	"context"
	"time"
)

// ProductValidator описывает контракт внешнего каталога товаров.
type ProductValidator interface {
	// ValidateProducts отправляет батч идентификаторов (возможно с дублями)
	// и возвращает ровно множество найденных товаров. Отсутствие любого id,
	// сбой транспорта или отказ каталога — единая ошибка без частичного результата.
	ValidateProducts(ctx context.Context, ids []string) ([]Product, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// StatusHistoryRepository хранит историю смен статуса заказа.
type StatusHistoryRepository interface {
	Append(change StatusChange) error
	List(orderID string) ([]StatusChange, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
