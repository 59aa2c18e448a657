// Package orders реализует жизненный цикл заказа: создание, выборки и
// машину состояний статусов.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
	"github.com/vladislavdragonenkov/orders/internal/pricing"
)

const aggregateTypeOrder = "order"

// Service — менеджер жизненного цикла заказов.
// Все внешние коллабораторы передаются явно через конструктор.
type Service struct {
	repo      domain.OrderRepository
	validator domain.ProductValidator
	outbox    domain.OutboxRepository
	history   domain.StatusHistoryRepository
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
}

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Outbox  domain.OutboxRepository
	History domain.StatusHistoryRepository
	Metrics *metrics.OrderMetrics
	Logger  *log.Entry
}

// NewService конструирует сервис заказов.
// Outbox, история и метрики опциональны: без них ядро работает, но не
// публикует события и не ведёт аудит.
func NewService(repo domain.OrderRepository, validator domain.ProductValidator, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "orders-service")
	}
	return &Service{
		repo:      repo,
		validator: validator,
		outbox:    opts.Outbox,
		history:   opts.History,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// CreateOrderRequest — запрос на создание заказа.
type CreateOrderRequest struct {
	Items []pricing.RequestedItem
}

// ListOrdersQuery — параметры страничной выборки заказов.
type ListOrdersQuery struct {
	Status *domain.OrderStatus
	Page   domain.PageRequest
}

// OrderPage — страница заказов с метаданными пагинации.
type OrderPage struct {
	Data []domain.Order
	Meta domain.PageMeta
}

// Create выполняет полный цикл создания заказа:
// валидация товаров в каталоге -> расчёт итогов -> атомарная запись ->
// обогащение ответа названиями товаров.
// Любой сбой валидации или каталога — единая клиентская ошибка; при сбое
// персистенции ни заказ, ни позиции не сохраняются.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	started := time.Now()

	if len(req.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return domain.Order{}, domain.ErrItemProductRequired
		}
		if item.Qty <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.validator.ValidateProducts(ctx, domain.DistinctProductIDs(ids))
	if err != nil {
		s.metrics.ValidationFailed()
		s.logger.WithError(err).Warn("product validation failed")
		return domain.Order{}, validationError(err)
	}

	quote, err := pricing.ComputeTotals(req.Items, products)
	if err != nil {
		// Отсутствие товара после успешной валидации — гонка данных между
		// валидацией и расчётом; для вызывающей стороны это та же ошибка валидации.
		s.metrics.ValidationFailed()
		s.logger.WithError(err).Warn("pricing rejected validated items")
		return domain.Order{}, validationError(err)
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(quote.Items))
	for _, item := range quote.Items {
		item.ID = uuid.NewString()
		item.CreatedAt = now
		items = append(items, item)
	}

	order := domain.Order{
		ID:               uuid.NewString(),
		TotalAmountMinor: quote.TotalAmountMinor,
		TotalItems:       quote.TotalItems,
		Status:           domain.OrderStatusPending,
		Items:            items,
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order invariants violated: %s", joinErrors(errs))
	}

	if err := s.repo.CreateWithItems(ctx, order); err != nil {
		s.logger.WithError(err).Error("failed to persist order")
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	s.appendHistory(domain.StatusChange{
		OrderID:  order.ID,
		To:       order.Status,
		Occurred: order.CreatedAt,
	})
	s.enqueueEvent(kafka.EventTypeOrderCreated, order)
	s.metrics.OrderCreated(time.Since(started))

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"total_minor": order.TotalAmountMinor,
		"total_items": order.TotalItems,
	}).Info("order created")

	return order, nil
}

// FindAll возвращает страницу заказов без позиций и без обогащения:
// списочное представление — сводка, лишний RPC в каталог тут не нужен.
func (s *Service) FindAll(ctx context.Context, query ListOrdersQuery) (OrderPage, error) {
	page := query.Page.Normalize()

	orders, total, err := s.repo.FindPage(ctx, domain.OrderFilter{
		Status:  query.Status,
		Page:    page.Page,
		PerPage: page.PerPage,
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to list orders")
		return OrderPage{}, fmt.Errorf("list orders: %w", err)
	}

	return OrderPage{
		Data: orders,
		Meta: domain.NewPageMeta(total, page.Page, page.PerPage),
	}, nil
}

// FindOne загружает заказ и обогащает каждую позицию названием товара
// одним батчевым запросом в каталог.
func (s *Service) FindOne(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.metrics.OrderNotFound()
			return domain.Order{}, domain.ErrOrderNotFound
		}
		s.logger.WithError(err).WithField("order_id", id).Error("failed to load order")
		return domain.Order{}, fmt.Errorf("load order: %w", err)
	}

	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.validator.ValidateProducts(ctx, domain.DistinctProductIDs(ids))
	if err != nil {
		s.logger.WithError(err).WithField("order_id", id).Warn("failed to enrich order items")
		return domain.Order{}, validationError(err)
	}

	attachNames(&order, domain.ProductIndex(products))
	return order, nil
}

// ChangeStatus применяет переход машины состояний.
// Запрос того же статуса — идемпотентный no-op без обращения к мутирующему
// пути репозитория. Оба исхода возвращают обогащённый заказ одной формы.
func (s *Service) ChangeStatus(ctx context.Context, id string, next domain.OrderStatus) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, domain.ErrUnknownStatus
	}

	order, err := s.FindOne(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	if order.Status == next {
		return order, nil
	}

	if !domain.CanTransition(order.Status, next) {
		s.metrics.TransitionDenied()
		return domain.Order{}, fmt.Errorf("%s -> %s: %w", order.Status, next, domain.ErrInvalidTransition)
	}

	names := make(map[string]string, len(order.Items))
	for _, item := range order.Items {
		names[item.ProductID] = item.ProductName
	}

	updated, err := s.repo.ChangeStatus(ctx, id, order.Version, next)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": id,
			"status":   next,
		}).Error("failed to change order status")
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			return domain.Order{}, domain.ErrOrderNotFound
		case errors.Is(err, domain.ErrOrderVersionConflict):
			return domain.Order{}, domain.ErrOrderVersionConflict
		default:
			return domain.Order{}, fmt.Errorf("change order status: %w", err)
		}
	}

	// Названия уже получены при загрузке — повторный RPC в каталог не нужен.
	for i := range updated.Items {
		updated.Items[i].ProductName = names[updated.Items[i].ProductID]
	}

	s.appendHistory(domain.StatusChange{
		OrderID:  updated.ID,
		From:     order.Status,
		To:       next,
		Occurred: updated.UpdatedAt,
	})
	s.enqueueEvent(kafka.EventTypeOrderStatusChanged, updated)
	s.metrics.StatusTransition(string(next))

	s.logger.WithFields(log.Fields{
		"order_id": updated.ID,
		"from":     order.Status,
		"to":       next,
	}).Info("order status changed")

	return updated, nil
}

// History возвращает историю смен статуса заказа.
func (s *Service) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	if s.history == nil {
		return nil, nil
	}

	// Проверяем существование заказа, чтобы отличать пустую историю от 404.
	if _, err := s.repo.Get(ctx, id); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.metrics.OrderNotFound()
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	changes, err := s.history.List(id)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return changes, nil
}

func (s *Service) enqueueEvent(eventType kafka.EventType, order domain.Order) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, string(order.Status), order.TotalAmountMinor, order.TotalItems, nil)
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to encode outbox payload")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Warn("failed to enqueue outbox event")
	}
}

func (s *Service) appendHistory(change domain.StatusChange) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(change); err != nil {
		s.logger.WithError(err).WithField("order_id", change.OrderID).Warn("failed to append status history")
	}
}

func attachNames(order *domain.Order, index map[string]domain.Product) {
	for i := range order.Items {
		if product, ok := index[order.Items[i].ProductID]; ok {
			order.Items[i].ProductName = product.Name
		}
	}
}

// validationError приводит любую ошибку каталога/расчёта к единому классу.
func validationError(err error) error {
	if errors.Is(err, domain.ErrProductValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrProductValidation, err)
}

func joinErrors(errs []error) string {
	builder := strings.Builder{}
	for i, err := range errs {
		builder.WriteString(err.Error())
		if i < len(errs)-1 {
			builder.WriteString("; ")
		}
	}
	return builder.String()
}
