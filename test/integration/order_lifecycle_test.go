package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orders/internal/catalog"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/httpx"
	ordersvc "github.com/vladislavdragonenkov/orders/internal/service/orders"
	outboxsvc "github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

// capturePublisher собирает опубликованные outbox-сообщения вместо Kafka.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *capturePublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) published() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OutboxMessage(nil), p.events...)
}

// OrderLifecycleTestSuite гоняет полный жизненный цикл заказа через HTTP API:
// создание с идемпотентностью, переходы статусов, историю и публикацию
// событий из outbox.
type OrderLifecycleTestSuite struct {
	suite.Suite
	server    *httptest.Server
	outbox    domain.OutboxRepository
	worker    *outboxsvc.Worker
	publisher *capturePublisher
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	validator := catalog.NewMockValidator(
		domain.Product{ID: "laptop-pro", Name: "Laptop Pro", PriceMinor: 199900},
		domain.Product{ID: "mouse-wireless", Name: "Wireless Mouse", PriceMinor: 4999},
	)

	suite.outbox = memory.NewOutboxRepository()
	svc := ordersvc.NewService(memory.NewOrderRepository(), validator, ordersvc.Options{
		Outbox:  suite.outbox,
		History: memory.NewStatusHistoryRepository(),
		Logger:  logger,
	})

	suite.publisher = &capturePublisher{}
	suite.worker = outboxsvc.NewWorker(
		suite.outbox,
		suite.publisher,
		outboxsvc.WithLogger(logger),
		outboxsvc.WithMaxAttempts(1),
	)

	router := httpx.NewRouter()
	handler := httpx.NewOrdersHandler(svc, memory.NewIdempotencyRepository(), logger)
	handler.Register(router)

	suite.server = httptest.NewServer(router)
}

func (suite *OrderLifecycleTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	// 1. Создаём заказ
	order := suite.createOrder("")
	require.Equal(suite.T(), "PENDING", order["status"])
	require.Equal(suite.T(), float64(209898), order["total_amount_minor"]) // 199900 + 2*4999
	require.Equal(suite.T(), float64(3), order["total_items"])

	orderID := order["id"].(string)

	// 2. Оплачиваем и доставляем
	paid := suite.changeStatus(orderID, "PAID", http.StatusOK)
	require.Equal(suite.T(), "PAID", paid["status"])

	delivered := suite.changeStatus(orderID, "DELIVERED", http.StatusOK)
	require.Equal(suite.T(), "DELIVERED", delivered["status"])

	// 3. Проверяем финальное состояние через API
	final := suite.getOrder(orderID)
	require.Equal(suite.T(), "DELIVERED", final["status"])
	require.Equal(suite.T(), float64(2), final["version"])

	// 4. История: создание и два перехода
	history := suite.getHistory(orderID)
	require.Len(suite.T(), history, 3)
	require.Nil(suite.T(), history[0]["from"])
	require.Equal(suite.T(), "PENDING", history[0]["to"])
	require.Equal(suite.T(), "PAID", history[1]["to"])
	require.Equal(suite.T(), "DELIVERED", history[2]["to"])

	// 5. Outbox worker публикует все события
	suite.worker.ProcessOnce(context.Background())

	events := suite.publisher.published()
	require.Len(suite.T(), events, 3)
	require.Equal(suite.T(), "order.created", events[0].EventType)
	require.Equal(suite.T(), "order.status_changed", events[1].EventType)
	require.Equal(suite.T(), "order.status_changed", events[2].EventType)
	for _, event := range events {
		require.Equal(suite.T(), orderID, event.AggregateID)
	}

	stats, err := suite.outbox.Stats()
	require.NoError(suite.T(), err)
	require.Zero(suite.T(), stats.PendingCount)
}

func (suite *OrderLifecycleTestSuite) TestOrderCancellation() {
	order := suite.createOrder("")
	orderID := order["id"].(string)

	suite.changeStatus(orderID, "PAID", http.StatusOK)
	cancelled := suite.changeStatus(orderID, "CANCELLED", http.StatusOK)
	require.Equal(suite.T(), "CANCELLED", cancelled["status"])

	history := suite.getHistory(orderID)
	require.Equal(suite.T(), "CANCELLED", history[len(history)-1]["to"])
}

func (suite *OrderLifecycleTestSuite) TestInvalidTransitionRejected() {
	order := suite.createOrder("")
	orderID := order["id"].(string)

	// PENDING -> DELIVERED запрещён
	suite.changeStatus(orderID, "DELIVERED", http.StatusUnprocessableEntity)

	// Терминальный статус не меняется
	suite.changeStatus(orderID, "CANCELLED", http.StatusOK)
	suite.changeStatus(orderID, "PAID", http.StatusUnprocessableEntity)

	final := suite.getOrder(orderID)
	require.Equal(suite.T(), "CANCELLED", final["status"])
}

func (suite *OrderLifecycleTestSuite) TestIdempotentCreateReplay() {
	key := "lifecycle-create-1"

	first := suite.createOrder(key)
	second := suite.createOrder(key)
	require.Equal(suite.T(), first["id"], second["id"])

	// Повтор не создаёт второй заказ
	list := suite.listOrders()
	meta := list["meta"].(map[string]any)
	require.Equal(suite.T(), float64(1), meta["total"])

	// Повтор не добавляет событий в outbox
	suite.worker.ProcessOnce(context.Background())
	require.Len(suite.T(), suite.publisher.published(), 1)
}

func (suite *OrderLifecycleTestSuite) TestValidationFailureLeavesNoTrace() {
	body := `{"items":[{"product_id":"no-such-product","qty":1}]}`
	resp, err := http.Post(suite.server.URL+"/v1/orders", "application/json", bytes.NewBufferString(body))
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), http.StatusBadRequest, resp.StatusCode)

	list := suite.listOrders()
	meta := list["meta"].(map[string]any)
	require.Equal(suite.T(), float64(0), meta["total"])

	suite.worker.ProcessOnce(context.Background())
	require.Empty(suite.T(), suite.publisher.published())
}

// Вспомогательные методы

func (suite *OrderLifecycleTestSuite) createOrder(idempotencyKey string) map[string]any {
	body := `{"items":[{"product_id":"laptop-pro","qty":1},{"product_id":"mouse-wireless","qty":2}]}`
	req, err := http.NewRequest(http.MethodPost, suite.server.URL+"/v1/orders", bytes.NewBufferString(body))
	require.NoError(suite.T(), err)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), http.StatusCreated, resp.StatusCode)

	var order map[string]any
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(&order))
	return order
}

func (suite *OrderLifecycleTestSuite) changeStatus(orderID, status string, wantCode int) map[string]any {
	payload := `{"status":"` + status + `"}`
	req, err := http.NewRequest(http.MethodPatch, suite.server.URL+"/v1/orders/"+orderID+"/status", bytes.NewBufferString(payload))
	require.NoError(suite.T(), err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), wantCode, resp.StatusCode)

	var body map[string]any
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (suite *OrderLifecycleTestSuite) getOrder(orderID string) map[string]any {
	resp, err := http.Get(suite.server.URL + "/v1/orders/" + orderID)
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var order map[string]any
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(&order))
	return order
}

func (suite *OrderLifecycleTestSuite) getHistory(orderID string) []map[string]any {
	resp, err := http.Get(suite.server.URL + "/v1/orders/" + orderID + "/history")
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var entries []map[string]any
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(&entries))
	return entries
}

func (suite *OrderLifecycleTestSuite) listOrders() map[string]any {
	resp, err := http.Get(suite.server.URL + "/v1/orders")
	require.NoError(suite.T(), err)
	defer resp.Body.Close()
	require.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	var list map[string]any
	require.NoError(suite.T(), json.NewDecoder(resp.Body).Decode(&list))
	return list
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
