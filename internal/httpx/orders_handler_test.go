package httpx_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/catalog"
	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/httpx"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithIdempotency(t, memory.NewIdempotencyRepository())
}

func newTestServerWithIdempotency(t *testing.T, idemRepo domain.IdempotencyRepository) *httptest.Server {
	t.Helper()

	validator := catalog.NewMockValidator(
		domain.Product{ID: "prod-a", Name: "Widget", PriceMinor: 500},
		domain.Product{ID: "prod-b", Name: "Gadget", PriceMinor: 300},
	)
	svc := orders.NewService(memory.NewOrderRepository(), validator, orders.Options{
		Outbox:  memory.NewOutboxRepository(),
		History: memory.NewStatusHistoryRepository(),
	})

	router := httpx.NewRouter()
	handler := httpx.NewOrdersHandler(svc, idemRepo, nil)
	handler.Register(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func createTestOrder(t *testing.T, server *httptest.Server) map[string]any {
	t.Helper()

	body := `{"items":[{"product_id":"prod-a","qty":2},{"product_id":"prod-b","qty":1}]}`
	resp, err := http.Post(server.URL+"/v1/orders", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var order map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	return order
}

func TestOrdersHandler_CreateOrder(t *testing.T) {
	server := newTestServer(t)

	order := createTestOrder(t, server)
	require.NotEmpty(t, order["id"])
	require.Equal(t, "PENDING", order["status"])
	require.Equal(t, float64(1300), order["total_amount_minor"])
	require.Equal(t, float64(3), order["total_items"])

	items, ok := order["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	require.NotEmpty(t, first["product_name"])
}

func TestOrdersHandler_CreateOrder_InvalidJSON(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/v1/orders", "application/json", bytes.NewBufferString(`{"items":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrdersHandler_CreateOrder_ValidationFailure(t *testing.T) {
	server := newTestServer(t)

	body := `{"items":[{"product_id":"prod-missing","qty":1}]}`
	resp, err := http.Post(server.URL+"/v1/orders", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "Error validating products", payload["error"])
}

func TestOrdersHandler_CreateOrder_Idempotent(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()
	body := `{"items":[{"product_id":"prod-a","qty":1}]}`

	post := func(payload string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/v1/orders", bytes.NewBufferString(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "create-once")
		resp, err := client.Do(req)
		require.NoError(t, err)
		return resp
	}

	first := post(body)
	defer first.Body.Close()
	require.Equal(t, http.StatusCreated, first.StatusCode)
	var created map[string]any
	require.NoError(t, json.NewDecoder(first.Body).Decode(&created))

	second := post(body)
	defer second.Body.Close()
	require.Equal(t, http.StatusCreated, second.StatusCode)
	var replayed map[string]any
	require.NoError(t, json.NewDecoder(second.Body).Decode(&replayed))
	require.Equal(t, created["id"], replayed["id"])

	conflicting := post(`{"items":[{"product_id":"prod-b","qty":1}]}`)
	defer conflicting.Body.Close()
	require.Equal(t, http.StatusConflict, conflicting.StatusCode)
}

func TestOrdersHandler_CreateOrder_BodyTooLarge(t *testing.T) {
	server := newTestServer(t)

	oversized := strings.NewReader(`{"items":[` + strings.Repeat(" ", 1<<20) + `]}`)
	resp, err := http.Post(server.URL+"/v1/orders", "application/json", oversized)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

// markDoneFailingRepo имитирует отказ хранилища на сохранении успешного ответа.
type markDoneFailingRepo struct {
	domain.IdempotencyRepository
}

func (r *markDoneFailingRepo) MarkDone(string, []byte, int) error {
	return errors.New("storage unavailable")
}

// Если успешный ответ не удалось закешировать, запись не должна оставаться
// в processing: повтор получает воспроизводимую ошибку, а не 409 до конца TTL.
func TestOrdersHandler_CreateOrder_MarkDoneFailureDoesNotStickProcessing(t *testing.T) {
	server := newTestServerWithIdempotency(t, &markDoneFailingRepo{memory.NewIdempotencyRepository()})
	client := server.Client()
	body := `{"items":[{"product_id":"prod-a","qty":1}]}`

	post := func() *http.Response {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/v1/orders", bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "cache-miss")
		resp, err := client.Do(req)
		require.NoError(t, err)
		return resp
	}

	first := post()
	defer first.Body.Close()
	require.Equal(t, http.StatusCreated, first.StatusCode)

	replay := post()
	defer replay.Body.Close()
	require.Equal(t, http.StatusInternalServerError, replay.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(replay.Body).Decode(&payload))
	require.Contains(t, payload["error"], "retry with a new key")
}

func TestOrdersHandler_ListOrders(t *testing.T) {
	server := newTestServer(t)

	for i := 0; i < 3; i++ {
		createTestOrder(t, server)
	}

	resp, err := http.Get(server.URL + "/v1/orders?page=1&limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Total    int64 `json:"total"`
			Page     int   `json:"page"`
			LastPage int   `json:"last_page"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Data, 2)
	require.Equal(t, int64(3), payload.Meta.Total)
	require.Equal(t, 1, payload.Meta.Page)
	require.Equal(t, 2, payload.Meta.LastPage)
	require.Nil(t, payload.Data[0]["items"])
}

func TestOrdersHandler_ListOrders_StatusFilter(t *testing.T) {
	server := newTestServer(t)

	order := createTestOrder(t, server)
	createTestOrder(t, server)
	patchStatus(t, server, order["id"].(string), "PAID", http.StatusOK)

	resp, err := http.Get(server.URL + "/v1/orders?status=paid")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Data, 1)
	require.Equal(t, order["id"], payload.Data[0]["id"])

	bad, err := http.Get(server.URL + "/v1/orders?status=SHIPPED")
	require.NoError(t, err)
	defer bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestOrdersHandler_GetOrder(t *testing.T) {
	server := newTestServer(t)
	order := createTestOrder(t, server)

	resp, err := http.Get(server.URL + "/v1/orders/" + order["id"].(string))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, order["id"], got["id"])
	require.NotEmpty(t, got["items"])
}

func TestOrdersHandler_GetOrder_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/v1/orders/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func patchStatus(t *testing.T, server *httptest.Server, id, status string, wantCode int) map[string]any {
	t.Helper()

	body, err := json.Marshal(map[string]string{"status": status})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPatch, server.URL+"/v1/orders/"+id+"/status", bytes.NewBuffer(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantCode, resp.StatusCode)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestOrdersHandler_ChangeStatus(t *testing.T) {
	server := newTestServer(t)
	order := createTestOrder(t, server)
	id := order["id"].(string)

	updated := patchStatus(t, server, id, "PAID", http.StatusOK)
	require.Equal(t, "PAID", updated["status"])
	require.NotEmpty(t, updated["items"])

	// Повтор того же статуса — идемпотентный no-op.
	again := patchStatus(t, server, id, "PAID", http.StatusOK)
	require.Equal(t, updated["version"], again["version"])

	denied := patchStatus(t, server, id, "PENDING", http.StatusUnprocessableEntity)
	require.Contains(t, denied["error"], "invalid order status transition")

	patchStatus(t, server, id, "SHIPPED", http.StatusBadRequest)
	patchStatus(t, server, "missing", "PAID", http.StatusNotFound)
}

func TestOrdersHandler_History(t *testing.T) {
	server := newTestServer(t)
	order := createTestOrder(t, server)
	id := order["id"].(string)
	patchStatus(t, server, id, "PAID", http.StatusOK)

	resp, err := http.Get(server.URL + "/v1/orders/" + id + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var changes []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&changes))
	require.Len(t, changes, 2)
	require.Equal(t, "PENDING", changes[0]["to"])
	require.Equal(t, "PAID", changes[1]["to"])

	missing, err := http.Get(server.URL + "/v1/orders/missing/history")
	require.NoError(t, err)
	defer missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestOrdersHandler_Healthz(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
