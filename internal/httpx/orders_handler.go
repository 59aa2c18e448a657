package httpx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/pricing"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour

	maxCreateBodyBytes = 1 << 20
)

// OrdersHandler — HTTP-обработчики жизненного цикла заказа.
type OrdersHandler struct {
	svc      *orders.Service
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
}

// NewOrdersHandler создаёт обработчик поверх сервиса заказов.
// idemRepo опционален: без него POST /v1/orders работает без идемпотентности.
func NewOrdersHandler(svc *orders.Service, idemRepo domain.IdempotencyRepository, logger *log.Entry) *OrdersHandler {
	if logger == nil {
		logger = log.WithField("component", "orders-http")
	}
	return &OrdersHandler{svc: svc, idemRepo: idemRepo, logger: logger}
}

// Register навешивает маршруты на роутер.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/v1/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.changeStatus)
		r.Get("/{id}/history", h.getHistory)
	})
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
}

type createOrderRequest struct {
	Items []orderItemPayload `json:"items"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Qty         int32  `json:"qty"`
	PriceMinor  int64  `json:"price_minor"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	Status           string              `json:"status"`
	TotalAmountMinor int64               `json:"total_amount_minor"`
	TotalItems       int32               `json:"total_items"`
	Items            []orderItemResponse `json:"items,omitempty"`
	Version          int64               `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type pageMetaResponse struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"last_page"`
}

type listOrdersResponse struct {
	Data []orderResponse  `json:"data"`
	Meta pageMetaResponse `json:"meta"`
}

type statusChangeResponse struct {
	From     string    `json:"from,omitempty"`
	To       string    `json:"to"`
	Occurred time.Time `json:"occurred"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	items := make([]pricing.RequestedItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, pricing.RequestedItem{ProductID: item.ProductID, Qty: item.Qty})
	}

	idemKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if h.idemRepo == nil || idemKey == "" {
		order, err := h.svc.Create(r.Context(), orders.CreateOrderRequest{Items: items})
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrderResponse(order, true))
		return
	}

	h.createOrderIdempotent(w, r, idemKey, body, items)
}

// createOrderIdempotent выполняет создание под ключом идемпотентности:
// повтор с тем же ключом и телом возвращает закешированный ответ.
func (h *OrdersHandler) createOrderIdempotent(w http.ResponseWriter, r *http.Request, idemKey string, body []byte, items []pricing.RequestedItem) {
	reqHash := buildRequestHash(r.Method, r.URL.Path, body)

	record, err := h.idemRepo.CreateProcessing(idemKey, reqHash, time.Now().UTC().Add(idempotencyTTL))
	if err != nil {
		h.replayIdempotency(w, err, record)
		return
	}

	order, createErr := h.svc.Create(r.Context(), orders.CreateOrderRequest{Items: items})
	if createErr != nil {
		status, message := mapDomainError(createErr)
		h.cacheFailure(idemKey, status, message)
		writeError(w, status, message)
		return
	}

	resp := toOrderResponse(order, true)
	cached, err := json.Marshal(resp)
	if err == nil {
		err = h.idemRepo.MarkDone(idemKey, cached, http.StatusCreated)
	}
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", idemKey).Warn("failed to store idempotent success response")
		// Запись не должна застрять в processing до конца TTL, иначе каждый
		// повтор успешного создания получал бы 409.
		h.cacheFailure(idemKey, http.StatusInternalServerError, "idempotent response was not cached, retry with a new key")
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrdersHandler) replayIdempotency(w http.ResponseWriter, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		writeError(w, http.StatusConflict, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			if len(record.ResponseBody) == 0 {
				writeError(w, http.StatusInternalServerError, "idempotency cache is empty")
				return
			}
			status := record.HTTPStatus
			if status == 0 {
				status = http.StatusCreated
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write(record.ResponseBody)
		case domain.IdempotencyStatusProcessing:
			writeError(w, http.StatusConflict, "request with the same idempotency key is already processing")
		case domain.IdempotencyStatusFailed:
			h.replayFailure(w, record)
		default:
			writeError(w, http.StatusInternalServerError, "unknown idempotency record status")
		}
	default:
		h.logger.WithError(createErr).Warn("failed to create idempotency record")
		writeError(w, http.StatusInternalServerError, "failed to initialize idempotency request")
	}
}

func (h *OrdersHandler) replayFailure(w http.ResponseWriter, record domain.IdempotencyRecord) {
	status := record.HTTPStatus
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}

	if len(record.ResponseBody) > 0 {
		var payload errorResponse
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil && payload.Error != "" {
			writeError(w, status, payload.Error)
			return
		}
	}
	writeError(w, status, "previous request with the same idempotency key failed")
}

func (h *OrdersHandler) cacheFailure(idemKey string, status int, message string) {
	payload, err := json.Marshal(errorResponse{Error: message})
	if err != nil {
		payload = nil
	}
	if err := h.idemRepo.MarkFailed(idemKey, payload, status); err != nil {
		h.logger.WithError(err).WithField("idempotency_key", idemKey).Warn("failed to store idempotency failure response")
	}
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	query := orders.ListOrdersQuery{
		Page: domain.PageRequest{
			Page:    queryInt(r, "page"),
			PerPage: queryInt(r, "limit"),
		},
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.OrderStatus(strings.ToUpper(raw))
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown order status")
			return
		}
		query.Status = &status
	}

	page, err := h.svc.FindAll(r.Context(), query)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	data := make([]orderResponse, 0, len(page.Data))
	for _, order := range page.Data {
		data = append(data, toOrderResponse(order, false))
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{
		Data: data,
		Meta: pageMetaResponse{
			Total:    page.Meta.Total,
			Page:     page.Meta.Page,
			LastPage: page.Meta.LastPage,
		},
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.FindOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, true))
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	next := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	order, err := h.svc.ChangeStatus(r.Context(), chi.URLParam(r, "id"), next)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, true))
}

func (h *OrdersHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := make([]statusChangeResponse, 0, len(changes))
	for _, change := range changes {
		resp = append(resp, statusChangeResponse{
			From:     string(change.From),
			To:       string(change.To),
			Occurred: change.Occurred,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrdersHandler) writeDomainError(w http.ResponseWriter, err error) {
	status, message := mapDomainError(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}
	writeError(w, status, message)
}

// mapDomainError переводит доменные ошибки в HTTP-статусы.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrProductValidation):
		return http.StatusBadRequest, domain.ErrProductValidation.Error()
	case errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemProductRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrUnknownStatus):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, domain.ErrOrderNotFound.Error()
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrOrderVersionConflict):
		return http.StatusConflict, domain.ErrOrderVersionConflict.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func toOrderResponse(order domain.Order, withItems bool) orderResponse {
	resp := orderResponse{
		ID:               order.ID,
		Status:           string(order.Status),
		TotalAmountMinor: order.TotalAmountMinor,
		TotalItems:       order.TotalItems,
		Version:          order.Version,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	if !withItems {
		return resp
	}

	resp.Items = make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
			PriceMinor:  item.PriceMinor,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}

func queryInt(r *http.Request, name string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func buildRequestHash(method, path string, body []byte) string {
	payload := make([]byte, 0, len(method)+len(path)+len(body)+2)
	payload = append(payload, method...)
	payload = append(payload, ' ')
	payload = append(payload, path...)
	payload = append(payload, ':')
	payload = append(payload, body...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
