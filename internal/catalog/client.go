// Package catalog реализует клиент внешнего сервиса каталога товаров.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const (
	validatePath       = "/v1/products/validate"
	defaultHTTPTimeout = 5 * time.Second
	maxErrorBodyBytes  = 4 << 10
)

// Client — HTTP-клиент каталога, реализует domain.ProductValidator.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *log.Entry
}

// NewClient создаёт клиент каталога. httpClient может быть nil,
// тогда используется клиент с таймаутом по умолчанию.
func NewClient(baseURL string, httpClient *http.Client, logger *log.Entry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if logger == nil {
		logger = log.WithField("component", "catalog-client")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}
}

type validateRequest struct {
	IDs []string `json:"ids"`
}

type productPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
}

// ValidateProducts отправляет батч идентификаторов каталогу одним запросом
// и возвращает найденные товары. Любой транспортный сбой, не-2xx ответ или
// отсутствие хотя бы одного запрошенного id — ошибка: частичный результат
// не принимается.
func (c *Client) ValidateProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	distinct := domain.DistinctProductIDs(ids)
	if len(distinct) == 0 {
		return nil, fmt.Errorf("empty product id batch: %w", domain.ErrProductValidation)
	}

	body, err := json.Marshal(validateRequest{IDs: distinct})
	if err != nil {
		return nil, fmt.Errorf("marshal validate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+validatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Отмена и таймаут схлопываются в тот же класс ошибки, что и отказ каталога.
		return nil, fmt.Errorf("call catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.WithFields(log.Fields{
			"status": resp.StatusCode,
			"body":   string(snippet),
		}).Warn("catalog rejected product validation")
		return nil, fmt.Errorf("catalog responded %d: %w", resp.StatusCode, domain.ErrProductValidation)
	}

	var payload []productPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	products := make([]domain.Product, 0, len(payload))
	found := make(map[string]struct{}, len(payload))
	for _, p := range payload {
		products = append(products, domain.Product{
			ID:         p.ID,
			Name:       p.Name,
			PriceMinor: p.PriceMinor,
		})
		found[p.ID] = struct{}{}
	}

	for _, id := range distinct {
		if _, ok := found[id]; !ok {
			return nil, fmt.Errorf("product %s not found in catalog: %w", id, domain.ErrProductValidation)
		}
	}

	return products, nil
}

var _ domain.ProductValidator = (*Client)(nil)
