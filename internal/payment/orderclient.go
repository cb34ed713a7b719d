package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

// HTTPOrderLookup resolves orders over the order service's HTTP boundary.
// The service wraps calls with its circuit breaker; this client only does
// the transport.
type HTTPOrderLookup struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOrderLookup(baseURL string) *HTTPOrderLookup {
	return &HTTPOrderLookup{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (l *HTTPOrderLookup) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	endpoint := fmt.Sprintf("%s/orders/%s", l.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order service returned %d for %s", resp.StatusCode, id)
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", id, err)
	}

	return &order, nil
}
