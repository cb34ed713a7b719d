package readmodel

import (
	"context"
	"errors"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

// Repository is the denormalized order read model. It is derived state:
// mutated only by the projection, never a source of truth for writes, and
// rebuildable from the event log at any time.
type Repository interface {
	// InsertCreated materializes the initial CREATED record. Re-applying
	// the same order.created is a no-op.
	InsertCreated(ctx context.Context, order domain.Order) error

	// SetStatus moves an order out of CREATED with a targeted field update.
	// Updates against an order already in a terminal status are ignored:
	// the walk is one-way and ends in exactly one terminal state.
	SetStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) error

	Get(ctx context.Context, id string) (*domain.Order, error)

	// All returns every projected order, keyed by id.
	All(ctx context.Context) (map[string]domain.Order, error)
}
