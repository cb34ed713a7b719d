package inventory

import (
	"context"
	"fmt"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

// InsufficientStockError names the first SKU that could not cover the
// requested quantity.
type InsufficientStockError struct {
	SKU string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient_stock %s", e.SKU)
}

// Repository owns the InventoryRecord set. Reserve is all-or-nothing: when
// any item is under-stocked no record changes at all.
type Repository interface {
	Reserve(ctx context.Context, items []domain.OrderItem) error
	Snapshot(ctx context.Context) (map[string]domain.InventoryRecord, error)
	Get(ctx context.Context, sku string) (*domain.InventoryRecord, error)
	Seed(ctx context.Context, records []domain.InventoryRecord) error
}
