package inventory

import (
	"context"
	"sync"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

type memoryRepo struct {
	mu      sync.Mutex
	records map[string]domain.InventoryRecord
}

func NewMemoryRepository() Repository {
	return &memoryRepo{records: make(map[string]domain.InventoryRecord)}
}

func (r *memoryRepo) Reserve(_ context.Context, items []domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// All-or-nothing under one lock: verify every item first, then mutate.
	for _, it := range items {
		rec, ok := r.records[it.SKU]
		if !ok || rec.Qty < it.Qty {
			return &InsufficientStockError{SKU: it.SKU}
		}
	}

	for _, it := range items {
		rec := r.records[it.SKU]
		rec.Qty -= it.Qty
		r.records[it.SKU] = rec
	}

	return nil
}

func (r *memoryRepo) Snapshot(_ context.Context) (map[string]domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]domain.InventoryRecord, len(r.records))
	for sku, rec := range r.records {
		out[sku] = rec
	}
	return out, nil
}

func (r *memoryRepo) Get(_ context.Context, sku string) (*domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[sku]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memoryRepo) Seed(_ context.Context, records []domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		r.records[rec.SKU] = rec
	}
	return nil
}
