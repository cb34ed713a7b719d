package readmodel

import (
	"context"
	"sync"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

type memoryRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func NewMemoryRepository() Repository {
	return &memoryRepo{orders: make(map[string]domain.Order)}
}

func (r *memoryRepo) InsertCreated(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return nil
	}

	order.Status = domain.OrderStatusCreated
	order.Reason = ""
	r.orders[order.ID] = order
	return nil
}

func (r *memoryRepo) SetStatus(_ context.Context, id string, status domain.OrderStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok || order.Status != domain.OrderStatusCreated {
		return nil
	}

	order.Status = status
	if reason != "" {
		order.Reason = reason
	}
	r.orders[id] = order
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &order, nil
}

func (r *memoryRepo) All(_ context.Context) (map[string]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]domain.Order, len(r.orders))
	for id, order := range r.orders {
		out[id] = order
	}
	return out, nil
}
