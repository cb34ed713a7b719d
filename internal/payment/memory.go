package payment

import (
	"context"
	"sync"
)

type memoryRepo struct {
	mu      sync.Mutex
	seeded  bool
	balance int64
}

func NewMemoryRepository() Repository {
	return &memoryRepo{}
}

func (r *memoryRepo) EnsureMainBalance(_ context.Context, initial int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seeded {
		r.balance = initial
		r.seeded = true
	}
	return nil
}

func (r *memoryRepo) GetBalance(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.balance, nil
}

func (r *memoryRepo) Debit(_ context.Context, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.balance < amount {
		return ErrInsufficientFunds
	}
	r.balance -= amount
	return nil
}
