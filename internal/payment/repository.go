package payment

import (
	"context"
	"errors"
)

// ErrInsufficientFunds means a debit was refused because it would drive the
// balance negative. The balance is left untouched.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Repository owns the singleton service balance.
type Repository interface {
	// EnsureMainBalance creates the "main" balance with the initial amount
	// when it does not exist yet. An existing balance is never overwritten.
	EnsureMainBalance(ctx context.Context, initial int64) error

	GetBalance(ctx context.Context) (int64, error)

	// Debit atomically decrements the balance, refusing the debit when the
	// remaining funds do not cover the amount.
	Debit(ctx context.Context, amount int64) error
}
