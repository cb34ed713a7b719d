package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// ReasonInsufficientFunds is the wire-visible reason for an under-funded
// debit. Consumers match on it, so the text is part of the contract.
const ReasonInsufficientFunds = "Insufficient service funds"

// Payment is one settlement attempt for an order. Attempts are append-only:
// an order may accumulate several FAILED payments before a COMPLETED one.
type Payment struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"orderId"`
	Amount    int64         `json:"amount"`
	Status    PaymentStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// BalanceID is the singleton key of the shared service balance.
const BalanceID = "main"

type Balance struct {
	ID      string `json:"id"`
	Balance int64  `json:"balance"`
}
