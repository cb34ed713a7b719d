package domain

import (
	"encoding/json"
	"time"
)

// Routing keys on the events exchange. These are part of the wire contract
// with every consumer, bit for bit.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderConfirmed     = "order.confirmed"
	TopicOrderCancel        = "order.cancel"
	TopicOrderFailedPayment = "order.failed_payment"

	TopicInventoryReserved          = "inventory.reserved"
	TopicInventoryReservationFailed = "inventory.reservation_failed"

	TopicPaymentRequest   = "payment.request"
	TopicPaymentProcessed = "payment.processed"
	TopicPaymentFailed    = "payment.failed"
)

// Event types recorded in the event log.
const (
	EventOrderCreated      = "OrderCreated"
	EventInventoryReserved = "InventoryReserved"
	EventReservationFailed = "InventoryReservationFailed"
	EventPaymentProcessed  = "PaymentProcessed"
	EventPaymentFailed     = "PaymentFailed"
)

// Event is one immutable entry in a stream's history. The log for a stream
// id is the authoritative record of that entity; entries are never updated
// or deleted.
type Event struct {
	ID        int64           `json:"-" db:"id"`
	StreamID  string          `json:"streamId" db:"stream_id"`
	Type      string          `json:"type" db:"type"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	Timestamp time.Time       `json:"timestamp" db:"created_at"`
}

// OrderCreatedPayload rides on order.created.
type OrderCreatedPayload struct {
	ID    string `json:"id"`
	Order Order  `json:"order"`
}

// InventoryReservedPayload rides on inventory.reserved; items echo the
// priced order items so the saga can compute the payment amount.
type InventoryReservedPayload struct {
	ID    string      `json:"id"`
	Items []OrderItem `json:"items"`
}

type ReservationFailedPayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PaymentRequestPayload carries the amount resolution inputs in precedence
// order: Amount wins, then Items, then a lookup of the order's totalPrice.
type PaymentRequestPayload struct {
	OrderID string      `json:"orderId"`
	Items   []OrderItem `json:"items,omitempty"`
	Amount  *int64      `json:"amount,omitempty"`
}

type PaymentResultPayload struct {
	Payment Payment `json:"payment"`
}

// OrderLifecyclePayload rides on order.confirmed, order.cancel and
// order.failed_payment.
type OrderLifecyclePayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}
