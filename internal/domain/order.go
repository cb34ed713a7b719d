package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated       OrderStatus = "CREATED"
	OrderStatusConfirmed     OrderStatus = "CONFIRMED"
	OrderStatusCancelled     OrderStatus = "CANCELLED"
	OrderStatusFailed        OrderStatus = "FAILED"
	OrderStatusFailedPayment OrderStatus = "FAILED_PAYMENT"
)

// IsTerminal reports whether an order in this status may never change again.
// An order walks one way: CREATED -> exactly one terminal status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed ||
		s == OrderStatusCancelled ||
		s == OrderStatusFailed ||
		s == OrderStatusFailedPayment
}

type OrderItem struct {
	SKU   string `json:"sku"`
	Qty   int64  `json:"qty"`
	Price int64  `json:"price"`
}

type Order struct {
	ID         string      `json:"id"`
	Items      []OrderItem `json:"items"`
	TotalPrice int64       `json:"totalPrice"`
	Status     OrderStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// TotalOf sums qty*price over items. Items with no price contribute nothing,
// which mirrors how the read model recomputes a missing totalPrice.
func TotalOf(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Qty * it.Price
	}
	return total
}
