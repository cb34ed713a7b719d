package saga

import (
	"encoding/json"
	"fmt"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

// Command is the next publish the choreography demands after one observed
// event.
type Command struct {
	Topic   string
	Payload any
}

// Route maps one observed event to the next command. It is a pure lookup
// with no per-order state, so any number of coordinator instances can run
// it concurrently. A nil command means the event needs no coordinator
// action (order.created starts the saga, but inventory reacts to it on its
// own).
func Route(topic string, body []byte) (*Command, error) {
	switch topic {
	case domain.TopicInventoryReserved:
		var p domain.InventoryReservedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", topic, err)
		}

		amount := domain.TotalOf(p.Items)
		return &Command{
			Topic: domain.TopicPaymentRequest,
			Payload: domain.PaymentRequestPayload{
				OrderID: p.ID,
				Items:   p.Items,
				Amount:  &amount,
			},
		}, nil

	case domain.TopicInventoryReservationFailed:
		var p domain.ReservationFailedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", topic, err)
		}

		// Compensate: abort the order.
		return &Command{
			Topic:   domain.TopicOrderCancel,
			Payload: domain.OrderLifecyclePayload{ID: p.ID, Reason: p.Reason},
		}, nil

	case domain.TopicPaymentProcessed:
		var p domain.PaymentResultPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", topic, err)
		}

		return &Command{
			Topic:   domain.TopicOrderConfirmed,
			Payload: domain.OrderLifecyclePayload{ID: p.Payment.OrderID},
		}, nil

	case domain.TopicPaymentFailed:
		var p domain.PaymentResultPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", topic, err)
		}

		// Compensate: mark the payment failure.
		return &Command{
			Topic:   domain.TopicOrderFailedPayment,
			Payload: domain.OrderLifecyclePayload{ID: p.Payment.OrderID, Reason: p.Payment.Reason},
		}, nil
	}

	return nil, nil
}
