package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/internal/readmodel"
)

// Rebuild replays the full event log, in append order, into an empty read
// model. The result must match the live-updated model: the log is the
// source of truth, the read model is always disposable.
func Rebuild(ctx context.Context, events eventlog.Store, repo readmodel.Repository) error {
	all, err := events.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read event log: %w", err)
	}

	for _, e := range all {
		if err := replayOne(ctx, repo, e); err != nil {
			return fmt.Errorf("failed to replay event %d (%s): %w", e.ID, e.Type, err)
		}
	}

	return nil
}

func replayOne(ctx context.Context, repo readmodel.Repository, e domain.Event) error {
	switch e.Type {
	case domain.EventOrderCreated:
		var payload domain.OrderCreatedPayload
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return err
		}

		order := payload.Order
		order.ID = payload.ID
		if order.TotalPrice == 0 {
			order.TotalPrice = domain.TotalOf(order.Items)
		}
		return repo.InsertCreated(ctx, order)

	case domain.EventReservationFailed:
		var payload domain.ReservationFailedPayload
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return err
		}
		return repo.SetStatus(ctx, payload.ID, domain.OrderStatusFailed, payload.Reason)

	case domain.EventPaymentProcessed:
		var p domain.Payment
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		if p.OrderID == "" {
			return nil
		}
		return repo.SetStatus(ctx, p.OrderID, domain.OrderStatusConfirmed, "")

	case domain.EventPaymentFailed:
		var p domain.Payment
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		if p.OrderID == "" {
			return nil
		}
		return repo.SetStatus(ctx, p.OrderID, domain.OrderStatusFailedPayment, p.Reason)
	}

	// InventoryReserved carries no status change.
	return nil
}
