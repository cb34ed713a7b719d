package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/pkg/breaker"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReasonUnavailable is published when the reservation breaker is open and
// the attempt is short-circuited without touching storage.
const ReasonUnavailable = "inventory unavailable"

type Service interface {
	Start(ctx context.Context) error
	HandleOrderCreated(ctx context.Context, payload domain.OrderCreatedPayload) error
}

type service struct {
	repo        Repository
	events      eventlog.Store
	bus         bus.Bus
	cb          *gobreaker.CircuitBreaker
	callTimeout time.Duration
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewService(
	repo Repository,
	events eventlog.Store,
	b bus.Bus,
	cb *gobreaker.CircuitBreaker,
	callTimeout time.Duration,
	logger *zap.Logger,
) Service {
	return &service{
		repo:        repo,
		events:      events,
		bus:         b,
		cb:          cb,
		callTimeout: callTimeout,
		logger:      logger,
		tracer:      otel.Tracer("inventory/service"),
	}
}

func (s *service) Start(ctx context.Context) error {
	return s.bus.Subscribe(ctx, "inventory-service", []string{"order.*"}, s.processMessage)
}

func (s *service) processMessage(ctx context.Context, d bus.Delivery) error {
	if d.Topic != domain.TopicOrderCreated {
		return nil
	}

	var payload domain.OrderCreatedPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to unmarshal order.created", zap.Error(err))
		return err
	}

	return s.HandleOrderCreated(ctx, payload)
}

// HandleOrderCreated runs the reservation through the circuit breaker. A
// business failure (under-stocked SKU, open breaker) terminates in a
// published inventory.reservation_failed; only infrastructure failures
// after a successful reservation propagate to the consumer loop.
func (s *service) HandleOrderCreated(ctx context.Context, payload domain.OrderCreatedPayload) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.HandleOrderCreated")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", payload.ID),
		attribute.Int("items_count", len(payload.Order.Items)),
	)

	_, err := breaker.ExecuteCtx(ctx, s.cb, s.callTimeout, func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Reserve(callCtx, payload.Order.Items)
	})
	if err != nil {
		span.RecordError(err)
		return s.publishReservationFailed(ctx, payload.ID, err)
	}

	if _, err := s.events.Append(ctx, payload.ID, domain.EventInventoryReserved, domain.InventoryReservedPayload{
		ID:    payload.ID,
		Items: payload.Order.Items,
	}); err != nil {
		// The decrement is not durable without its event; surface the error
		// so the message lands in the dead letter instead of acking.
		return fmt.Errorf("failed to append InventoryReserved: %w", err)
	}

	if err := s.bus.Publish(ctx, domain.TopicInventoryReserved, domain.InventoryReservedPayload{
		ID:    payload.ID,
		Items: payload.Order.Items,
	}); err != nil {
		return fmt.Errorf("failed to publish inventory.reserved: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Inventory reserved",
		zap.String("order_id", payload.ID),
	)

	return nil
}

func (s *service) publishReservationFailed(ctx context.Context, orderID string, cause error) error {
	reason := cause.Error()
	if errors.Is(cause, gobreaker.ErrOpenState) || errors.Is(cause, gobreaker.ErrTooManyRequests) {
		reason = ReasonUnavailable
	}

	mylogger.Warn(
		ctx,
		s.logger,
		"Reservation failed",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)

	payload := domain.ReservationFailedPayload{ID: orderID, Reason: reason}

	// No stock changed, but the failure still goes to the log: the read
	// model must reach the same terminal state when rebuilt from replay.
	if _, err := s.events.Append(ctx, orderID, domain.EventReservationFailed, payload); err != nil {
		return fmt.Errorf("failed to append InventoryReservationFailed: %w", err)
	}

	if err := s.bus.Publish(ctx, domain.TopicInventoryReservationFailed, payload); err != nil {
		return fmt.Errorf("failed to publish inventory.reservation_failed: %w", err)
	}

	return nil
}
