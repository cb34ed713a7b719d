package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/readmodel"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Projection folds lifecycle events into the order read model. Every apply
// is an idempotent upsert keyed by order id; duplicates and late events
// against a settled order fall through the repository's terminal guard.
type Projection struct {
	repo   readmodel.Repository
	logger *zap.Logger
	tracer trace.Tracer
}

func New(repo readmodel.Repository, logger *zap.Logger) *Projection {
	return &Projection{
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("projection"),
	}
}

func (p *Projection) Start(ctx context.Context, b bus.Bus) error {
	return b.Subscribe(ctx, "projection-service", []string{"order.*", "inventory.*"}, p.processMessage)
}

func (p *Projection) processMessage(ctx context.Context, d bus.Delivery) error {
	return p.Apply(ctx, d.Topic, d.Body)
}

// Apply folds one event, addressed by routing key, into the read model.
func (p *Projection) Apply(ctx context.Context, topic string, body []byte) error {
	ctx, span := p.tracer.Start(ctx, "Projection.Apply")
	defer span.End()

	span.SetAttributes(attribute.String("topic", topic))

	switch topic {
	case domain.TopicOrderCreated:
		var payload domain.OrderCreatedPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", topic, err)
		}
		return p.applyCreated(ctx, payload)

	case domain.TopicInventoryReservationFailed:
		var payload domain.ReservationFailedPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", topic, err)
		}
		return p.repo.SetStatus(ctx, payload.ID, domain.OrderStatusFailed, payload.Reason)

	case domain.TopicOrderConfirmed:
		return p.applyLifecycle(ctx, body, domain.OrderStatusConfirmed)

	case domain.TopicOrderCancel:
		return p.applyLifecycle(ctx, body, domain.OrderStatusCancelled)

	case domain.TopicOrderFailedPayment:
		return p.applyLifecycle(ctx, body, domain.OrderStatusFailedPayment)
	}

	return nil
}

func (p *Projection) applyCreated(ctx context.Context, payload domain.OrderCreatedPayload) error {
	order := payload.Order
	order.ID = payload.ID

	// Older producers published unpriced orders; recompute so the read
	// model always carries a total.
	if order.TotalPrice == 0 {
		order.TotalPrice = domain.TotalOf(order.Items)
	}

	if err := p.repo.InsertCreated(ctx, order); err != nil {
		return err
	}

	mylogger.Debug(
		ctx,
		p.logger,
		"Projected order created",
		zap.String("order_id", order.ID),
	)

	return nil
}

func (p *Projection) applyLifecycle(ctx context.Context, body []byte, status domain.OrderStatus) error {
	var payload domain.OrderLifecyclePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal lifecycle payload: %w", err)
	}

	return p.repo.SetStatus(ctx, payload.ID, status, payload.Reason)
}
