package saga

import (
	"context"
	"fmt"

	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Coordinator drives the order lifecycle as a reactive choreography: it
// watches the event stream and publishes whatever Route says comes next.
// It holds no durable state of its own.
type Coordinator struct {
	bus    bus.Bus
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCoordinator(b bus.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		bus:    b,
		logger: logger,
		tracer: otel.Tracer("saga/coordinator"),
	}
}

func (c *Coordinator) Start(ctx context.Context) error {
	patterns := []string{
		"order.*",
		"inventory.*",
		domain.TopicPaymentProcessed,
		domain.TopicPaymentFailed,
	}

	return c.bus.Subscribe(ctx, "saga-coordinator", patterns, c.processMessage)
}

func (c *Coordinator) processMessage(ctx context.Context, d bus.Delivery) error {
	ctx, span := c.tracer.Start(ctx, "Coordinator.processMessage")
	defer span.End()

	span.SetAttributes(attribute.String("topic", d.Topic))

	cmd, err := Route(d.Topic, d.Body)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			c.logger,
			"Failed to route event",
			zap.String("topic", d.Topic),
			zap.Error(err),
		)

		return err
	}

	if cmd == nil {
		return nil
	}

	if err := c.bus.Publish(ctx, cmd.Topic, cmd.Payload); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish %s: %w", cmd.Topic, err)
	}

	mylogger.Info(
		ctx,
		c.logger,
		"Saga step",
		zap.String("observed", d.Topic),
		zap.String("emitted", cmd.Topic),
	)

	return nil
}
