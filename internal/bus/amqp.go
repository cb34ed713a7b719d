package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AMQP implements Bus on a durable topic exchange.
type AMQP struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	exchange string
	dead     DeadLetter
	logger   *zap.Logger
}

func NewAMQP(url, exchange string, dead DeadLetter, logger *zap.Logger) (*AMQP, error) {
	var conn *amqp.Connection
	var err error

	// Retry to survive broker container startup.
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("could not open channel: %w", err)
	}

	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}

	return &AMQP{
		conn:     conn,
		pubCh:    ch,
		exchange: exchange,
		dead:     dead,
		logger:   logger,
	}, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("could not declare exchange: %w", err)
	}
	return nil
}

func (b *AMQP) Close() error {
	if err := b.pubCh.Close(); err != nil {
		return err
	}
	return b.conn.Close()
}

func (b *AMQP) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal payload for %s: %w", topic, err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}

	err = b.pubCh.PublishWithContext(ctx,
		b.exchange, // exchange
		topic,      // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("could not publish %s: %w", topic, err)
	}

	return nil
}

func (b *AMQP) Subscribe(ctx context.Context, queue string, patterns []string, h Handler) error {
	// Each subscription gets its own channel so consumer flow control never
	// stalls publishes.
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("could not open consumer channel: %w", err)
	}

	exclusive := queue == ""
	q, err := ch.QueueDeclare(
		queue,      // name, server-generated when empty
		!exclusive, // durable
		exclusive,  // delete when unused
		exclusive,  // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("could not declare queue: %w", err)
	}

	for _, pattern := range patterns {
		if err := ch.QueueBind(q.Name, pattern, b.exchange, false, nil); err != nil {
			return fmt.Errorf("could not bind queue to %s: %w", pattern, err)
		}
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack: handlers ack only after fully processing
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("could not start consume: %w", err)
	}

	go func() {
		defer func() {
			if err := ch.Close(); err != nil {
				b.logger.Warn("error closing consumer channel", zap.Error(err))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.consumeOne(ctx, q.Name, msg, h)
			}
		}
	}()

	return nil
}

func (b *AMQP) consumeOne(ctx context.Context, queue string, msg amqp.Delivery, h Handler) {
	d := Delivery{
		Topic:   msg.RoutingKey,
		Body:    msg.Body,
		Headers: make(map[string]string, len(msg.Headers)),
	}
	for k, v := range msg.Headers {
		if s, ok := v.(string); ok {
			d.Headers[k] = s
		}
	}

	msgCtx := extractTracing(ctx, d)
	span := trace.SpanFromContext(msgCtx)
	defer span.End()

	if err := h(msgCtx, d); err != nil {
		// Discard without requeue; the sink makes the drop observable.
		b.dead.Dropped(msgCtx, queue, d, err)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			mylogger.Error(msgCtx, b.logger, "failed to nack message",
				zap.String("topic", d.Topic),
				zap.Error(nackErr),
			)
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		mylogger.Error(msgCtx, b.logger, "failed to ack message",
			zap.String("topic", d.Topic),
			zap.Error(err),
		)
	}
}

func extractTracing(ctx context.Context, d Delivery) context.Context {
	carrier := propagation.MapCarrier{}
	for k, v := range d.Headers {
		carrier[k] = v
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	tracer := otel.Tracer("internal/bus")
	ctx, _ = tracer.Start(ctx, "bus_process",
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	return ctx
}
