package bus

import "context"

// Delivery is one message handed to a subscriber.
type Delivery struct {
	Topic   string
	Body    []byte
	Headers map[string]string
}

// Handler processes one delivery. A nil return acks the message; an error
// drops it to the dead-letter sink, it is not redelivered.
type Handler func(ctx context.Context, d Delivery) error

// Bus is a topic-addressed publish/subscribe fabric. Delivery is
// at-least-once per subscription queue and in publish order within one
// queue; there is no ordering guarantee across two different queues.
type Bus interface {
	// Publish sends payload as a durable JSON message under the routing key.
	Publish(ctx context.Context, topic string, payload any) error

	// Subscribe binds a queue to one or more topic patterns (AMQP globs,
	// e.g. "order.*") and consumes it with h until ctx is cancelled.
	Subscribe(ctx context.Context, queue string, patterns []string, h Handler) error
}
