package bus

import (
	"context"
	"sync"

	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.uber.org/zap"
)

// DeadLetter receives messages a handler failed on. Dropped messages are
// not redelivered; the sink exists so the drop is observable instead of
// silent.
type DeadLetter interface {
	Dropped(ctx context.Context, queue string, d Delivery, cause error)
}

// LogSink reports dropped messages to the log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Dropped(ctx context.Context, queue string, d Delivery, cause error) {
	mylogger.Error(
		ctx,
		s.logger,
		"message dropped to dead letter",
		zap.String("queue", queue),
		zap.String("topic", d.Topic),
		zap.Error(cause),
	)
}

// DroppedMessage is one dead-lettered delivery kept by RecordSink.
type DroppedMessage struct {
	Queue    string
	Delivery Delivery
	Cause    error
}

// RecordSink keeps dropped messages in memory for inspection.
type RecordSink struct {
	mu   sync.Mutex
	msgs []DroppedMessage
}

func NewRecordSink() *RecordSink {
	return &RecordSink{}
}

func (s *RecordSink) Dropped(_ context.Context, queue string, d Delivery, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, DroppedMessage{Queue: queue, Delivery: d, Cause: cause})
}

func (s *RecordSink) Messages() []DroppedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DroppedMessage(nil), s.msgs...)
}
