package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

// memoryStore keeps the log in process. Same contract as the Postgres
// store; used by unit tests and the demo wiring.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []domain.Event
}

func NewMemoryStore() Store {
	return &memoryStore{nextID: 1}
}

func (s *memoryStore) Append(_ context.Context, streamID, eventType string, payload any) (int64, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.events = append(s.events, domain.Event{
		ID:        id,
		StreamID:  streamID,
		Type:      eventType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	})

	return id, nil
}

func (s *memoryStore) ReadStream(_ context.Context, streamID string) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Event
	for _, e := range s.events {
		if e.StreamID == streamID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memoryStore) ReadAll(_ context.Context) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Event(nil), s.events...), nil
}
