package eventlog

import (
	"context"
	"encoding/json"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
)

// Store is the append-only event log, the source of truth. Append failures
// always surface to the caller: a side effect whose event could not be
// written must not be treated as durable.
type Store interface {
	// Append writes one immutable event to the stream and returns its id.
	Append(ctx context.Context, streamID, eventType string, payload any) (int64, error)

	// ReadStream returns the full history of one stream in append order.
	ReadStream(ctx context.Context, streamID string) ([]domain.Event, error)

	// ReadAll returns every event in global append order, for projection
	// rebuild and audit.
	ReadAll(ctx context.Context) ([]domain.Event, error)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
