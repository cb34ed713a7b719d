package eventlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type postgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) Store {
	return &postgresStore{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("eventlog/postgres_store"),
	}
}

func (s *postgresStore) Append(ctx context.Context, streamID, eventType string, payload any) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "EventStore.Append")
	defer span.End()

	span.SetAttributes(
		attribute.String("stream_id", streamID),
		attribute.String("event_type", eventType),
	)

	raw, err := marshalPayload(payload)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO events (stream_id, type, payload)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id int64
	if err := s.pool.QueryRow(ctx, query, streamID, eventType, raw).Scan(&id); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			s.logger,
			"Failed to append event",
			zap.String("stream_id", streamID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)

		return 0, fmt.Errorf("failed to append event: %w", err)
	}

	return id, nil
}

func (s *postgresStore) ReadStream(ctx context.Context, streamID string) ([]domain.Event, error) {
	ctx, span := s.tracer.Start(ctx, "EventStore.ReadStream")
	defer span.End()

	span.SetAttributes(attribute.String("stream_id", streamID))

	query := `
		SELECT id, stream_id, type, payload, created_at
		FROM events
		WHERE stream_id = $1
		ORDER BY id ASC
	`

	return s.queryEvents(ctx, query, streamID)
}

func (s *postgresStore) ReadAll(ctx context.Context) ([]domain.Event, error) {
	ctx, span := s.tracer.Start(ctx, "EventStore.ReadAll")
	defer span.End()

	query := `
		SELECT id, stream_id, type, payload, created_at
		FROM events
		ORDER BY id ASC
	`

	return s.queryEvents(ctx, query)
}

func (s *postgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to query events", zap.Error(err))
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.StreamID, &e.Type, &e.Payload, &e.Timestamp); err != nil {
			mylogger.Error(ctx, s.logger, "Failed to scan event row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}
