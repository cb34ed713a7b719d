package readmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPostgresRepository(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("readmodel/postgres_repo"),
	}
}

func (r *postgresRepo) InsertCreated(ctx context.Context, order domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "ReadModelRepository.InsertCreated")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", order.ID))

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	query := `
		INSERT INTO orders (id, items, total_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query,
		order.ID,
		items,
		order.TotalPrice,
		string(domain.OrderStatusCreated),
		order.CreatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert projected order",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert projected order: %w", err)
	}

	return nil
}

func (r *postgresRepo) SetStatus(ctx context.Context, id string, status domain.OrderStatus, reason string) error {
	ctx, span := r.tracer.Start(ctx, "ReadModelRepository.SetStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id),
		attribute.String("status", string(status)),
	)

	// Guarded targeted update: only an order still in CREATED moves. A
	// duplicate or late lifecycle event hits zero rows and is ignored.
	query := `
		UPDATE orders
		SET status = $2,
			reason = NULLIF($3, '')
		WHERE id = $1 AND status = $4
	`

	tag, err := r.pool.Exec(ctx, query, id, string(status), reason, string(domain.OrderStatusCreated))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update projected order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		mylogger.Debug(
			ctx,
			r.logger,
			"Ignoring status update for settled or unknown order",
			zap.String("order_id", id),
			zap.String("status", string(status)),
		)
	}

	return nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "ReadModelRepository.Get")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	query := `
		SELECT id, items, total_price, status, COALESCE(reason, ''), created_at
		FROM orders
		WHERE id = $1
	`

	var (
		order domain.Order
		items []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&items,
		&order.TotalPrice,
		&order.Status,
		&order.Reason,
		&order.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get projected order: %w", err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}

	return &order, nil
}

func (r *postgresRepo) All(ctx context.Context) (map[string]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "ReadModelRepository.All")
	defer span.End()

	query := `
		SELECT id, items, total_price, status, COALESCE(reason, ''), created_at
		FROM orders
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projected orders: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Order)
	for rows.Next() {
		var (
			order domain.Order
			items []byte
		)
		if err := rows.Scan(
			&order.ID,
			&items,
			&order.TotalPrice,
			&order.Status,
			&order.Reason,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan projected order: %w", err)
		}
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items: %w", err)
		}
		out[order.ID] = order
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}
