package inventory

import (
	"context"
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
		tracer: otel.Tracer("inventory/postgres_repo"),
	}
}

// Reserve decrements every requested SKU inside one transaction. Each
// decrement is conditional on remaining stock, so a concurrent reservation
// for the same SKU can never drive qty below zero; the first rejected
// decrement rolls the whole transaction back.
func (r *postgresRepo) Reserve(ctx context.Context, items []domain.OrderItem) error {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Reserve")
	defer span.End()

	span.SetAttributes(attribute.Int("items_count", len(items)))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(
				cleanupCtx,
				r.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	query := `
		UPDATE inventory
		SET qty = qty - $2
		WHERE sku = $1 AND qty >= $2
	`

	for _, it := range items {
		tag, err := tx.Exec(ctx, query, it.SKU, it.Qty)
		if err != nil {
			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to decrement stock",
				zap.String("sku", it.SKU),
				zap.Error(err),
			)

			return fmt.Errorf("failed to decrement stock for %s: %w", it.SKU, err)
		}

		if tag.RowsAffected() == 0 {
			return &InsufficientStockError{SKU: it.SKU}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	return nil
}

func (r *postgresRepo) Snapshot(ctx context.Context) (map[string]domain.InventoryRecord, error) {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Snapshot")
	defer span.End()

	query := `
		SELECT sku, qty, price
		FROM inventory
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to query inventory", zap.Error(err))
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	records := make(map[string]domain.InventoryRecord)
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.SKU, &rec.Qty, &rec.Price); err != nil {
			return nil, fmt.Errorf("failed to scan inventory record: %w", err)
		}
		records[rec.SKU] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

func (r *postgresRepo) Get(ctx context.Context, sku string) (*domain.InventoryRecord, error) {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Get")
	defer span.End()

	span.SetAttributes(attribute.String("sku", sku))

	query := `
		SELECT sku, qty, price
		FROM inventory
		WHERE sku = $1
	`

	var rec domain.InventoryRecord
	err := r.pool.QueryRow(ctx, query, sku).Scan(&rec.SKU, &rec.Qty, &rec.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory record: %w", err)
	}

	return &rec, nil
}

func (r *postgresRepo) Seed(ctx context.Context, records []domain.InventoryRecord) error {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Seed")
	defer span.End()

	query := `
		INSERT INTO inventory (sku, qty, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (sku) DO UPDATE SET qty = EXCLUDED.qty, price = EXCLUDED.price
	`

	for _, rec := range records {
		if _, err := r.pool.Exec(ctx, query, rec.SKU, rec.Qty, rec.Price); err != nil {
			return fmt.Errorf("failed to seed %s: %w", rec.SKU, err)
		}
	}

	return nil
}
