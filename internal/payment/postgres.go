package payment

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

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPostgresRepository(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("payment/postgres_repo"),
	}
}

func (r *postgresRepo) EnsureMainBalance(ctx context.Context, initial int64) error {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.EnsureMainBalance")
	defer span.End()

	query := `
		INSERT INTO balances (id, balance)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, domain.BalanceID, initial); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to ensure main balance: %w", err)
	}

	return nil
}

func (r *postgresRepo) GetBalance(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.GetBalance")
	defer span.End()

	query := `
		SELECT balance
		FROM balances
		WHERE id = $1
	`

	var balance int64
	if err := r.pool.QueryRow(ctx, query, domain.BalanceID).Scan(&balance); err != nil {
		span.RecordError(err)

		mylogger.Error(ctx, r.logger, "Failed to read balance", zap.Error(err))

		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	return balance, nil
}

// Debit is a single conditional decrement: the guard and the decrement are
// one statement, so concurrent debits can never overdraw the balance.
func (r *postgresRepo) Debit(ctx context.Context, amount int64) error {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.Debit")
	defer span.End()

	span.SetAttributes(attribute.Int64("amount", amount))

	query := `
		UPDATE balances
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`

	tag, err := r.pool.Exec(ctx, query, domain.BalanceID, amount)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}

	return nil
}
