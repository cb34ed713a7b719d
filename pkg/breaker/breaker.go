package breaker

import (
	"context"
	"time"

	"github.com/sakashimaa/go-saga-orders/pkg/config"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// New builds a circuit breaker with a rolling error-rate window: the breaker
// trips once at least MinRequests calls were observed inside Window and the
// failure ratio crosses FailureThreshold. After Cooldown a single trial call
// is let through (half-open) to decide whether to close again.
func New(name string, cfg config.Breaker, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Execute runs fn through the breaker with a typed result.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return *new(T), err
	}

	return res.(T), nil
}

// ExecuteCtx runs fn through the breaker under a per-call timeout. A timeout
// counts as a call failure for the breaker's error-rate accounting.
func ExecuteCtx[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	return Execute(cb, func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return fn(callCtx)
	})
}
