package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/internal/payment"
	"github.com/sakashimaa/go-saga-orders/pkg/breaker"
	"github.com/sakashimaa/go-saga-orders/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOrderLookup struct {
	order *domain.Order
	err   error
	calls int
}

func (s *stubOrderLookup) GetOrder(_ context.Context, _ string) (*domain.Order, error) {
	s.calls++
	return s.order, s.err
}

func amount(v int64) *int64 { return &v }

func newService(t *testing.T, initial int64, lookup payment.OrderLookup) (payment.Service, payment.Repository, eventlog.Store) {
	t.Helper()
	ctx := context.Background()

	repo := payment.NewMemoryRepository()
	require.NoError(t, repo.EnsureMainBalance(ctx, initial))

	events := eventlog.NewMemoryStore()
	b := bus.NewMemory(bus.NewRecordSink())

	cfg := config.Breaker{
		CallTimeout:      time.Second,
		Cooldown:         5 * time.Second,
		Window:           time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      5,
	}
	cb := breaker.New("payment-order-lookup", cfg, zap.NewNop())

	return payment.NewService(repo, events, b, lookup, cb, time.Second, zap.NewNop()), repo, events
}

func TestProcessPayment_ExplicitAmountWins(t *testing.T) {
	ctx := context.Background()
	lookup := &stubOrderLookup{}
	svc, repo, _ := newService(t, 1000, lookup)

	p, err := svc.ProcessPayment(ctx, domain.PaymentRequestPayload{
		OrderID: "o1",
		Items:   []domain.OrderItem{{SKU: "A", Qty: 10, Price: 10}},
		Amount:  amount(30),
	})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	assert.Equal(t, int64(30), p.Amount)
	assert.Zero(t, lookup.calls)

	balance, err := repo.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(970), balance)
}

func TestProcessPayment_FallsBackToItemTotal(t *testing.T) {
	ctx := context.Background()
	lookup := &stubOrderLookup{}
	svc, repo, _ := newService(t, 1000, lookup)

	p, err := svc.ProcessPayment(ctx, domain.PaymentRequestPayload{
		OrderID: "o1",
		Items: []domain.OrderItem{
			{SKU: "A", Qty: 2, Price: 10},
			{SKU: "B", Qty: 1, Price: 30},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Amount)
	assert.Zero(t, lookup.calls)

	balance, err := repo.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(950), balance)
}

func TestProcessPayment_FallsBackToOrderLookup(t *testing.T) {
	ctx := context.Background()
	lookup := &stubOrderLookup{order: &domain.Order{ID: "o1", TotalPrice: 120}}
	svc, repo, _ := newService(t, 1000, lookup)

	p, err := svc.ProcessPayment(ctx, domain.PaymentRequestPayload{OrderID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	assert.Equal(t, int64(120), p.Amount)
	assert.Equal(t, 1, lookup.calls)

	balance, err := repo.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(880), balance)
}

func TestProcessPayment_LookupFailureFailsThePayment(t *testing.T) {
	ctx := context.Background()
	lookup := &stubOrderLookup{err: errors.New("connection refused")}
	svc, repo, events := newService(t, 1000, lookup)

	p, err := svc.ProcessPayment(ctx, domain.PaymentRequestPayload{OrderID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.Equal(t, "failed_fetch_order", p.Reason)

	balance, err := repo.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	logged, err := events.ReadStream(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.EventPaymentFailed, logged[0].Type)
}

func TestProcessPayment_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t, 50, &stubOrderLookup{})

	p, err := svc.ProcessPayment(ctx, domain.PaymentRequestPayload{
		OrderID: "o1",
		Amount:  amount(80),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.Equal(t, domain.ReasonInsufficientFunds, p.Reason)

	// A rejected debit never changes the balance.
	balance, err := repo.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestProcessPayment_EmptyRequestIsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, _, events := newService(t, 1000, &stubOrderLookup{})

	p, err := svc.ProcessPayment(ctx, domain.PaymentRequestPayload{})
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)
	assert.Nil(t, p)

	all, err := events.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProcessPayment_RecordsCompletedAttempt(t *testing.T) {
	ctx := context.Background()
	svc, _, events := newService(t, 1000, &stubOrderLookup{})

	p, err := svc.ProcessPayment(ctx, domain.PaymentRequestPayload{OrderID: "o1", Amount: amount(30)})
	require.NoError(t, err)

	logged, err := events.ReadStream(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.EventPaymentProcessed, logged[0].Type)
}
