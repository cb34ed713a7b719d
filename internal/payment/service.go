package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/pkg/breaker"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrInvalidRequest rejects a request carrying neither an order id, nor
// items, nor an amount. Rejected synchronously, no event is emitted.
var ErrInvalidRequest = errors.New("orderId or items or amount is required")

// OrderLookup resolves an order's stored totalPrice when a payment request
// carries no usable amount. The concrete implementation is the order
// service reached through service discovery; calls go through the breaker.
type OrderLookup interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type Service interface {
	Start(ctx context.Context) error
	ProcessPayment(ctx context.Context, req domain.PaymentRequestPayload) (*domain.Payment, error)
	GetBalance(ctx context.Context) (int64, error)
}

type service struct {
	repo        Repository
	events      eventlog.Store
	bus         bus.Bus
	orders      OrderLookup
	cb          *gobreaker.CircuitBreaker
	callTimeout time.Duration
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewService(
	repo Repository,
	events eventlog.Store,
	b bus.Bus,
	orders OrderLookup,
	cb *gobreaker.CircuitBreaker,
	callTimeout time.Duration,
	logger *zap.Logger,
) Service {
	return &service{
		repo:        repo,
		events:      events,
		bus:         b,
		orders:      orders,
		cb:          cb,
		callTimeout: callTimeout,
		logger:      logger,
		tracer:      otel.Tracer("payment/service"),
	}
}

func (s *service) Start(ctx context.Context) error {
	return s.bus.Subscribe(ctx, "payment-service", []string{domain.TopicPaymentRequest}, s.processMessage)
}

func (s *service) processMessage(ctx context.Context, d bus.Delivery) error {
	var req domain.PaymentRequestPayload
	if err := json.Unmarshal(d.Body, &req); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to unmarshal payment.request", zap.Error(err))
		return err
	}

	// ProcessPayment converts every business and unexpected failure into a
	// published payment.failed; only a failure to get that terminal signal
	// out lands the message in the dead letter.
	_, err := s.ProcessPayment(ctx, req)
	if errors.Is(err, ErrInvalidRequest) {
		mylogger.Warn(ctx, s.logger, "Ignoring malformed payment request", zap.Error(err))
		return nil
	}
	return err
}

func (s *service) GetBalance(ctx context.Context) (int64, error) {
	return s.repo.GetBalance(ctx)
}

// ProcessPayment settles one payment attempt. Amount precedence: explicit
// amount, then a total computed from priced items, then the order's stored
// totalPrice fetched through the order lookup. The returned Payment carries
// the outcome; a FAILED payment is a normal business result, not an error.
func (s *service) ProcessPayment(ctx context.Context, req domain.PaymentRequestPayload) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.ProcessPayment")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", req.OrderID))

	amount, resolved := resolveAmount(req)
	if !resolved && req.OrderID == "" {
		return nil, ErrInvalidRequest
	}

	if !resolved {
		var err error
		amount, err = s.fetchOrderTotal(ctx, req.OrderID)
		if err != nil {
			span.RecordError(err)
			return s.failPayment(ctx, req.OrderID, 0, "failed_fetch_order")
		}
	}

	balance, err := s.repo.GetBalance(ctx)
	if err != nil {
		span.RecordError(err)
		return s.failPayment(ctx, req.OrderID, amount, "processing_error")
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Processing payment",
		zap.String("order_id", req.OrderID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance),
	)

	if balance < amount {
		return s.failPayment(ctx, req.OrderID, amount, domain.ReasonInsufficientFunds)
	}

	if err := s.repo.Debit(ctx, amount); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			// Lost the race against a concurrent debit.
			return s.failPayment(ctx, req.OrderID, amount, domain.ReasonInsufficientFunds)
		}

		span.RecordError(err)
		return s.failPayment(ctx, req.OrderID, amount, "processing_error")
	}

	p := domain.Payment{
		ID:        uuid.NewString(),
		OrderID:   req.OrderID,
		Amount:    amount,
		Status:    domain.PaymentStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.events.Append(ctx, p.ID, domain.EventPaymentProcessed, p); err != nil {
		return nil, fmt.Errorf("failed to append PaymentProcessed: %w", err)
	}

	if err := s.bus.Publish(ctx, domain.TopicPaymentProcessed, domain.PaymentResultPayload{Payment: p}); err != nil {
		return nil, fmt.Errorf("failed to publish payment.processed: %w", err)
	}

	return &p, nil
}

// resolveAmount applies the first two precedence levels. A missing or zero
// amount falls through to the items, an empty item list falls through to
// the order lookup.
func resolveAmount(req domain.PaymentRequestPayload) (int64, bool) {
	if req.Amount != nil && *req.Amount != 0 {
		return *req.Amount, true
	}

	if len(req.Items) > 0 {
		return domain.TotalOf(req.Items), true
	}

	return 0, false
}

func (s *service) fetchOrderTotal(ctx context.Context, orderID string) (int64, error) {
	order, err := breaker.ExecuteCtx(ctx, s.cb, s.callTimeout, func(callCtx context.Context) (*domain.Order, error) {
		return s.orders.GetOrder(callCtx, orderID)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}
	if order == nil {
		return 0, fmt.Errorf("order %s not found", orderID)
	}

	return order.TotalPrice, nil
}

// failPayment records and publishes a failed attempt so the saga always
// receives a terminal signal for a requested payment.
func (s *service) failPayment(ctx context.Context, orderID string, amount int64, reason string) (*domain.Payment, error) {
	p := domain.Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Amount:    amount,
		Status:    domain.PaymentStatusFailed,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	mylogger.Warn(
		ctx,
		s.logger,
		"Payment failed",
		zap.String("order_id", orderID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
	)

	if _, err := s.events.Append(ctx, p.ID, domain.EventPaymentFailed, p); err != nil {
		return nil, fmt.Errorf("failed to append PaymentFailed: %w", err)
	}

	if err := s.bus.Publish(ctx, domain.TopicPaymentFailed, domain.PaymentResultPayload{Payment: p}); err != nil {
		return nil, fmt.Errorf("failed to publish payment.failed: %w", err)
	}

	return &p, nil
}
