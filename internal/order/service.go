package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/internal/inventory"
	"github.com/sakashimaa/go-saga-orders/internal/readmodel"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrNoItems rejects an order creation with an empty or invalid item list
// synchronously; no event is emitted for it.
var ErrNoItems = errors.New("order must contain at least one item")

// ErrOrderNotFound is returned while the projection has not materialized
// the order yet; callers poll until it appears.
var ErrOrderNotFound = readmodel.ErrOrderNotFound

// ItemRequest is one {sku, qty} line of a creation request, priced by the
// service from the inventory snapshot.
type ItemRequest struct {
	SKU string `json:"sku"`
	Qty int64  `json:"qty"`
}

type Service interface {
	// CreateOrder prices the items, appends OrderCreated and publishes
	// order.created. The id returns before the saga settles the order.
	CreateOrder(ctx context.Context, items []ItemRequest) (string, error)

	// GetOrder reads the projection's read model, never the event log.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type service struct {
	events       eventlog.Store
	bus          bus.Bus
	inventory    inventory.Repository
	readModel    readmodel.Repository
	bulkhead     *semaphore.Weighted
	defaultPrice int64
	logger       *zap.Logger
	tracer       trace.Tracer
}

func NewService(
	events eventlog.Store,
	b bus.Bus,
	inventoryRepo inventory.Repository,
	readModel readmodel.Repository,
	maxInFlight int64,
	defaultPrice int64,
	logger *zap.Logger,
) Service {
	return &service{
		events:       events,
		bus:          b,
		inventory:    inventoryRepo,
		readModel:    readModel,
		bulkhead:     semaphore.NewWeighted(maxInFlight),
		defaultPrice: defaultPrice,
		logger:       logger,
		tracer:       otel.Tracer("order/service"),
	}
}

func (s *service) CreateOrder(ctx context.Context, items []ItemRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(attribute.Int("items_count", len(items)))

	if err := validateItems(items); err != nil {
		return "", err
	}

	// Bulkhead: a bounded number of creations run at once, the rest queue
	// here until a slot frees up. Nothing is rejected.
	if err := s.bulkhead.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire order slot: %w", err)
	}
	defer s.bulkhead.Release(1)

	priced, err := s.priceItems(ctx, items)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	order := domain.Order{
		ID:         uuid.NewString(),
		Items:      priced,
		TotalPrice: domain.TotalOf(priced),
		Status:     domain.OrderStatusCreated,
		CreatedAt:  time.Now().UTC(),
	}

	payload := domain.OrderCreatedPayload{ID: order.ID, Order: order}

	if _, err := s.events.Append(ctx, order.ID, domain.EventOrderCreated, payload); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to append OrderCreated: %w", err)
	}

	if err := s.bus.Publish(ctx, domain.TopicOrderCreated, payload); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish order.created: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID),
		zap.Int64("total_price", order.TotalPrice),
	)

	return order.ID, nil
}

func (s *service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id))

	return s.readModel.Get(ctx, id)
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for _, it := range items {
		if it.SKU == "" || it.Qty <= 0 {
			return ErrNoItems
		}
	}
	return nil
}

// priceItems resolves unit prices from the current inventory snapshot.
// Read-only: no stock is reserved here; unknown SKUs get the default price.
func (s *service) priceItems(ctx context.Context, items []ItemRequest) ([]domain.OrderItem, error) {
	snapshot, err := s.inventory.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory snapshot: %w", err)
	}

	priced := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		price := s.defaultPrice
		if rec, ok := snapshot[it.SKU]; ok && rec.Price > 0 {
			price = rec.Price
		}
		priced = append(priced, domain.OrderItem{
			SKU:   it.SKU,
			Qty:   it.Qty,
			Price: price,
		})
	}

	return priced, nil
}
