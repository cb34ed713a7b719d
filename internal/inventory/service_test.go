package inventory_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/internal/inventory"
	"github.com/sakashimaa/go-saga-orders/pkg/breaker"
	"github.com/sakashimaa/go-saga-orders/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func breakerConfig() config.Breaker {
	return config.Breaker{
		CallTimeout:      time.Second,
		Cooldown:         5 * time.Second,
		Window:           time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      5,
	}
}

type fixture struct {
	repo    inventory.Repository
	events  eventlog.Store
	bus     *bus.Memory
	service inventory.Service

	published []bus.Delivery
}

func newFixture(t *testing.T, seed []domain.InventoryRecord) *fixture {
	return newFixtureWithBreaker(t, seed, breakerConfig())
}

func newFixtureWithBreaker(t *testing.T, seed []domain.InventoryRecord, cfg config.Breaker) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		repo:   inventory.NewMemoryRepository(),
		events: eventlog.NewMemoryStore(),
		bus:    bus.NewMemory(bus.NewRecordSink()),
	}
	require.NoError(t, f.repo.Seed(ctx, seed))

	require.NoError(t, f.bus.Subscribe(ctx, "observer", []string{"inventory.*"}, func(_ context.Context, d bus.Delivery) error {
		f.published = append(f.published, d)
		return nil
	}))

	cb := breaker.New("inventory-reserve", cfg, zap.NewNop())
	f.service = inventory.NewService(f.repo, f.events, f.bus, cb, cfg.CallTimeout, zap.NewNop())
	return f
}

func orderCreated(id string, items []domain.OrderItem) domain.OrderCreatedPayload {
	return domain.OrderCreatedPayload{
		ID: id,
		Order: domain.Order{
			ID:         id,
			Items:      items,
			TotalPrice: domain.TotalOf(items),
			Status:     domain.OrderStatusCreated,
		},
	}
}

func TestHandleOrderCreated_ReservesAndPublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []domain.InventoryRecord{{SKU: "A", Qty: 10, Price: 10}})

	items := []domain.OrderItem{{SKU: "A", Qty: 2, Price: 10}}
	require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("o1", items)))
	f.bus.Flush()

	rec, err := f.repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(8), rec.Qty)

	require.Len(t, f.published, 1)
	assert.Equal(t, domain.TopicInventoryReserved, f.published[0].Topic)

	var payload domain.InventoryReservedPayload
	require.NoError(t, json.Unmarshal(f.published[0].Body, &payload))
	assert.Equal(t, "o1", payload.ID)
	assert.Equal(t, items, payload.Items)

	logged, err := f.events.ReadStream(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.EventInventoryReserved, logged[0].Type)
}

func TestHandleOrderCreated_UnderStockedFailsWholeOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []domain.InventoryRecord{
		{SKU: "A", Qty: 10, Price: 10},
		{SKU: "B", Qty: 0, Price: 10},
	})

	items := []domain.OrderItem{
		{SKU: "A", Qty: 2, Price: 10},
		{SKU: "B", Qty: 1, Price: 10},
	}
	require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("o1", items)))
	f.bus.Flush()

	// All or nothing: the available SKU keeps its full quantity.
	rec, err := f.repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Qty)

	require.Len(t, f.published, 1)
	assert.Equal(t, domain.TopicInventoryReservationFailed, f.published[0].Topic)

	var payload domain.ReservationFailedPayload
	require.NoError(t, json.Unmarshal(f.published[0].Body, &payload))
	assert.Equal(t, "o1", payload.ID)
	assert.Equal(t, "insufficient_stock B", payload.Reason)

	logged, err := f.events.ReadStream(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.EventReservationFailed, logged[0].Type)
}

func TestHandleOrderCreated_OpenBreakerShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []domain.InventoryRecord{{SKU: "A", Qty: 10, Price: 10}})

	// Five straight business failures trip the breaker.
	missing := []domain.OrderItem{{SKU: "missing", Qty: 1, Price: 10}}
	for i := 0; i < 5; i++ {
		require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("bad", missing)))
	}
	f.bus.Flush()

	f.published = nil
	available := []domain.OrderItem{{SKU: "A", Qty: 1, Price: 10}}
	require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("o9", available)))
	f.bus.Flush()

	// Short-circuited without touching storage.
	rec, err := f.repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Qty)

	require.Len(t, f.published, 1)
	assert.Equal(t, domain.TopicInventoryReservationFailed, f.published[0].Topic)

	var payload domain.ReservationFailedPayload
	require.NoError(t, json.Unmarshal(f.published[0].Body, &payload))
	assert.Equal(t, inventory.ReasonUnavailable, payload.Reason)
}

func TestHandleOrderCreated_BreakerClosesAfterCooldown(t *testing.T) {
	ctx := context.Background()

	cfg := breakerConfig()
	cfg.Cooldown = 50 * time.Millisecond
	f := newFixtureWithBreaker(t, []domain.InventoryRecord{{SKU: "A", Qty: 10, Price: 10}}, cfg)

	missing := []domain.OrderItem{{SKU: "missing", Qty: 1, Price: 10}}
	for i := 0; i < 5; i++ {
		require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("bad", missing)))
	}
	f.bus.Flush()

	// Open: the next attempt is short-circuited.
	f.published = nil
	available := []domain.OrderItem{{SKU: "A", Qty: 1, Price: 10}}
	require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("o1", available)))
	f.bus.Flush()

	require.Len(t, f.published, 1)
	assert.Equal(t, domain.TopicInventoryReservationFailed, f.published[0].Topic)

	rec, err := f.repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Qty)

	// After the cooldown the half-open trial call goes through; its success
	// closes the breaker again.
	time.Sleep(2 * cfg.Cooldown)

	f.published = nil
	require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("o2", available)))
	require.NoError(t, f.service.HandleOrderCreated(ctx, orderCreated("o3", available)))
	f.bus.Flush()

	require.Len(t, f.published, 2)
	assert.Equal(t, domain.TopicInventoryReserved, f.published[0].Topic)
	assert.Equal(t, domain.TopicInventoryReserved, f.published[1].Topic)

	rec, err = f.repo.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(8), rec.Qty)
}
