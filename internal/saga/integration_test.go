package saga_test

import (
	"testing"
	"time"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/internal/inventory"
	"github.com/sakashimaa/go-saga-orders/internal/order"
	"github.com/sakashimaa/go-saga-orders/internal/payment"
	"github.com/sakashimaa/go-saga-orders/internal/projection"
	"github.com/sakashimaa/go-saga-orders/internal/readmodel"
	"github.com/sakashimaa/go-saga-orders/internal/saga"
	"github.com/sakashimaa/go-saga-orders/pkg/breaker"
	"github.com/sakashimaa/go-saga-orders/pkg/config"
	"github.com/sakashimaa/go-saga-orders/pkg/testsuite"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	eventBus  *bus.AMQP
	events    eventlog.Store
	orders    order.Service
	payments  payment.Repository
	readModel readmodel.Repository
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed suite in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.SetupInfrastructure("../../migrations")

	logger := zap.NewNop()

	var err error
	s.eventBus, err = bus.NewAMQP(s.AmqpURL, "events", bus.NewLogSink(logger), logger)
	s.Require().NoError(err)

	s.events = eventlog.NewPostgresStore(s.DbPool, logger)
	s.readModel = readmodel.NewPostgresRepository(s.DbPool, logger)
	s.payments = payment.NewPostgresRepository(s.DbPool, logger)
	inventoryRepo := inventory.NewPostgresRepository(s.DbPool, logger)

	cfg := config.Breaker{
		CallTimeout:      5 * time.Second,
		Cooldown:         5 * time.Second,
		Window:           time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      5,
	}

	inventoryService := inventory.NewService(
		inventoryRepo, s.events, s.eventBus,
		breaker.New("inventory-reserve", cfg, logger), cfg.CallTimeout, logger,
	)
	s.Require().NoError(inventoryService.Start(s.Ctx))

	paymentService := payment.NewService(
		s.payments, s.events, s.eventBus, noLookup{},
		breaker.New("payment-order-lookup", cfg, logger), cfg.CallTimeout, logger,
	)
	s.Require().NoError(paymentService.Start(s.Ctx))

	s.Require().NoError(saga.NewCoordinator(s.eventBus, logger).Start(s.Ctx))
	s.Require().NoError(projection.New(s.readModel, logger).Start(s.Ctx, s.eventBus))

	s.orders = order.NewService(s.events, s.eventBus, inventoryRepo, s.readModel, 5, 10, logger)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.eventBus != nil {
		s.Require().NoError(s.eventBus.Close())
	}
	s.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.TruncateTable("events")
	s.TruncateTable("inventory")
	s.TruncateTable("balances")
	s.TruncateTable("orders")

	s.Require().NoError(s.payments.EnsureMainBalance(s.Ctx, 1000))
}

func (s *IntegrationTestSuite) seedStock(records ...domain.InventoryRecord) {
	repo := inventory.NewPostgresRepository(s.DbPool, zap.NewNop())
	s.Require().NoError(repo.Seed(s.Ctx, records))
}

func (s *IntegrationTestSuite) waitForStatus(id string, want domain.OrderStatus) domain.Order {
	var settled domain.Order

	s.Require().Eventually(func() bool {
		got, err := s.readModel.Get(s.Ctx, id)
		if err != nil {
			return false
		}
		settled = *got
		return got.Status == want
	}, 10*time.Second, 100*time.Millisecond)

	return settled
}

func (s *IntegrationTestSuite) TestOrderConfirmedEndToEnd() {
	s.seedStock(domain.InventoryRecord{SKU: "A", Qty: 10, Price: 10})

	id, err := s.orders.CreateOrder(s.Ctx, []order.ItemRequest{{SKU: "A", Qty: 2}})
	s.Require().NoError(err)

	settled := s.waitForStatus(id, domain.OrderStatusConfirmed)
	s.Require().Equal(int64(20), settled.TotalPrice)

	balance, err := s.payments.GetBalance(s.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(int64(980), balance)

	var qty int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, "SELECT qty FROM inventory WHERE sku = $1", "A").Scan(&qty))
	s.Require().Equal(int64(8), qty)
}

func (s *IntegrationTestSuite) TestUnderStockedOrderFails() {
	s.seedStock(domain.InventoryRecord{SKU: "B", Qty: 0, Price: 10})

	id, err := s.orders.CreateOrder(s.Ctx, []order.ItemRequest{{SKU: "B", Qty: 1}})
	s.Require().NoError(err)

	settled := s.waitForStatus(id, domain.OrderStatusFailed)
	s.Require().Equal("insufficient_stock B", settled.Reason)

	balance, err := s.payments.GetBalance(s.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(int64(1000), balance)
}
