package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/internal/payment"
	paymenthttp "github.com/sakashimaa/go-saga-orders/internal/payment/transport/http"
	"github.com/sakashimaa/go-saga-orders/pkg/breaker"
	"github.com/sakashimaa/go-saga-orders/pkg/config"
	"github.com/sakashimaa/go-saga-orders/pkg/db"
	"github.com/sakashimaa/go-saga-orders/pkg/mylogger"
	"github.com/sakashimaa/go-saga-orders/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, "payment-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	cfg := config.MustLoad()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	loggerCfg := config.LoggerConfig{
		Level: "info",
		Env:   cfg.Env,
	}
	logger, err := config.NewLogger(loggerCfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("failed to sync logger: %v", err)
		}
	}()

	eventBus, err := bus.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, bus.NewLogSink(logger), logger)
	if err != nil {
		log.Fatalf("failed to connect to amqp: %v", err)
	}

	events := eventlog.NewPostgresStore(pool, logger)
	paymentRepo := payment.NewPostgresRepository(pool, logger)

	if err := paymentRepo.EnsureMainBalance(ctx, cfg.Payment.InitialBalance); err != nil {
		log.Fatalf("failed to seed balance: %v", err)
	}

	orderURL := utils.ParseWithFallback("ORDER_SERVICE_URL", "http://localhost:4100")
	orders := payment.NewHTTPOrderLookup(orderURL)

	cb := breaker.New("payment-order-lookup", cfg.Breaker, logger)

	paymentService := payment.NewService(
		paymentRepo,
		events,
		eventBus,
		orders,
		cb,
		cfg.Breaker.CallTimeout,
		logger,
	)

	if err := paymentService.Start(ctx); err != nil {
		log.Fatalf("failed to start payment consumer: %v", err)
	}

	paymentHandler := paymenthttp.NewPaymentHandler(paymentService, logger)

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	paymenthttp.RegisterRoutes(app, paymentHandler)

	port := utils.ParseWithFallback("PORT", ":4300")

	go func() {
		log.Println("HTTP Service listening on: " + port)
		if err := app.Listen(port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", port, err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), time.Second*5)
	defer exit()

	mylogger.Info(
		shutdownCtx,
		logger,
		"Shutting down payment service",
	)

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	}

	if err := eventBus.Close(); err != nil {
		log.Printf("Error closing amqp connection: %v\n", err)
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(
			shutdownCtx,
			logger,
			"Failed to shut down telemetry",
			zap.Error(err),
		)
	}

	pool.Close()
}
