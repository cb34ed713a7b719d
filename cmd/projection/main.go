package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sakashimaa/go-saga-orders/internal/bus"
	"github.com/sakashimaa/go-saga-orders/internal/eventlog"
	"github.com/sakashimaa/go-saga-orders/internal/projection"
	"github.com/sakashimaa/go-saga-orders/internal/readmodel"
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

	tp, err := utils.InitTracer(ctx, "projection-service")
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

	events := eventlog.NewPostgresStore(pool, logger)
	readModel := readmodel.NewPostgresRepository(pool, logger)

	// REBUILD=1 replays the whole event log into the read model before
	// consuming live traffic, for recovery after a wipe or schema change.
	if utils.ParseWithFallback("REBUILD", "") != "" {
		mylogger.Info(ctx, logger, "Rebuilding read model from event log")
		if err := projection.Rebuild(ctx, events, readModel); err != nil {
			log.Fatalf("failed to rebuild read model: %v", err)
		}
	}

	eventBus, err := bus.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, bus.NewLogSink(logger), logger)
	if err != nil {
		log.Fatalf("failed to connect to amqp: %v", err)
	}

	proj := projection.New(readModel, logger)

	if err := proj.Start(ctx, eventBus); err != nil {
		log.Fatalf("failed to start projection consumer: %v", err)
	}

	mylogger.Info(ctx, logger, "Projection service started")

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), time.Second*5)
	defer exit()

	mylogger.Info(
		shutdownCtx,
		logger,
		"Shutting down projection service",
	)

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
