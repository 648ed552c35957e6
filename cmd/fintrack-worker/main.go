package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		// Not fatal: production passes real environment variables.
		log.New(log.DefaultConfig()).Warn("Could not load .env file", "error", err)
	}

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker consumes events itself and publishes none.
	bcfg.AMQPURL = ""
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reconciler := services.NewReconciler(be.Store)
	processor := services.NewReconcileProcessor(be.Store, reconciler, services.ReconcileProcessorConfig{
		Interval:  cfg.ReconcileInterval,
		BatchSize: cfg.ReconcileBatchSize,
	})
	w := worker.NewReconcileWorker(reconciler, processor)

	// Cover events published while the worker was down.
	logger.Info("Performing startup reconcile sweep...")
	if err := w.StartupSweep(ctx); err != nil {
		logger.Error("Startup sweep failed", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start reconcile processor", "error", err)
		os.Exit(1)
	}

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.ConsumeLedgerEvents(ctx, w.HandleLedgerEvent)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Reconcile processor shutdown timed out", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
