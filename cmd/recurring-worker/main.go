package main

import (
	"context"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting recurring-worker")

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	runtime, err := cli.OpenLedger(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}

	// Consumer for changes written by the API server.
	var consumer *amqp.Client
	if cfg.AMQPEnabled() {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP consumer, relying on the interval only", "error", err)
			consumer = nil
		}
	} else {
		logger.Info("AMQP disabled, templates are expanded on the interval only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP consumer close error", "error", err)
			}
		}
		if err := runtime.Close(ctx); err != nil {
			logger.Error("Ledger shutdown error", "error", err)
		}
	})

	w := worker.NewRecurringWorker(runtime.Ledger, cfg.RecurringInterval)
	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"backend", cfg.DataBackend)

	if consumer != nil {
		go func() {
			if err := consumer.ConsumeChanges(ctx, w.HandleChangeMessage); err != nil && ctx.Err() == nil {
				logger.Error("Change consumer stopped", "error", err)
			}
		}()
	}

	w.Run(ctx)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
