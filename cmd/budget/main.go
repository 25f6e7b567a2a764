package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/adapters/exchangerate"
	"budget/internal/adapters/ocr"
	"budget/internal/cli"
	"budget/internal/core"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/rates"
	"budget/internal/receipt"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	runtime, err := cli.OpenLedger(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}

	rateService := rates.NewService(
		exchangerate.New(cfg.RatesURL, cfg.RatesTimeout),
		rates.Config{
			Reference: core.Currency(cfg.ReferenceCurrency),
			TTL:       cfg.RatesTTL,
			Timeout:   cfg.RatesTimeout,
		},
		runtime.Ledger.Snapshot().Rates,
	)

	var recognizer receipt.Recognizer = ocr.Unavailable{}
	if cfg.OCREnabled() {
		recognizer = ocr.NewTesseract(cfg.OCRCommand, cfg.OCRLanguages)
	} else {
		logger.Info("Text recognition disabled, scans return the placeholder text")
	}
	scanner := receipt.NewScanner(recognizer, receipt.ScannerConfig{Timeout: cfg.OCRTimeout})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:            runtime.Ledger,
		Rates:             rateService,
		Scanner:           scanner,
		Logger:            logger,
		ScanRatePerMinute: cfg.ScanRatePerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := runtime.Close(ctx); err != nil {
			logger.Error("Ledger shutdown error", "error", err)
		}
	})

	// Refresh the rate table once per session in the background.
	go runtime.Ledger.RefreshRates(ctx, rateService)

	// Templates that come due while the server runs.
	go func() {
		ticker := time.NewTicker(cfg.RecurringInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runtime.Ledger.ApplyRecurring(ctx)
			}
		}
	}()

	logger.Info("Starting budget server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"ocr", cfg.OCREnabled(),
		"amqp", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
