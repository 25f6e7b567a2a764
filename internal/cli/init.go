// Package cli provides the initialization shared by cmd/budget and
// cmd/recurring-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/backend"
	"budget/internal/config"
	"budget/internal/ledger"
	"budget/internal/log"
)

// SetupLogger builds the application logger for component at the
// configured level and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     cfg.SlogLevel(),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// The configured logger depends on a valid config.
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Runtime is a loaded ledger together with the backend behind it.
type Runtime struct {
	Ledger  *ledger.Ledger
	Backend *backend.BackendResult
}

// OpenLedger creates the configured backend, loads the ledger from it and
// starts the persister.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Runtime, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}

	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	var opts []ledger.Option
	if result.Publisher != nil {
		opts = append(opts, ledger.WithPublisher(result.Publisher))
	}
	l := ledger.New(result.Repository, opts...)

	if err := l.Load(ctx); err != nil {
		_ = result.Cleanup()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if err := l.Start(ctx); err != nil {
		_ = result.Cleanup()
		return nil, fmt.Errorf("start ledger: %w", err)
	}
	return &Runtime{Ledger: l, Backend: result}, nil
}

// Close flushes the ledger and releases the backend.
func (r *Runtime) Close(ctx context.Context) error {
	stopErr := r.Ledger.Stop(ctx)
	if err := r.Backend.Cleanup(); err != nil {
		return err
	}
	return stopErr
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
// cleanup runs with a context bounded by timeout, and done is closed
// once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
