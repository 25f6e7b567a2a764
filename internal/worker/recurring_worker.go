// Package worker keeps recurring templates materialized outside of the
// API server process.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/storage"
)

// Ledger is the part of ledger.Ledger the worker drives. Load applies
// every recurring occurrence that came due.
type Ledger interface {
	Flush(ctx context.Context) error
	Load(ctx context.Context) error
}

// RecurringWorker reloads the ledger from storage on a fixed interval and
// whenever a transaction change is announced, so templates written by
// another process are expanded without waiting for the next tick.
type RecurringWorker struct {
	ledger   Ledger
	interval time.Duration
}

func NewRecurringWorker(ledger Ledger, interval time.Duration) *RecurringWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RecurringWorker{ledger: ledger, interval: interval}
}

// Process writes out pending changes, then reloads and expands.
func (w *RecurringWorker) Process(ctx context.Context) error {
	if err := w.ledger.Flush(ctx); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := w.ledger.Load(ctx); err != nil {
		return fmt.Errorf("reload ledger: %w", err)
	}
	return nil
}

// HandleChangeMessage processes a change announced over AMQP. Only
// transaction writes can add or alter templates.
func (w *RecurringWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Collection != string(storage.CollectionTransactions) {
		slog.DebugContext(ctx, "Ignoring change message",
			"collection", msg.Collection,
			"key", msg.Key)
		return nil
	}

	slog.InfoContext(ctx, "Processing transaction change",
		"op", msg.Op,
		"key", msg.Key)
	return w.Process(ctx)
}

// Run processes once immediately and then on every tick until ctx is done.
func (w *RecurringWorker) Run(ctx context.Context) {
	if err := w.Process(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial recurring processing failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := w.Process(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic recurring processing failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "Periodic recurring processing complete",
				"next_check", now.Add(w.interval).Format("15:04:05"))
		}
	}
}
