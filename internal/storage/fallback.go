package storage

import (
	"context"
	"errors"
	"log/slog"

	"budget/internal/core"
)

// Fallback tries the primary repository for each operation and, when it
// fails, logs a warning and runs the same operation on the secondary one.
// Callers only see an error when both tiers fail.
type Fallback struct {
	primary   Repository
	secondary Repository
}

func NewFallback(primary, secondary Repository) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) LoadAccounts(ctx context.Context) ([]core.Account, error) {
	return fallbackLoad(ctx, f, CollectionAccounts, "load", func(r Repository) ([]core.Account, error) {
		return r.LoadAccounts(ctx)
	})
}

func (f *Fallback) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	return fallbackLoad(ctx, f, CollectionTransactions, "load", func(r Repository) ([]core.Transaction, error) {
		return r.LoadTransactions(ctx)
	})
}

func (f *Fallback) LoadSettings(ctx context.Context) (map[string]string, error) {
	return fallbackLoad(ctx, f, CollectionSettings, "load", func(r Repository) (map[string]string, error) {
		return r.LoadSettings(ctx)
	})
}

func (f *Fallback) PutAccount(ctx context.Context, a core.Account) error {
	return f.do(ctx, CollectionAccounts, "put", func(r Repository) error { return r.PutAccount(ctx, a) })
}

func (f *Fallback) PutTransaction(ctx context.Context, t core.Transaction) error {
	return f.do(ctx, CollectionTransactions, "put", func(r Repository) error { return r.PutTransaction(ctx, t) })
}

func (f *Fallback) PutSetting(ctx context.Context, key, value string) error {
	return f.do(ctx, CollectionSettings, "put", func(r Repository) error { return r.PutSetting(ctx, key, value) })
}

func (f *Fallback) DeleteAccount(ctx context.Context, id string) error {
	return f.do(ctx, CollectionAccounts, "delete", func(r Repository) error { return r.DeleteAccount(ctx, id) })
}

func (f *Fallback) DeleteTransaction(ctx context.Context, id string) error {
	return f.do(ctx, CollectionTransactions, "delete", func(r Repository) error { return r.DeleteTransaction(ctx, id) })
}

func (f *Fallback) Clear(ctx context.Context) error {
	return f.do(ctx, "all", "clear", func(r Repository) error { return r.Clear(ctx) })
}

func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}

func (f *Fallback) do(ctx context.Context, c Collection, op string, fn func(Repository) error) error {
	err := fn(f.primary)
	if err == nil {
		return nil
	}
	slog.WarnContext(ctx, "Primary storage failed, using secondary",
		"collection", c,
		"operation", op,
		"error", err)
	return fn(f.secondary)
}

func fallbackLoad[T any](ctx context.Context, f *Fallback, c Collection, op string, fn func(Repository) (T, error)) (T, error) {
	v, err := fn(f.primary)
	if err == nil {
		return v, nil
	}
	slog.WarnContext(ctx, "Primary storage failed, using secondary",
		"collection", c,
		"operation", op,
		"error", err)
	return fn(f.secondary)
}

var _ Repository = (*Fallback)(nil)
