package storage

import (
	"context"

	"budget/internal/core"
)

// Collection names a persisted collection.
type Collection string

const (
	CollectionAccounts     Collection = "accounts"
	CollectionTransactions Collection = "transactions"
	CollectionSettings     Collection = "settings"
)

// Repository is the durable store of the ledger. Deleting an account
// removes every transaction that references it.
type Repository interface {
	LoadAccounts(ctx context.Context) ([]core.Account, error)
	LoadTransactions(ctx context.Context) ([]core.Transaction, error)
	LoadSettings(ctx context.Context) (map[string]string, error)

	PutAccount(ctx context.Context, a core.Account) error
	PutTransaction(ctx context.Context, t core.Transaction) error
	PutSetting(ctx context.Context, key, value string) error

	DeleteAccount(ctx context.Context, id string) error
	DeleteTransaction(ctx context.Context, id string) error

	// Clear removes every record of every collection.
	Clear(ctx context.Context) error

	Close() error
}
