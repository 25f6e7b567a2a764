// Package backend assembles the storage tiers and the optional change
// publisher selected by the configuration.
package backend

import (
	"context"

	"budget/internal/ledger"
	"budget/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the storage, the optional publisher and the
// cleanup function releasing both.
type BackendResult struct {
	Repository storage.Repository
	// Publisher is nil when AMQP is not configured or unreachable.
	Publisher ledger.ChangePublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// FallbackDataDir holds the JSON files. It is the only tier of the
	// file backend and the secondary tier of the sqlite backend.
	FallbackDataDir string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	FileBackend   BackendType = "file"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, FileBackend:
		return true
	default:
		return false
	}
}
