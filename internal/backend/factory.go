package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/ledger"
	"budget/internal/storage"
	"budget/internal/storage/filestore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	files, err := filestore.New(config.FallbackDataDir)
	if err != nil {
		return nil, fmt.Errorf("initialize file store: %w", err)
	}

	var repo storage.Repository
	switch config.Type {
	case SQLiteBackend:
		repo = f.createSQLiteBackend(config, files)
	case FileBackend:
		repo = files
		f.logger.InfoContext(ctx, "Initialized file backend", "data_directory", config.FallbackDataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	var client *amqp.Client
	var publisher ledger.ChangePublisher
	if config.AMQPURL != "" {
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", "error", err)
		} else {
			publisher = NewChangePublisher(client)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	return &BackendResult{
		Repository: repo,
		Publisher:  publisher,
		Cleanup: func() error {
			var errs []error
			if client != nil {
				errs = append(errs, client.Close())
			}
			errs = append(errs, repo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

// createSQLiteBackend puts the database in front of the file store. An
// unusable database leaves the file store as the only tier.
func (f *DefaultFactory) createSQLiteBackend(config Config, files *filestore.Store) storage.Repository {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		f.logger.Warn("SQLite unavailable, using file store only",
			"db_path", config.SQLiteDBPath,
			"error", err)
		return files
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"fallback_dir", config.FallbackDataDir)
	return storage.NewFallback(sqliteRepo, files)
}

// changeSender is the part of amqp.Client used to announce writes.
type changeSender interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// NewChangePublisher turns persisted ledger changes into AMQP messages.
func NewChangePublisher(sender changeSender) ledger.ChangePublisher {
	return ledger.ChangePublisherFunc(func(ctx context.Context, c ledger.Change) error {
		return sender.PublishChange(ctx, amqp.NewChangeMessage(string(c.Collection), string(c.Op), c.Key))
	})
}
