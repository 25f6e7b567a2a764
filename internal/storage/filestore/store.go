// Package filestore keeps the ledger collections as JSON files in a
// directory. It is the secondary storage tier used when the database is
// unavailable.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"budget/internal/core"
)

const (
	accountsFile     = "accounts.json"
	transactionsFile = "transactions.json"
	settingsFile     = "settings.json"
)

// Store is safe for concurrent use within one process.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) LoadAccounts(ctx context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	if err := s.read(accountsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	if err := s.read(transactionsFile, &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) LoadSettings(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	if err := s.read(settingsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) PutAccount(ctx context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []core.Account
	if err := s.read(accountsFile, &accounts); err != nil {
		return err
	}
	accounts = upsert(accounts, a, func(x core.Account) string { return x.ID })
	return s.write(accountsFile, accounts)
}

func (s *Store) PutTransaction(ctx context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []core.Transaction
	if err := s.read(transactionsFile, &txs); err != nil {
		return err
	}
	txs = upsert(txs, t, func(x core.Transaction) string { return x.ID })
	return s.write(transactionsFile, txs)
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := map[string]string{}
	if err := s.read(settingsFile, &settings); err != nil {
		return err
	}
	settings[key] = value
	return s.write(settingsFile, settings)
}

// DeleteAccount removes the account and every transaction referencing it.
// Transactions are rewritten first so a failure never leaves orphans
// behind a deleted account.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txs []core.Transaction
	if err := s.read(transactionsFile, &txs); err != nil {
		return err
	}
	kept := txs[:0]
	for _, t := range txs {
		if t.AccountID != id {
			kept = append(kept, t)
		}
	}
	if err := s.write(transactionsFile, kept); err != nil {
		return err
	}

	var accounts []core.Account
	if err := s.read(accountsFile, &accounts); err != nil {
		return err
	}
	return s.write(accountsFile, remove(accounts, id, func(x core.Account) string { return x.ID }))
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []core.Transaction
	if err := s.read(transactionsFile, &txs); err != nil {
		return err
	}
	return s.write(transactionsFile, remove(txs, id, func(x core.Transaction) string { return x.ID }))
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range []string{transactionsFile, accountsFile, settingsFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// read decodes a collection file into v. A missing file leaves v untouched.
func (s *Store) read(name string, v any) error {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write replaces a collection file atomically through a temp file rename.
func (s *Store) write(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func upsert[T any](items []T, item T, id func(T) string) []T {
	for i := range items {
		if id(items[i]) == id(item) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func remove[T any](items []T, target string, id func(T) string) []T {
	out := items[:0]
	for _, it := range items {
		if id(it) != target {
			out = append(out, it)
		}
	}
	return out
}
