package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/storage"
)

// RateSource supplies the current exchange rate table.
type RateSource interface {
	Current(ctx context.Context) core.RateTable
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithPublisher notifies publisher after each persisted write.
func WithPublisher(publisher ChangePublisher) Option {
	return func(l *Ledger) { l.publisher = publisher }
}

// Ledger serializes every mutation of the application state.
type Ledger struct {
	mu    sync.RWMutex
	state State

	repo      storage.Repository
	persister *Persister
	publisher ChangePublisher
	policy    *bluemonday.Policy
	now       func() time.Time
	newID     func() string
}

// New creates an empty ledger backed by repo. Call Load to read the
// stored data and Start to begin persisting.
func New(repo storage.Repository, opts ...Option) *Ledger {
	l := &Ledger{
		state:  State{Rates: core.DefaultRates()},
		repo:   repo,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.persister = NewPersister(repo, l.publisher)
	return l
}

// Start begins the background persister.
func (l *Ledger) Start(ctx context.Context) error { return l.persister.Start(ctx) }

// Stop flushes queued writes and stops the persister.
func (l *Ledger) Stop(ctx context.Context) error { return l.persister.Stop(ctx) }

// Flush waits for every write queued so far to reach storage.
func (l *Ledger) Flush(ctx context.Context) error { return l.persister.Flush(ctx) }

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

// Load reads every collection from storage, restores cached rates and
// materializes the recurring transactions that came due.
func (l *Ledger) Load(ctx context.Context) error {
	var (
		accounts []core.Account
		txs      []core.Transaction
		settings map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = l.repo.LoadAccounts(gctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		txs, err = l.repo.LoadTransactions(gctx)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		settings, err = l.repo.LoadSettings(gctx)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	l.mu.Lock()
	l.state = State{
		Accounts:     accounts,
		Transactions: txs,
		Rates:        restoreRates(ctx, settings),
	}
	l.mu.Unlock()

	slog.InfoContext(ctx, "Ledger loaded",
		"accounts", len(accounts),
		"transactions", len(txs))

	l.ApplyRecurring(ctx)
	return nil
}

func restoreRates(ctx context.Context, settings map[string]string) core.RateTable {
	rates := core.DefaultRates()
	raw, ok := settings[SettingRates]
	if !ok || raw == "" {
		return rates
	}
	var cached core.RateTable
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		slog.WarnContext(ctx, "Ignoring unreadable cached rates", "error", err)
		return rates
	}
	for c, v := range cached {
		if c.IsValid() && v.IsPositive() {
			rates[c] = v
		}
	}
	return rates
}

// SaveAccount creates the account when its id is empty and updates the
// existing one otherwise. An empty name becomes DefaultAccountName.
func (l *Ledger) SaveAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = l.sanitize(a.Name)
	a = a.Normalize()
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if a.ID == "" {
		a.ID = l.newID()
		a.CreatedAt = l.now()
		l.state.Accounts = append(l.state.Accounts, a)
	} else {
		i := l.accountIndex(a.ID)
		if i < 0 {
			return core.Account{}, ErrAccountNotFound
		}
		a.CreatedAt = l.state.Accounts[i].CreatedAt
		l.state.Accounts[i] = a
	}

	saved := a
	l.persister.enqueue(job{
		change: Change{Collection: storage.CollectionAccounts, Op: OpPut, Key: saved.ID},
		run: func(ctx context.Context, repo storage.Repository) error {
			return repo.PutAccount(ctx, saved)
		},
	})

	slog.InfoContext(ctx, "Account saved", "id", saved.ID, "name", saved.Name, "currency", saved.Currency)
	return saved, nil
}

// DeleteAccount removes the account together with its transactions.
func (l *Ledger) DeleteAccount(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.accountIndex(id)
	if i < 0 {
		return ErrAccountNotFound
	}
	l.state.Accounts = append(l.state.Accounts[:i], l.state.Accounts[i+1:]...)

	kept := make([]core.Transaction, 0, len(l.state.Transactions))
	for _, t := range l.state.Transactions {
		if t.AccountID != id {
			kept = append(kept, t)
		}
	}
	removed := len(l.state.Transactions) - len(kept)
	l.state.Transactions = kept

	l.persister.enqueue(job{
		change: Change{Collection: storage.CollectionAccounts, Op: OpDelete, Key: id},
		run: func(ctx context.Context, repo storage.Repository) error {
			return repo.DeleteAccount(ctx, id)
		},
	})

	slog.InfoContext(ctx, "Account deleted", "id", id, "transactions_removed", removed)
	return nil
}

// AddTransaction validates and records a transaction. A missing account
// defaults to the first one, a missing category to the type's fallback and
// a missing date to today. Adding a recurring template materializes its
// due occurrences right away.
func (l *Ledger) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if t.AccountID == "" {
		if len(l.state.Accounts) == 0 {
			return core.Transaction{}, core.ErrMissingAccount
		}
		t.AccountID = l.state.Accounts[0].ID
	} else if l.accountIndex(t.AccountID) < 0 {
		return core.Transaction{}, ErrUnknownAccount
	}

	t.Note = l.sanitize(t.Note)
	t = t.Normalize(core.DateOf(now))
	t.RecurringParent = ""
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t.ID = l.newID()
	t.CreatedAt = now
	l.state.Transactions = append(l.state.Transactions, t)
	l.enqueueTransaction(t)

	slog.InfoContext(ctx, "Transaction added",
		"id", t.ID,
		"type", t.Type,
		"amount", t.Amount.String(),
		"category", t.Category,
		"date", t.Date.String(),
		"recurring", t.Recurring)

	if t.IsTemplate() {
		l.applyRecurringLocked(ctx, now)
	}
	return t, nil
}

// DeleteTransaction removes a single transaction. Occurrences already
// materialized from a deleted template are kept.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := -1
	for j, t := range l.state.Transactions {
		if t.ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		return ErrTransactionNotFound
	}
	l.state.Transactions = append(l.state.Transactions[:i], l.state.Transactions[i+1:]...)

	l.persister.enqueue(job{
		change: Change{Collection: storage.CollectionTransactions, Op: OpDelete, Key: id},
		run: func(ctx context.Context, repo storage.Repository) error {
			return repo.DeleteTransaction(ctx, id)
		},
	})

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// ApplyRecurring materializes every due occurrence and returns the new ones.
func (l *Ledger) ApplyRecurring(ctx context.Context) []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyRecurringLocked(ctx, l.now())
}

func (l *Ledger) applyRecurringLocked(ctx context.Context, now time.Time) []core.Transaction {
	created := core.ExpandRecurring(l.state.Transactions, now, l.newID)
	if len(created) == 0 {
		return nil
	}
	for i := range created {
		created[i].CreatedAt = now
		l.enqueueTransaction(created[i])
	}
	l.state.Transactions = append(l.state.Transactions, created...)

	slog.InfoContext(ctx, "Recurring transactions materialized", "count", len(created))
	return created
}

// Reset deletes every account, transaction and setting. The rate table
// in memory is kept.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Accounts = nil
	l.state.Transactions = nil
	l.persister.enqueue(job{
		change: Change{Collection: "all", Op: OpClear},
		run: func(ctx context.Context, repo storage.Repository) error {
			return repo.Clear(ctx)
		},
	})

	slog.InfoContext(ctx, "All data deleted")
}

// SetRates replaces the rate table and caches it in the settings. A table
// equal to the current one is not written again.
func (l *Ledger) SetRates(ctx context.Context, rates core.RateTable) {
	if len(rates) == 0 {
		return
	}
	table := rates.Clone()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Rates.Equal(table) {
		return
	}
	l.state.Rates = table

	encoded, err := json.Marshal(table)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode rates", "error", err)
		return
	}
	updatedAt := l.now().UTC().Format(time.RFC3339)
	l.persister.enqueue(job{
		change: Change{Collection: storage.CollectionSettings, Op: OpPut, Key: SettingRates},
		run: func(ctx context.Context, repo storage.Repository) error {
			if err := repo.PutSetting(ctx, SettingRates, string(encoded)); err != nil {
				return err
			}
			return repo.PutSetting(ctx, SettingRatesUpdatedAt, updatedAt)
		},
	})
}

// RefreshRates pulls the current table from src and stores it.
func (l *Ledger) RefreshRates(ctx context.Context, src RateSource) core.RateTable {
	rates := src.Current(ctx)
	l.SetRates(ctx, rates)
	return l.Snapshot().Rates
}

func (l *Ledger) enqueueTransaction(t core.Transaction) {
	l.persister.enqueue(job{
		change: Change{Collection: storage.CollectionTransactions, Op: OpPut, Key: t.ID},
		run: func(ctx context.Context, repo storage.Repository) error {
			return repo.PutTransaction(ctx, t)
		},
	})
}

func (l *Ledger) accountIndex(id string) int {
	for i, a := range l.state.Accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// sanitize strips markup from free text and keeps plain characters as typed.
func (l *Ledger) sanitize(s string) string {
	return html.UnescapeString(l.policy.Sanitize(s))
}
