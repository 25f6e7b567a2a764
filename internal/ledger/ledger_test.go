package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/storage"
	"budget/internal/storage/filestore"
)

var testNow = time.Date(2024, 3, 22, 15, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, storage.Repository) {
	t.Helper()
	repo, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithIDGenerator(seqIDs())}, opts...)
	l := New(repo, opts...)
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Stop(context.Background()) })
	return l, repo
}

func flush(t *testing.T, l *Ledger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSaveAccountDefaults(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	acc, err := l.SaveAccount(ctx, core.Account{Name: "   "})
	if err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}
	if acc.ID != "id-1" || acc.Name != core.DefaultAccountName || acc.Type != core.AccountBank || acc.Currency != core.EUR {
		t.Fatalf("unexpected defaults: %+v", acc)
	}
	if !acc.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v", acc.CreatedAt)
	}

	flush(t, l)
	stored, _ := repo.LoadAccounts(ctx)
	if len(stored) != 1 || stored[0].ID != "id-1" {
		t.Fatalf("account not persisted: %+v", stored)
	}
}

func TestSaveAccountValidation(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		account core.Account
		wantErr error
	}{
		{"invalid type", core.Account{Name: "x", Type: "stocks"}, core.ErrInvalidAccountType},
		{"invalid currency", core.Account{Name: "x", Currency: "GBP"}, core.ErrInvalidCurrency},
		{"unknown id", core.Account{ID: "missing", Name: "x"}, ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.SaveAccount(ctx, tt.account); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := len(l.Snapshot().Accounts); n != 0 {
		t.Fatalf("rejected accounts were stored: %d", n)
	}
}

func TestSaveAccountUpdateKeepsCreatedAt(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acc, _ := l.SaveAccount(ctx, core.Account{Name: "Bank"})
	acc.Name = "Renamed <b>bank</b>"
	acc.CreatedAt = time.Time{}
	updated, err := l.SaveAccount(ctx, acc)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed bank" {
		t.Errorf("name not sanitized: %q", updated.Name)
	}
	if !updated.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt lost on update")
	}
	if n := len(l.Snapshot().Accounts); n != 1 {
		t.Fatalf("update created a new account: %d", n)
	}
}

func TestAddTransactionDefaults(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	acc, _ := l.SaveAccount(ctx, core.Account{Name: "Main"})

	got, err := l.AddTransaction(ctx, core.Transaction{Type: core.Expense, Amount: amount("12.50"), Note: "Fish & chips"})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if got.AccountID != acc.ID || got.Category != core.OtherExpense || got.Date.String() != "2024-03-22" {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.Recurring != core.RecurNone || got.Note != "Fish & chips" {
		t.Errorf("unexpected recurring/note: %q %q", got.Recurring, got.Note)
	}
}

func TestAddTransactionRejectsInvalidInput(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.AddTransaction(ctx, core.Transaction{Type: core.Expense, Amount: amount("1")}); !errors.Is(err, core.ErrMissingAccount) {
		t.Fatalf("no account: err = %v", err)
	}

	l.SaveAccount(ctx, core.Account{Name: "Main"})
	tests := []struct {
		name    string
		tx      core.Transaction
		wantErr error
	}{
		{"zero amount", core.Transaction{Type: core.Expense, Amount: decimal.Zero}, core.ErrInvalidAmount},
		{"negative amount", core.Transaction{Type: core.Income, Amount: amount("-5")}, core.ErrInvalidAmount},
		{"bad type", core.Transaction{Type: "transfer", Amount: amount("5")}, core.ErrInvalidTxType},
		{"bad rule", core.Transaction{Type: core.Expense, Amount: amount("5"), Recurring: "yearly"}, core.ErrInvalidRecurrence},
		{"wrong category for type", core.Transaction{Type: core.Income, Amount: amount("5"), Category: "food"}, core.ErrInvalidCategory},
		{"unknown account", core.Transaction{Type: core.Expense, Amount: amount("5"), AccountID: "nope"}, ErrUnknownAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.AddTransaction(ctx, tt.tx); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	flush(t, l)
	if txs, _ := repo.LoadTransactions(ctx); len(txs) != 0 {
		t.Fatalf("rejected transactions reached storage: %+v", txs)
	}
}

func TestScenarioAccountBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acc, _ := l.SaveAccount(ctx, core.Account{Name: "Bank", Currency: core.EUR, InitialBalance: amount("1000")})
	if _, err := l.AddTransaction(ctx, core.Transaction{Type: core.Expense, Amount: amount("200"), Category: "food"}); err != nil {
		t.Fatal(err)
	}

	s := l.Snapshot()
	a, _ := s.Account(acc.ID)
	if got := core.AccountBalance(a, s.Transactions); !got.Equal(amount("800")) {
		t.Fatalf("balance = %s, want 800", got)
	}
}

func TestAddTemplateMaterializesOccurrences(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()
	l.SaveAccount(ctx, core.Account{Name: "Bank"})

	tmpl, err := l.AddTransaction(ctx, core.Transaction{
		Type:      core.Expense,
		Amount:    amount("9.99"),
		Category:  "subscriptions",
		Date:      core.NewDate(2024, 3, 1),
		Recurring: core.RecurWeekly,
	})
	if err != nil {
		t.Fatal(err)
	}

	s := l.Snapshot()
	if len(s.Transactions) != 4 {
		t.Fatalf("expected template + 3 occurrences, got %d", len(s.Transactions))
	}
	for _, tx := range s.Transactions[1:] {
		if tx.RecurringParent != tmpl.ID || tx.Recurring != core.RecurNone {
			t.Errorf("bad occurrence: %+v", tx)
		}
	}

	if again := l.ApplyRecurring(ctx); len(again) != 0 {
		t.Fatalf("second expansion created %d occurrences", len(again))
	}

	flush(t, l)
	if stored, _ := repo.LoadTransactions(ctx); len(stored) != 4 {
		t.Fatalf("stored %d transactions, want 4", len(stored))
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	a1, _ := l.SaveAccount(ctx, core.Account{Name: "One"})
	a2, _ := l.SaveAccount(ctx, core.Account{Name: "Two"})
	l.AddTransaction(ctx, core.Transaction{Type: core.Expense, Amount: amount("1"), AccountID: a1.ID})
	l.AddTransaction(ctx, core.Transaction{Type: core.Expense, Amount: amount("2"), AccountID: a1.ID})
	keep, _ := l.AddTransaction(ctx, core.Transaction{Type: core.Expense, Amount: amount("3"), AccountID: a2.ID})

	if err := l.DeleteAccount(ctx, a1.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if err := l.DeleteAccount(ctx, a1.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("second delete err = %v", err)
	}

	s := l.Snapshot()
	if len(s.Accounts) != 1 || len(s.Transactions) != 1 || s.Transactions[0].ID != keep.ID {
		t.Fatalf("cascade in memory failed: %+v", s)
	}

	flush(t, l)
	stored, _ := repo.LoadTransactions(ctx)
	if len(stored) != 1 || stored[0].ID != keep.ID {
		t.Fatalf("cascade in storage failed: %+v", stored)
	}
}

func TestDeleteTransaction(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	l.SaveAccount(ctx, core.Account{Name: "One"})
	tx, _ := l.AddTransaction(ctx, core.Transaction{Type: core.Income, Amount: amount("50")})

	if err := l.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if err := l.DeleteTransaction(ctx, tx.ID); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestLoadRestoresStateAndRates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, _ := filestore.New(dir)

	first := New(repo, WithClock(func() time.Time { return testNow }), WithIDGenerator(seqIDs()))
	first.Start(ctx)
	first.SaveAccount(ctx, core.Account{Name: "Wallet", Currency: core.MUR})
	first.SetRates(ctx, core.RateTable{core.EUR: amount("1"), core.MUR: amount("50"), core.USD: amount("0")})
	first.Stop(ctx)

	second := New(repo, WithClock(func() time.Time { return testNow }))
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := second.Snapshot()
	if len(s.Accounts) != 1 || s.Accounts[0].Currency != core.MUR {
		t.Fatalf("accounts not restored: %+v", s.Accounts)
	}
	if !s.Rates[core.MUR].Equal(amount("50")) {
		t.Errorf("MUR rate = %s, want 50", s.Rates[core.MUR])
	}
	if !s.Rates[core.USD].Equal(amount("1.08")) {
		t.Errorf("non-positive cached rate should keep the default, got %s", s.Rates[core.USD])
	}

	settings, _ := repo.LoadSettings(ctx)
	if settings[SettingRatesUpdatedAt] == "" {
		t.Error("rates timestamp not stored")
	}
}

func TestResetKeepsRates(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()
	l.SaveAccount(ctx, core.Account{Name: "One"})
	l.AddTransaction(ctx, core.Transaction{Type: core.Income, Amount: amount("5")})

	l.Reset(ctx)
	s := l.Snapshot()
	if len(s.Accounts) != 0 || len(s.Transactions) != 0 || len(s.Rates) == 0 {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	flush(t, l)
	if accounts, _ := repo.LoadAccounts(ctx); len(accounts) != 0 {
		t.Fatal("storage not cleared")
	}
}

type staticRates core.RateTable

func (s staticRates) Current(context.Context) core.RateTable { return core.RateTable(s) }

func TestRefreshRates(t *testing.T) {
	l, _ := newTestLedger(t)
	got := l.RefreshRates(context.Background(), staticRates{core.EUR: amount("1"), core.USD: amount("1.2")})
	if !got[core.USD].Equal(amount("1.2")) {
		t.Fatalf("USD = %s", got[core.USD])
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingPublisher) PublishChange(_ context.Context, c Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

func TestPublisherNotifiedInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	l, _ := newTestLedger(t, WithPublisher(pub))
	ctx := context.Background()

	acc, _ := l.SaveAccount(ctx, core.Account{Name: "One"})
	tx, _ := l.AddTransaction(ctx, core.Transaction{Type: core.Income, Amount: amount("5")})
	l.DeleteTransaction(ctx, tx.ID)
	flush(t, l)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	want := []Change{
		{Collection: storage.CollectionAccounts, Op: OpPut, Key: acc.ID},
		{Collection: storage.CollectionTransactions, Op: OpPut, Key: tx.ID},
		{Collection: storage.CollectionTransactions, Op: OpDelete, Key: tx.ID},
	}
	if len(pub.changes) != len(want) {
		t.Fatalf("got %d changes: %+v", len(pub.changes), pub.changes)
	}
	for i := range want {
		if pub.changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, pub.changes[i], want[i])
		}
	}
}

type countingRepo struct {
	storage.Repository
	mu       sync.Mutex
	settings int
}

func (c *countingRepo) PutSetting(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.settings++
	c.mu.Unlock()
	return c.Repository.PutSetting(ctx, key, value)
}

func TestRefreshRatesSkipsUnchangedTable(t *testing.T) {
	files, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	repo := &countingRepo{Repository: files}
	l := New(repo, WithClock(func() time.Time { return testNow }))
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Stop(context.Background()) })

	src := staticRates{core.EUR: amount("1"), core.USD: amount("1.2"), core.MUR: amount("48.5")}
	for i := 0; i < 3; i++ {
		l.RefreshRates(context.Background(), src)
	}
	flush(t, l)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	// One table plus its timestamp.
	if repo.settings != 2 {
		t.Errorf("settings writes = %d, want 2", repo.settings)
	}
}

func TestPersisterSurvivesCancelledStartContext(t *testing.T) {
	repo, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	l := New(repo, WithClock(func() time.Time { return testNow }), WithIDGenerator(seqIDs()))

	startCtx, cancel := context.WithCancel(context.Background())
	if err := l.Start(startCtx); err != nil {
		t.Fatal(err)
	}
	cancel()

	ctx := context.Background()
	if _, err := l.SaveAccount(ctx, core.Account{Name: "Wallet"}); err != nil {
		t.Fatal(err)
	}
	flush(t, l)

	got, err := repo.LoadAccounts(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("LoadAccounts = %v, %v", got, err)
	}
	if err := l.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPersisterStopWritesQueuedJobs(t *testing.T) {
	repo, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPersister(repo, nil)

	// Queued before the loop runs.
	for _, id := range []string{"a", "b", "c"} {
		acc := core.Account{ID: id, Name: id, Type: core.AccountCash, Currency: core.EUR}
		p.enqueue(job{
			change: Change{Collection: storage.CollectionAccounts, Op: OpPut, Key: id},
			run: func(ctx context.Context, repo storage.Repository) error {
				return repo.PutAccount(ctx, acc)
			},
		})
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d after Stop", p.Pending())
	}
	got, err := repo.LoadAccounts(context.Background())
	if err != nil || len(got) != 3 {
		t.Fatalf("LoadAccounts = %v, %v", got, err)
	}
}
