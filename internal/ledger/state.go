// Package ledger owns the in-memory state of accounts, transactions and
// exchange rates. Every change goes through a Ledger method, which updates
// memory synchronously and queues the write for the storage tier.
package ledger

import (
	"errors"

	"budget/internal/core"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrUnknownAccount is returned when a transaction names an account
	// that does not exist.
	ErrUnknownAccount = errors.New("unknown account")
)

// Settings keys.
const (
	SettingRates          = "rates"
	SettingRatesUpdatedAt = "rates_updated_at"
)

// State is a snapshot of everything the derivations need.
type State struct {
	Accounts     []core.Account
	Transactions []core.Transaction
	Rates        core.RateTable
}

// Clone returns a deep copy safe to hand to readers.
func (s State) Clone() State {
	out := State{
		Accounts:     make([]core.Account, len(s.Accounts)),
		Transactions: make([]core.Transaction, len(s.Transactions)),
		Rates:        s.Rates.Clone(),
	}
	copy(out.Accounts, s.Accounts)
	copy(out.Transactions, s.Transactions)
	return out
}

// Account looks up an account by id.
func (s State) Account(id string) (core.Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return core.Account{}, false
}

// Transaction looks up a transaction by id.
func (s State) Transaction(id string) (core.Transaction, bool) {
	for _, t := range s.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// Templates returns the transactions carrying a recurrence rule.
func (s State) Templates() []core.Transaction {
	var out []core.Transaction
	for _, t := range s.Transactions {
		if t.IsTemplate() {
			out = append(out, t)
		}
	}
	return out
}
