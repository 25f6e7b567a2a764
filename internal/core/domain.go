package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountCash    AccountType = "cash"
	AccountBank    AccountType = "bank"
	AccountSavings AccountType = "savings"
	AccountCrypto  AccountType = "crypto"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DefaultAccountName is used when an account is saved without a name.
const DefaultAccountName = "My Account"

type (
	AccountType     string
	TransactionType string

	Date struct {
		time.Time
	}

	Account struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Type           AccountType     `json:"type"`
		Currency       Currency        `json:"currency"`
		InitialBalance decimal.Decimal `json:"initialBalance"`
		CreatedAt      time.Time       `json:"createdAt"`
	}

	Transaction struct {
		ID              string          `json:"id"`
		Type            TransactionType `json:"type"`
		Amount          decimal.Decimal `json:"amount"`
		Category        string          `json:"category"`
		AccountID       string          `json:"accountId"`
		Note            string          `json:"note,omitempty"`
		Date            Date            `json:"date"`
		Recurring       Recurrence      `json:"recurring"`
		RecurringParent string          `json:"recurringParent,omitempty"`
		CreatedAt       time.Time       `json:"createdAt"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyName          = errors.New("empty account name")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidTxType      = errors.New("invalid transaction type")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidRecurrence  = errors.New("invalid recurrence rule")
	ErrMissingAccount     = errors.New("missing account")
	ErrNameTooLong        = errors.New("account name too long (max 100 characters)")
	ErrNoteTooLong        = errors.New("note too long (max 200 characters)")
)

// AccountTypes lists the supported account kinds in display order.
var AccountTypes = []AccountType{AccountCash, AccountBank, AccountSavings, AccountCrypto}

func (t AccountType) IsValid() bool {
	switch t {
	case AccountCash, AccountBank, AccountSavings, AccountCrypto:
		return true
	}
	return false
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO calendar date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as 2006-01-02.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonths returns the date n calendar months later, keeping the day of
// month and clamping it to the last day of the target month
// (Jan 31 + 1 month = Feb 28 or 29).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Time.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Some stores kept full ISO timestamps; only the calendar part matters.
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON decodes an account and treats a missing or unparseable
// initial balance as zero.
func (a *Account) UnmarshalJSON(b []byte) error {
	type plain Account
	var raw struct {
		plain
		InitialBalance json.RawMessage `json:"initialBalance"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Account(raw.plain)
	a.InitialBalance = ParseBalance(strings.Trim(string(raw.InitialBalance), `"`))
	return nil
}

// Normalize applies the defaults used when saving an account.
func (a Account) Normalize() Account {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		a.Name = DefaultAccountName
	}
	if a.Type == "" {
		a.Type = AccountBank
	}
	if a.Currency == "" {
		a.Currency = ReferenceCurrency
	}
	return a
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return ErrNameTooLong
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	if !a.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	return nil
}

// SignedAmount returns the amount with the sign implied by the type.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Income {
		return t.Amount
	}
	return t.Amount.Neg()
}

// IsTemplate reports whether the transaction carries a recurrence rule.
func (t Transaction) IsTemplate() bool {
	return t.Recurring != "" && t.Recurring != RecurNone
}

// Normalize applies the defaults used when recording a transaction.
func (t Transaction) Normalize(today Date) Transaction {
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = DefaultCategory(t.Type).ID
	}
	if t.Date.IsZero() {
		t.Date = today
	}
	if t.Recurring == "" {
		t.Recurring = RecurNone
	}
	t.Note = strings.TrimSpace(t.Note)
	return t
}

func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidTxType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, ok := FindCategory(t.Type, t.Category); !ok {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Recurring.IsValid() {
		return ErrInvalidRecurrence
	}
	if len(t.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}
