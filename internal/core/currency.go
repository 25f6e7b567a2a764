package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	MUR Currency = "MUR"
)

// ReferenceCurrency is the currency every converted total is expressed in.
const ReferenceCurrency = EUR

// Currency is an ISO currency code from the supported set.
type Currency string

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{MUR, EUR, USD}

var currencySymbols = map[Currency]string{
	MUR: "Rs",
	EUR: "€",
	USD: "$",
}

func (c Currency) IsValid() bool {
	_, ok := currencySymbols[c]
	return ok
}

// Symbol returns the display symbol, falling back to the euro sign.
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return currencySymbols[EUR]
}

// ParseCurrency normalizes a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

// RateTable maps a currency to its price in units per reference currency.
type RateTable map[Currency]decimal.Decimal

// DefaultRates is the static table used until a provider answers.
func DefaultRates() RateTable {
	return RateTable{
		EUR: decimal.NewFromInt(1),
		USD: decimal.RequireFromString("1.08"),
		MUR: decimal.RequireFromString("48.5"),
	}
}

// Clone returns an independent copy of the table.
func (r RateTable) Clone() RateTable {
	out := make(RateTable, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Equal reports whether both tables hold the same currencies at equal rates.
func (r RateTable) Equal(o RateTable) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Rate returns the rate of c, or 1 when c is absent or not positive.
func (r RateTable) Rate(c Currency) decimal.Decimal {
	if v, ok := r[c]; ok && v.IsPositive() {
		return v
	}
	return decimal.NewFromInt(1)
}

// Convert expresses amount, held in currency from, in the reference currency.
// Unknown currencies are treated as already being the reference currency.
func Convert(amount decimal.Decimal, from Currency, rates RateTable) decimal.Decimal {
	rate := rates.Rate(from)
	if rate.Equal(decimal.NewFromInt(1)) {
		return amount
	}
	return amount.Div(rate)
}
