package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// BalanceSeriesLimit is the number of points kept by callers charting the
// running balance.
const BalanceSeriesLimit = 30

// Period is a trailing aggregation window ending today.
type Period string

// ParsePeriod maps a period name to a Period, defaulting to a month.
func ParsePeriod(s string) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p
	}
	return PeriodMonth
}

// Window returns the first and last calendar dates covered by the period,
// both inclusive. A week spans seven dates ending today.
func (p Period) Window(now time.Time) (from, to Date) {
	to = DateOf(now)
	switch p {
	case PeriodDay:
		from = to
	case PeriodWeek:
		from = to.AddDays(-6)
	default:
		from = to.AddMonths(-1)
	}
	return from, to
}

// Contains reports whether d falls inside the period window.
func (p Period) Contains(d Date, now time.Time) bool {
	from, to := p.Window(now)
	return !d.Before(from) && !d.After(to)
}

// FilterPeriod returns the transactions dated inside the period window.
func FilterPeriod(txs []Transaction, p Period, now time.Time) []Transaction {
	from, to := p.Window(now)
	var out []Transaction
	for _, t := range txs {
		if !t.Date.Before(from) && !t.Date.After(to) {
			out = append(out, t)
		}
	}
	return out
}

// CategoryTotal is one bar of the expense breakdown.
type CategoryTotal struct {
	Category string          `json:"category"`
	Label    string          `json:"label"`
	Color    string          `json:"color"`
	Total    decimal.Decimal `json:"total"`
}

// DailyPoint holds the income and expense sums of one calendar date.
type DailyPoint struct {
	Date    Date            `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// BalancePoint is the running portfolio balance after one transaction.
type BalancePoint struct {
	Date    Date            `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// Totals aggregates the incomes and expenses of a period.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// CategoryBreakdown sums the expenses of the period per category, largest
// first. Unknown category ids are counted in the catch-all bucket.
func CategoryBreakdown(txs []Transaction, p Period, now time.Time) []CategoryTotal {
	byID := map[string]*CategoryTotal{}
	for _, t := range FilterPeriod(txs, p, now) {
		if t.Type != Expense {
			continue
		}
		cat := ResolveCategory(Expense, t.Category)
		entry, ok := byID[cat.ID]
		if !ok {
			entry = &CategoryTotal{Category: cat.ID, Label: cat.Label, Color: cat.Color, Total: decimal.Zero}
			byID[cat.ID] = entry
		}
		entry.Total = entry.Total.Add(t.Amount)
	}

	out := make([]CategoryTotal, 0, len(byID))
	for _, v := range byID {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// DailySeries groups the transactions of the period by date, oldest first.
func DailySeries(txs []Transaction, p Period, now time.Time) []DailyPoint {
	byDate := map[string]*DailyPoint{}
	for _, t := range FilterPeriod(txs, p, now) {
		key := t.Date.String()
		point, ok := byDate[key]
		if !ok {
			point = &DailyPoint{Date: t.Date, Income: decimal.Zero, Expense: decimal.Zero}
			byDate[key] = point
		}
		if t.Type == Income {
			point.Income = point.Income.Add(t.Amount)
		} else {
			point.Expense = point.Expense.Add(t.Amount)
		}
	}

	out := make([]DailyPoint, 0, len(byDate))
	for _, v := range byDate {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// PeriodTotals sums incomes and expenses of the period.
func PeriodTotals(txs []Transaction, p Period, now time.Time) Totals {
	totals := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range FilterPeriod(txs, p, now) {
		if t.Type == Income {
			totals.Income = totals.Income.Add(t.Amount)
		} else {
			totals.Expense = totals.Expense.Add(t.Amount)
		}
	}
	totals.Net = totals.Income.Sub(totals.Expense)
	return totals
}

// BalanceSeries walks the whole history in date order, starting from the
// converted sum of initial balances, and emits one point per transaction.
// Each amount is converted with its account's currency; transactions whose
// account is gone count in the reference currency. Only the last limit
// points are returned when limit is positive.
func BalanceSeries(accounts []Account, txs []Transaction, rates RateTable, limit int) []BalancePoint {
	currencyOf := make(map[string]Currency, len(accounts))
	running := decimal.Zero
	for _, a := range accounts {
		currencyOf[a.ID] = a.Currency
		running = running.Add(Convert(a.InitialBalance, a.Currency, rates))
	}

	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	points := make([]BalancePoint, 0, len(sorted))
	for _, t := range sorted {
		cur, ok := currencyOf[t.AccountID]
		if !ok {
			cur = ReferenceCurrency
		}
		running = running.Add(Convert(t.SignedAmount(), cur, rates))
		points = append(points, BalancePoint{Date: t.Date, Balance: Round2(running)})
	}

	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points
}

// RecentTransactions returns txs newest first (by date, then creation time).
func RecentTransactions(txs []Transaction, limit int) []Transaction {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.After(sorted[j].Date)
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
