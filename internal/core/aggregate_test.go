package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var aggNow = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

func TestPeriodWindow(t *testing.T) {
	tests := []struct {
		period   Period
		from, to string
	}{
		{PeriodDay, "2024-03-15", "2024-03-15"},
		{PeriodWeek, "2024-03-09", "2024-03-15"},
		{PeriodMonth, "2024-02-15", "2024-03-15"},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			from, to := tt.period.Window(aggNow)
			if from.String() != tt.from || to.String() != tt.to {
				t.Errorf("Window() = [%s, %s], want [%s, %s]", from, to, tt.from, tt.to)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	if ParsePeriod("WEEK") != PeriodWeek || ParsePeriod("day") != PeriodDay {
		t.Fatal("known periods not parsed")
	}
	if ParsePeriod("year") != PeriodMonth || ParsePeriod("") != PeriodMonth {
		t.Fatal("unknown periods should default to month")
	}
}

func TestCategoryBreakdownScenario(t *testing.T) {
	txs := []Transaction{tx("1", "a", Expense, "200", NewDate(2024, 3, 15))}
	txs[0].Category = "food"

	got := CategoryBreakdown(txs, PeriodMonth, aggNow)
	if len(got) != 1 || got[0].Category != "food" || !got[0].Total.Equal(dec("200")) {
		t.Fatalf("unexpected breakdown: %+v", got)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	mk := func(cat, amount string, date Date, typ TransactionType) Transaction {
		r := tx(cat+amount, "a", typ, amount, date)
		r.Category = cat
		return r
	}
	in := NewDate(2024, 3, 10)
	txs := []Transaction{
		mk("food", "20", in, Expense),
		mk("food", "5.5", in, Expense),
		mk("transport", "40", in, Expense),
		mk("legacy", "3", in, Expense),
		mk(OtherExpense, "1", in, Expense),
		mk("salary", "1000", in, Income),
		mk("food", "999", NewDate(2024, 1, 1), Expense), // outside window
	}

	got := CategoryBreakdown(txs, PeriodWeek, aggNow)
	want := []struct {
		cat   string
		total string
	}{
		{"transport", "40"},
		{"food", "25.5"},
		{OtherExpense, "4"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Category != w.cat || !got[i].Total.Equal(dec(w.total)) {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, got[i].Category, got[i].Total, w.cat, w.total)
		}
	}

	// Breakdown sums match the expense total of the window.
	sum := decimal.Zero
	for _, e := range got {
		sum = sum.Add(e.Total)
	}
	if totals := PeriodTotals(txs, PeriodWeek, aggNow); !sum.Equal(totals.Expense) {
		t.Errorf("breakdown sum %s != expense total %s", sum, totals.Expense)
	}
}

func TestFilterPeriodInclusiveBounds(t *testing.T) {
	txs := []Transaction{
		tx("edge-from", "a", Expense, "1", NewDate(2024, 3, 9)),
		tx("edge-to", "a", Expense, "1", NewDate(2024, 3, 15)),
		tx("before", "a", Expense, "1", NewDate(2024, 3, 8)),
		tx("future", "a", Expense, "1", NewDate(2024, 3, 16)),
	}
	got := FilterPeriod(txs, PeriodWeek, aggNow)
	if len(got) != 2 || got[0].ID != "edge-from" || got[1].ID != "edge-to" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if !PeriodWeek.Contains(NewDate(2024, 3, 9), aggNow) || PeriodDay.Contains(NewDate(2024, 3, 14), aggNow) {
		t.Fatal("Contains disagrees with window")
	}
}

func TestDailySeries(t *testing.T) {
	txs := []Transaction{
		tx("1", "a", Expense, "10", NewDate(2024, 3, 14)),
		tx("2", "a", Income, "100", NewDate(2024, 3, 12)),
		tx("3", "a", Expense, "2.5", NewDate(2024, 3, 14)),
		tx("4", "a", Income, "7", NewDate(2024, 3, 14)),
	}
	got := DailySeries(txs, PeriodWeek, aggNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}
	if got[0].Date.String() != "2024-03-12" || !got[0].Income.Equal(dec("100")) || !got[0].Expense.IsZero() {
		t.Errorf("day 0 = %+v", got[0])
	}
	if got[1].Date.String() != "2024-03-14" || !got[1].Income.Equal(dec("7")) || !got[1].Expense.Equal(dec("12.5")) {
		t.Errorf("day 1 = %+v", got[1])
	}
}

func TestPeriodTotals(t *testing.T) {
	txs := []Transaction{
		tx("1", "a", Income, "100", NewDate(2024, 3, 15)),
		tx("2", "a", Expense, "30.5", NewDate(2024, 3, 15)),
		tx("3", "a", Expense, "1", NewDate(2024, 3, 14)),
	}
	got := PeriodTotals(txs, PeriodDay, aggNow)
	if !got.Income.Equal(dec("100")) || !got.Expense.Equal(dec("30.5")) || !got.Net.Equal(dec("69.5")) {
		t.Fatalf("unexpected totals: %+v", got)
	}
}

func TestBalanceSeries(t *testing.T) {
	rates := RateTable{EUR: dec("1"), USD: dec("2")}
	accounts := []Account{
		{ID: "eur", Currency: EUR, InitialBalance: dec("100")},
		{ID: "usd", Currency: USD, InitialBalance: dec("50")},
	}
	txs := []Transaction{
		tx("late", "eur", Expense, "10", NewDate(2024, 3, 3)),
		tx("early", "usd", Income, "20", NewDate(2024, 3, 1)),
		tx("orphan", "deleted", Expense, "1.013", NewDate(2024, 3, 2)),
	}

	got := BalanceSeries(accounts, txs, rates, BalanceSeriesLimit)
	want := []struct {
		date    string
		balance string
	}{
		{"2024-03-01", "135"},    // 100 + 25 + 10
		{"2024-03-02", "133.99"}, // orphan counted in EUR, rounded at emission
		{"2024-03-03", "123.99"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d points", len(got))
	}
	for i, w := range want {
		if got[i].Date.String() != w.date || !got[i].Balance.Equal(dec(w.balance)) {
			t.Errorf("point %d = %s/%s, want %s/%s", i, got[i].Date, got[i].Balance, w.date, w.balance)
		}
	}
}

func TestBalanceSeriesLimitAndOrder(t *testing.T) {
	accounts := []Account{{ID: "a", Currency: EUR}}
	var txs []Transaction
	start := NewDate(2024, 1, 1)
	for i := 0; i < 45; i++ {
		txs = append(txs, tx("t", "a", Income, "1", start.AddDays(44-i)))
	}
	got := BalanceSeries(accounts, txs, DefaultRates(), BalanceSeriesLimit)
	if len(got) != BalanceSeriesLimit {
		t.Fatalf("len = %d, want %d", len(got), BalanceSeriesLimit)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.Before(got[i-1].Date) {
			t.Fatalf("points out of order at %d", i)
		}
	}
	if !got[len(got)-1].Balance.Equal(dec("45")) {
		t.Fatalf("last balance = %s, want 45", got[len(got)-1].Balance)
	}
}

func TestRecentTransactions(t *testing.T) {
	d := NewDate(2024, 3, 1)
	a := tx("a", "x", Expense, "1", d)
	a.CreatedAt = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	b := tx("b", "x", Expense, "1", d)
	b.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c := tx("c", "x", Expense, "1", d.AddDays(1))

	got := RecentTransactions([]Transaction{a, b, c}, 2)
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected order: %v, %v", got[0].ID, got[1].ID)
	}
}
