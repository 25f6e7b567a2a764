package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const recentLimit = 10

type summaryResponse struct {
	ReferenceCurrency core.Currency      `json:"referenceCurrency"`
	Total             decimal.Decimal    `json:"total"`
	TotalFormatted    string             `json:"totalFormatted"`
	Accounts          []accountView      `json:"accounts"`
	Month             core.Totals        `json:"month"`
	Recent            []core.Transaction `json:"recent"`
}

// handleSummary answers the dashboard header: the portfolio total in the
// reference currency, each account balance, the totals of the trailing
// month and the latest transactions.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.Snapshot()
	now := s.now()

	balances := core.AccountBalances(state.Accounts, state.Transactions)
	accounts := make([]accountView, 0, len(state.Accounts))
	for _, a := range state.Accounts {
		accounts = append(accounts, newAccountView(a, balances[a.ID]))
	}

	total := core.Round2(core.PortfolioTotal(state.Accounts, state.Transactions, state.Rates))
	NewJSONResponse().Body(summaryResponse{
		ReferenceCurrency: core.ReferenceCurrency,
		Total:             total,
		TotalFormatted:    core.Format(total, core.ReferenceCurrency),
		Accounts:          accounts,
		Month:             core.PeriodTotals(state.Transactions, core.PeriodMonth, now),
		Recent:            core.RecentTransactions(state.Transactions, recentLimit),
	}).Write(w)
}

type statsResponse struct {
	Period    core.Period          `json:"period"`
	From      core.Date            `json:"from"`
	To        core.Date            `json:"to"`
	Totals    core.Totals          `json:"totals"`
	Breakdown []core.CategoryTotal `json:"breakdown"`
	Daily     []core.DailyPoint    `json:"daily"`
	Balance   []core.BalancePoint  `json:"balance"`
}

// handleStats aggregates the period given by ?period=day|week|month
// (default month). The balance series always spans the whole history.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.Snapshot()
	now := s.now()
	period := core.ParsePeriod(r.URL.Query().Get("period"))
	from, to := period.Window(now)

	breakdown := core.CategoryBreakdown(state.Transactions, period, now)
	if breakdown == nil {
		breakdown = []core.CategoryTotal{}
	}

	NewJSONResponse().Body(statsResponse{
		Period:    period,
		From:      from,
		To:        to,
		Totals:    core.PeriodTotals(state.Transactions, period, now),
		Breakdown: breakdown,
		Daily:     core.DailySeries(state.Transactions, period, now),
		Balance:   core.BalanceSeries(state.Accounts, state.Transactions, state.Rates, core.BalanceSeriesLimit),
	}).Write(w)
}
