package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"budget/internal/core"
	"budget/internal/log"
)

// handleListTransactions returns transactions newest first. Optional
// filters: accountId, type, period (day|week|month) and limit.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.Snapshot()
	q := r.URL.Query()

	txs := state.Transactions
	if p := strings.TrimSpace(q.Get("period")); p != "" {
		txs = core.FilterPeriod(txs, core.ParsePeriod(p), s.now())
	}

	accountID := strings.TrimSpace(q.Get("accountId"))
	txType := core.TransactionType(strings.ToLower(strings.TrimSpace(q.Get("type"))))
	filtered := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if accountID != "" && t.AccountID != accountID {
			continue
		}
		if txType != "" && t.Type != txType {
			continue
		}
		filtered = append(filtered, t)
	}

	NewJSONResponse().Body(core.RecentTransactions(filtered, queryInt(r, "limit", 0))).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := req.toTransaction()
	if err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := s.ledger.AddTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).LogFields(r.Context(), slog.LevelInfo, "Transaction created", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(saved.ID, string(saved.Type), saved.Amount.String(), saved.Category, saved.AccountID))
	Created(saved).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}

// categoryList is the category set of both transaction types.
type categoryList struct {
	Expense []core.Category `json:"expense"`
	Income  []core.Category `json:"income"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch core.TransactionType(strings.ToLower(r.URL.Query().Get("type"))) {
	case core.Expense:
		NewJSONResponse().Body(core.ExpenseCategories).Write(w)
	case core.Income:
		NewJSONResponse().Body(core.IncomeCategories).Write(w)
	default:
		NewJSONResponse().Body(categoryList{Expense: core.ExpenseCategories, Income: core.IncomeCategories}).Write(w)
	}
}
