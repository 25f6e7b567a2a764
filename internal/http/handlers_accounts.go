package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
)

// accountView is an account with its derived balance.
type accountView struct {
	core.Account
	Balance   decimal.Decimal `json:"balance"`
	Formatted string          `json:"formatted"`
}

func newAccountView(a core.Account, balance decimal.Decimal) accountView {
	balance = core.Round2(balance)
	return accountView{Account: a, Balance: balance, Formatted: core.Format(balance, a.Currency)}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.Snapshot()
	balances := core.AccountBalances(state.Accounts, state.Transactions)

	views := make([]accountView, 0, len(state.Accounts))
	for _, a := range state.Accounts {
		views = append(views, newAccountView(a, balances[a.ID]))
	}
	NewJSONResponse().Body(views).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := req.toAccount()
	if err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := s.ledger.SaveAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Account created",
		log.FieldOperation, log.OpCreate,
		log.FieldAccountID, saved.ID,
		log.FieldCurrency, saved.Currency)
	Created(newAccountView(saved, saved.InitialBalance)).Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := req.toAccount()
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.ID = chi.URLParam(r, "id")

	saved, err := s.ledger.SaveAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}

	state := s.ledger.Snapshot()
	NewJSONResponse().Body(newAccountView(saved, core.AccountBalance(saved, state.Transactions))).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ledger.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldAccountID, id)
	NoContent().Write(w)
}
