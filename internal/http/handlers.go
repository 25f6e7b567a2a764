package http

import (
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.ledger.Snapshot()
	NewJSONResponse().Body(map[string]any{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"accounts":     len(state.Accounts),
		"transactions": len(state.Transactions),
	}).Write(w)
}

type ratesResponse struct {
	Reference core.Currency  `json:"reference"`
	Rates     core.RateTable `json:"rates"`
}

// handleRates refreshes the exchange rates when a source is configured.
// A failed refresh still answers with the table in use.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	var rates core.RateTable
	if s.rates != nil {
		rates = s.ledger.RefreshRates(r.Context(), s.rates)
	} else {
		rates = s.ledger.Snapshot().Rates
	}
	NewJSONResponse().Body(ratesResponse{Reference: core.ReferenceCurrency, Rates: rates}).Write(w)
}

// handleReset deletes every account and transaction.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ledger.Reset(r.Context())
	log.FromContext(r.Context()).WarnContext(r.Context(), "All data deleted", log.FieldOperation, log.OpReset)
	NoContent().Write(w)
}
