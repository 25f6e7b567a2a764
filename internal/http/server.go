package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/receipt"
)

// Deps are the collaborators of the API server.
type Deps struct {
	Ledger *ledger.Ledger
	// Rates refreshes the exchange rates served by /api/rates. Without
	// it the ledger's current table is returned.
	Rates ledger.RateSource
	// Scanner serves /api/receipts/scan; the endpoint answers 503 when nil.
	Scanner           *receipt.Scanner
	Logger            *log.Logger
	ScanRatePerMinute int
	// Now defaults to time.Now and anchors the statistics windows.
	Now func() time.Time
}

type Server struct {
	http.Server
	ledger      *ledger.Ledger
	rates       ledger.RateSource
	scanner     *receipt.Scanner
	logger      *log.Logger
	scanLimiter *ratelimit.Limiter
	now         func() time.Time
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		ledger:  deps.Ledger,
		rates:   deps.Rates,
		scanner: deps.Scanner,
		logger:  logger.WithComponent(log.ComponentHTTP),
		scanLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.ScanRatePerMinute,
		}),
		now:     now,
		started: time.Now(),
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Leaves room for a full text recognition run.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", s.handleListAccounts)
		r.Post("/accounts", s.handleCreateAccount)
		r.Put("/accounts/{id}", s.handleUpdateAccount)
		r.Delete("/accounts/{id}", s.handleDeleteAccount)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Get("/categories", s.handleCategories)
		r.Get("/summary", s.handleSummary)
		r.Get("/stats", s.handleStats)
		r.Get("/rates", s.handleRates)
		r.Delete("/data", s.handleReset)

		r.With(s.scanLimiter.Middleware(ratelimit.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, ratelimit.ClientIP(r),
				log.FieldPath, r.URL.Path)
			TooManyRequestsError("too many scans, please try again later").Write(w)
		})).Post("/receipts/scan", s.handleScanReceipt)
	})

	return r
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.scanLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
