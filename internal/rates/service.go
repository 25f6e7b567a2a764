// Package rates keeps the exchange rate table current. It refreshes from a
// provider at most once per TTL and never fails: when the provider is
// unreachable the previous table, or the static defaults, stay in use.
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"budget/internal/core"
)

const tableKey = "rates"

// Provider fetches live rates quoted against the reference currency.
type Provider interface {
	FetchRates(ctx context.Context, ref core.Currency) (core.RateTable, error)
}

// Config holds configuration for the rate service
type Config struct {
	// Reference is the currency the provider quotes against (default: EUR).
	// Fetched tables are rebased so the stored table is always per EUR.
	Reference core.Currency

	// TTL is how long a fetched table is considered fresh (default: 24h)
	TTL time.Duration

	// Timeout bounds a single provider call (default: 5s)
	Timeout time.Duration

	// RetryAfter is how long a failed refresh is not retried (default: 5m)
	RetryAfter time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Reference:  core.ReferenceCurrency,
		TTL:        24 * time.Hour,
		Timeout:    5 * time.Second,
		RetryAfter: 5 * time.Minute,
	}
}

type Service struct {
	provider Provider
	config   Config
	fresh    *cache.Cache
	group    singleflight.Group

	mu   sync.RWMutex
	last core.RateTable
}

// NewService creates a rate service starting from seed, or from the
// default table when seed is empty. provider may be nil.
func NewService(provider Provider, config Config, seed core.RateTable) *Service {
	def := DefaultConfig()
	if config.Reference == "" {
		config.Reference = def.Reference
	}
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.RetryAfter <= 0 {
		config.RetryAfter = def.RetryAfter
	}
	last := core.DefaultRates()
	for c, v := range seed {
		if v.IsPositive() {
			last[c] = v
		}
	}
	return &Service{
		provider: provider,
		config:   config,
		fresh:    cache.New(config.TTL, config.TTL),
		last:     last,
	}
}

// Current returns the freshest known table, refreshing it first when the
// TTL has lapsed. Concurrent callers share one provider request.
func (s *Service) Current(ctx context.Context) core.RateTable {
	if v, ok := s.fresh.Get(tableKey); ok {
		return v.(core.RateTable).Clone()
	}
	if s.provider == nil {
		return s.Last()
	}

	v, _, _ := s.group.Do(tableKey, func() (any, error) {
		return s.refresh(ctx), nil
	})
	return v.(core.RateTable).Clone()
}

// Last returns the last known table without contacting the provider.
func (s *Service) Last() core.RateTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last.Clone()
}

func (s *Service) refresh(ctx context.Context) core.RateTable {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	fetched, err := s.provider.FetchRates(ctx, s.config.Reference)
	if err == nil {
		fetched, err = rebase(fetched, s.config.Reference)
	}
	if err != nil {
		slog.WarnContext(ctx, "Rate refresh failed, keeping previous rates",
			"retry_after", s.config.RetryAfter, "error", err)
		last := s.Last()
		s.fresh.Set(tableKey, last, s.config.RetryAfter)
		return last.Clone()
	}

	s.mu.Lock()
	merged := s.last.Clone()
	for _, c := range core.Currencies {
		if v, ok := fetched[c]; ok && v.IsPositive() {
			merged[c] = v
		}
	}
	merged[core.ReferenceCurrency] = decimal.NewFromInt(1)
	s.last = merged
	s.mu.Unlock()

	s.fresh.Set(tableKey, merged.Clone(), cache.DefaultExpiration)
	slog.InfoContext(ctx, "Exchange rates refreshed", "reference", s.config.Reference, "currencies", len(merged))
	return merged.Clone()
}

// rebase converts a table quoted against quote into one quoted against
// core.ReferenceCurrency.
func rebase(table core.RateTable, quote core.Currency) (core.RateTable, error) {
	if quote == core.ReferenceCurrency {
		return table, nil
	}
	base, ok := table[core.ReferenceCurrency]
	if !ok || !base.IsPositive() {
		return nil, fmt.Errorf("rebase rates: no %s rate in table quoted against %s", core.ReferenceCurrency, quote)
	}
	out := make(core.RateTable, len(table)+1)
	out[quote] = decimal.NewFromInt(1)
	for c, v := range table {
		out[c] = v
	}
	for c, v := range out {
		out[c] = v.Div(base)
	}
	return out, nil
}
