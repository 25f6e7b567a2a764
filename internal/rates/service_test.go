package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

type fakeProvider struct {
	table core.RateTable
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeProvider) FetchRates(ctx context.Context, ref core.Currency) (core.RateTable, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.table, f.err
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCurrentMergesOverDefaults(t *testing.T) {
	p := &fakeProvider{table: core.RateTable{core.USD: d("1.1"), core.MUR: d("0")}}
	s := NewService(p, DefaultConfig(), nil)

	got := s.Current(context.Background())
	if !got[core.USD].Equal(d("1.1")) {
		t.Errorf("USD = %s, want 1.1", got[core.USD])
	}
	if !got[core.MUR].Equal(d("48.5")) {
		t.Errorf("MUR = %s, want default 48.5", got[core.MUR])
	}
	if !got[core.EUR].Equal(d("1")) {
		t.Errorf("EUR = %s, want 1", got[core.EUR])
	}
}

func TestCurrentRefreshesOncePerTTL(t *testing.T) {
	p := &fakeProvider{table: core.RateTable{core.USD: d("1.2")}}
	s := NewService(p, DefaultConfig(), nil)

	for i := 0; i < 5; i++ {
		s.Current(context.Background())
	}
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("provider called %d times, want 1", n)
	}
}

func TestCurrentSharesConcurrentRefresh(t *testing.T) {
	p := &fakeProvider{table: core.RateTable{core.USD: d("1.2")}, delay: 50 * time.Millisecond}
	s := NewService(p, DefaultConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Current(context.Background())
		}()
	}
	wg.Wait()
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("provider called %d times, want 1", n)
	}
}

func TestCurrentKeepsPreviousOnFailure(t *testing.T) {
	seed := core.RateTable{core.USD: d("1.05")}
	p := &fakeProvider{err: errors.New("offline")}
	s := NewService(p, DefaultConfig(), seed)

	got := s.Current(context.Background())
	if !got[core.USD].Equal(d("1.05")) {
		t.Fatalf("USD = %s, want seeded 1.05", got[core.USD])
	}
	s.Current(context.Background())
	if n := p.calls.Load(); n != 1 {
		t.Fatalf("failed refresh retried %d times before backoff", n)
	}
}

func TestCurrentWithoutProvider(t *testing.T) {
	s := NewService(nil, DefaultConfig(), nil)
	got := s.Current(context.Background())
	if !got[core.USD].Equal(d("1.08")) || !got[core.MUR].Equal(d("48.5")) {
		t.Fatalf("expected defaults, got %v", got)
	}
}

func TestCurrentReturnsCopies(t *testing.T) {
	s := NewService(&fakeProvider{table: core.RateTable{core.USD: d("1.2")}}, DefaultConfig(), nil)
	got := s.Current(context.Background())
	got[core.USD] = d("99")
	if again := s.Current(context.Background()); !again[core.USD].Equal(d("1.2")) {
		t.Fatal("callers can mutate the cached table")
	}
}

func TestCurrentRebasesForeignQuote(t *testing.T) {
	p := &fakeProvider{table: core.RateTable{core.EUR: d("0.5"), core.USD: d("1"), core.MUR: d("25")}}
	cfg := DefaultConfig()
	cfg.Reference = core.USD
	s := NewService(p, cfg, nil)

	got := s.Current(context.Background())
	want := map[core.Currency]string{core.EUR: "1", core.USD: "2", core.MUR: "50"}
	for c, w := range want {
		if !got[c].Equal(d(w)) {
			t.Errorf("%s = %s, want %s", c, got[c], w)
		}
	}
	if v := core.Convert(d("100"), core.ReferenceCurrency, got); !v.Equal(d("100")) {
		t.Errorf("Convert(100, %s) = %s, want identity", core.ReferenceCurrency, v)
	}
	if v := core.Convert(d("200"), core.USD, got); !v.Equal(d("100")) {
		t.Errorf("Convert(200, USD) = %s, want 100", v)
	}
}

func TestCurrentForeignQuoteWithoutEURKeepsPrevious(t *testing.T) {
	p := &fakeProvider{table: core.RateTable{core.USD: d("1"), core.MUR: d("45")}}
	cfg := DefaultConfig()
	cfg.Reference = core.USD
	s := NewService(p, cfg, nil)

	got := s.Current(context.Background())
	if !got[core.USD].Equal(d("1.08")) || !got[core.MUR].Equal(d("48.5")) {
		t.Errorf("rates = %v, want defaults", got)
	}
}
