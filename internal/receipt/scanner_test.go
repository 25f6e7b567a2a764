package receipt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRecognizer struct {
	text  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func fixedScanner(rec Recognizer, cfg ScannerConfig) *Scanner {
	s := NewScanner(rec, cfg)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestScannerScan(t *testing.T) {
	rec := &fakeRecognizer{text: "TOTAL 12,50 MERCI 05/03/2024"}
	s := fixedScanner(rec, DefaultScannerConfig())

	got := s.Scan(context.Background(), []byte("img"))
	if got.AmountString() != "12.50" || got.Date.String() != "2024-03-05" || !got.Recognized {
		t.Fatalf("unexpected fields: %+v", got)
	}

	// Same image hits the memo.
	s.Scan(context.Background(), []byte("img"))
	if n := rec.calls.Load(); n != 1 {
		t.Fatalf("recognizer called %d times, want 1", n)
	}
}

func TestScannerDegradesOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		rec   Recognizer
		image []byte
	}{
		{"recognizer error", &fakeRecognizer{err: errors.New("boom")}, []byte("img")},
		{"timeout", &fakeRecognizer{text: "1,00", delay: time.Second}, []byte("img")},
		{"no recognizer", nil, []byte("img")},
		{"empty image", &fakeRecognizer{text: "1,00"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fixedScanner(tt.rec, ScannerConfig{Timeout: 20 * time.Millisecond})
			got := s.Scan(context.Background(), tt.image)
			if got.RawText != UnavailableText || got.Recognized {
				t.Fatalf("expected placeholder, got %+v", got)
			}
			if got.AmountString() != "0.00" || got.Date.String() != "2025-06-01" {
				t.Fatalf("expected zero amount and today, got %s %s", got.AmountString(), got.Date)
			}
		})
	}
}

func TestScannerDoesNotMemoizeFailures(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("boom")}
	s := fixedScanner(rec, DefaultScannerConfig())
	s.Scan(context.Background(), []byte("img"))
	s.Scan(context.Background(), []byte("img"))
	if n := rec.calls.Load(); n != 2 {
		t.Fatalf("recognizer called %d times, want 2", n)
	}
}
