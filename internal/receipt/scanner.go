package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"budget/internal/core"
)

// Recognizer extracts raw text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// ErrEmptyImage is returned by recognizers given no image bytes.
var ErrEmptyImage = errors.New("empty image")

// ScannerConfig holds configuration for the receipt scanner
type ScannerConfig struct {
	// Timeout bounds a single recognition (default: 30s)
	Timeout time.Duration

	// MemoTTL is how long recognized text is kept per image (default: 1h)
	MemoTTL time.Duration
}

// DefaultScannerConfig returns sensible defaults
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Timeout: 30 * time.Second,
		MemoTTL: time.Hour,
	}
}

// Scanner runs recognition and extraction. It never fails: a recognizer
// error or timeout degrades to UnavailableText and a zero amount.
type Scanner struct {
	recognizer Recognizer
	config     ScannerConfig
	memo       *cache.Cache
	now        func() time.Time
}

// NewScanner creates a scanner around a recognizer.
func NewScanner(recognizer Recognizer, config ScannerConfig) *Scanner {
	def := DefaultScannerConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MemoTTL <= 0 {
		config.MemoTTL = def.MemoTTL
	}
	return &Scanner{
		recognizer: recognizer,
		config:     config,
		memo:       cache.New(config.MemoTTL, 2*config.MemoTTL),
		now:        time.Now,
	}
}

// Scan recognizes the image and extracts its fields.
func (s *Scanner) Scan(ctx context.Context, image []byte) Fields {
	today := core.DateOf(s.now())
	return ExtractFields(s.recognize(ctx, image), today)
}

func (s *Scanner) recognize(ctx context.Context, image []byte) string {
	if s.recognizer == nil || len(image) == 0 {
		return UnavailableText
	}

	sum := sha256.Sum256(image)
	key := hex.EncodeToString(sum[:])
	if text, found := s.memo.Get(key); found {
		return text.(string)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.recognizer.Recognize(ctx, image)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			slog.WarnContext(ctx, "Text recognition failed, using placeholder", "error", r.err)
			return UnavailableText
		}
		s.memo.Set(key, r.text, cache.DefaultExpiration)
		return r.text
	case <-ctx.Done():
		slog.WarnContext(ctx, "Text recognition timed out, using placeholder",
			"timeout", s.config.Timeout, "error", ctx.Err())
		return UnavailableText
	}
}
