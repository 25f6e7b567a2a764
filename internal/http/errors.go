package http

import (
	"errors"
	"log/slog"
	"net/http"

	"budget/internal/adapters/ocr"
	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/receipt"
)

var (
	errInvalidBody  = errors.New("invalid request body")
	errMissingImage = errors.New("missing image file")
	errScanDisabled = errors.New("receipt scanning is not configured")
)

// validationErrors are the input errors answered with 400.
var validationErrors = []error{
	errInvalidBody,
	errMissingImage,
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrNoteTooLong,
	core.ErrInvalidAccountType,
	core.ErrInvalidCurrency,
	core.ErrInvalidTxType,
	core.ErrInvalidCategory,
	core.ErrInvalidRecurrence,
	core.ErrMissingAccount,
	ledger.ErrUnknownAccount,
	receipt.ErrEmptyImage,
	ocr.ErrUnsupportedImage,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errScanDisabled):
		return http.StatusServiceUnavailable
	case isValidation(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers err with the mapped status. Internal errors are
// logged and their message is not leaked.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.LogFields(r.Context(), slog.LevelError, "Request failed", log.NewFields().
			WithError(err).
			WithErrorType(log.ErrorTypeInternal).
			WithHTTPRequest(r.Method, r.URL.Path, "", ""))
		InternalServerError("internal error").Write(w)
		return
	}

	errorType := log.ErrorTypeValidation
	if status == http.StatusNotFound {
		errorType = log.ErrorTypeNotFound
	}
	logger.LogFields(r.Context(), slog.LevelDebug, "Request rejected", log.NewFields().
		WithError(err).
		WithErrorType(errorType))
	ErrorResponse(status, err.Error()).Write(w)
}
