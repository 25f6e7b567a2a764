package http

import (
	"net/http"

	"budget/internal/adapters/ocr"
	"budget/internal/core"
	"budget/internal/log"
)

type scanResponse struct {
	Amount     string    `json:"amount"`
	Date       core.Date `json:"date"`
	RawText    string    `json:"rawText"`
	Recognized bool      `json:"recognized"`
}

// handleScanReceipt prefills a transaction from a receipt photo sent as
// the multipart field "image". Recognition failures still answer 200 with
// a zero amount and today's date.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, r, errScanDisabled)
		return
	}

	img, err := readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ocr.ValidateImage(img); err != nil {
		writeError(w, r, err)
		return
	}

	fields := s.scanner.Scan(r.Context(), img)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Receipt scanned",
		log.FieldOperation, log.OpScan,
		log.FieldAmount, fields.AmountString(),
		"recognized", fields.Recognized,
		"bytes", len(img))

	NewJSONResponse().Body(scanResponse{
		Amount:     fields.AmountString(),
		Date:       fields.Date,
		RawText:    fields.RawText,
		Recognized: fields.Recognized,
	}).Write(w)
}
