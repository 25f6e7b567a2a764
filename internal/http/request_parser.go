package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"budget/internal/core"
)

const (
	maxBodyBytes  = 1 << 20
	maxImageBytes = 10 << 20
)

// flexString accepts a JSON string or number and keeps its text, so
// amounts can be sent either as "12,50" or as 12.5.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a string or a number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// accountRequest is the body of account create and update calls.
type accountRequest struct {
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Currency       string     `json:"currency"`
	InitialBalance flexString `json:"initialBalance"`
}

// toAccount converts the request. A missing or unparseable initial
// balance is zero.
func (req accountRequest) toAccount() (core.Account, error) {
	a := core.Account{
		Name:           req.Name,
		Type:           core.AccountType(strings.ToLower(strings.TrimSpace(req.Type))),
		InitialBalance: core.ParseBalance(string(req.InitialBalance)),
	}
	if c := strings.TrimSpace(req.Currency); c != "" {
		cur, err := core.ParseCurrency(c)
		if err != nil {
			return core.Account{}, err
		}
		a.Currency = cur
	}
	return a, nil
}

// transactionRequest is the body of transaction create calls.
type transactionRequest struct {
	Type      string     `json:"type"`
	Amount    flexString `json:"amount"`
	Category  string     `json:"category"`
	AccountID string     `json:"accountId"`
	Note      string     `json:"note"`
	Date      string     `json:"date"`
	Recurring string     `json:"recurring"`
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		Type:      core.TransactionType(strings.ToLower(strings.TrimSpace(req.Type))),
		Amount:    amount,
		Category:  strings.TrimSpace(req.Category),
		AccountID: strings.TrimSpace(req.AccountID),
		Note:      req.Note,
		Recurring: core.Recurrence(strings.ToLower(strings.TrimSpace(req.Recurring))),
	}
	if d := strings.TrimSpace(req.Date); d != "" {
		date, err := core.ParseDate(d)
		if err != nil {
			return core.Transaction{}, core.ErrInvalidDate
		}
		t.Date = date
	}
	return t, nil
}

// decodeJSON reads a single JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errInvalidBody)
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON value", errInvalidBody)
	}
	return nil
}

// queryInt returns a non-negative integer query parameter or def.
func queryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// readImage returns the bytes of the "image" multipart field.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errMissingImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}
