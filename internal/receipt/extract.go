// Package receipt turns recognized receipt text into a candidate amount and
// date. Both guesses are defaults for the user to correct, not validated facts.
package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// UnavailableText replaces the recognized text when recognition fails.
const UnavailableText = "OCR unavailable - please enter the amount manually"

var (
	amountRe = regexp.MustCompile(`\d+[.,]\d{2}`)
	dateRe   = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)
)

// Fields is the best guess extracted from a receipt.
type Fields struct {
	Amount     decimal.Decimal `json:"amount"`
	Date       core.Date       `json:"date"`
	RawText    string          `json:"rawText"`
	Recognized bool            `json:"recognized"`
}

// AmountString formats the amount with two fraction digits.
func (f Fields) AmountString() string {
	return f.Amount.StringFixed(2)
}

// ExtractFields guesses the amount and date printed on a receipt.
// The amount is the largest two-decimal figure on the premise that the
// total is the biggest number printed; the date is the first
// day/month/year group. Missing values fall back to zero and today.
func ExtractFields(raw string, today core.Date) Fields {
	return Fields{
		Amount:     guessAmount(raw),
		Date:       guessDate(raw, today),
		RawText:    raw,
		Recognized: raw != UnavailableText,
	}
}

func guessAmount(txt string) decimal.Decimal {
	best := decimal.Zero
	for _, m := range amountRe.FindAllString(txt, -1) {
		v, err := decimal.NewFromString(strings.Replace(m, ",", ".", 1))
		if err != nil {
			continue
		}
		if v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

func guessDate(txt string, today core.Date) core.Date {
	m := dateRe.FindStringSubmatch(txt)
	if m == nil {
		return today
	}
	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	y, _ := strconv.Atoi(year)

	iso := fmt.Sprintf("%04d-%02d-%02d", y, month, day)
	d, err := core.ParseDate(iso)
	if err != nil {
		return today
	}
	return d
}
