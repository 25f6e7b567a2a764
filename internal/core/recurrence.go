// This file implements the recurrence expander: it materializes the
// occurrences of recurring templates that have come due.

package core

import (
	"time"
)

const (
	RecurNone    Recurrence = "none"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// Recurrence is the repetition rule of a transaction.
type Recurrence string

func (r Recurrence) IsValid() bool {
	if r == RecurNone {
		return true
	}
	_, ok := steppers[r]
	return ok
}

// Stepper computes the n-th occurrence date of a schedule starting at start.
// Occurrences are anchored on start rather than chained, so a monthly rule
// starting on the 31st lands on every month's last day without drifting.
type Stepper interface {
	Step(start Date, n int) Date
}

// WeeklyStepper advances by seven calendar days per occurrence.
type WeeklyStepper struct{}

func (WeeklyStepper) Step(start Date, n int) Date {
	return start.AddDays(7 * n)
}

// MonthlyStepper advances by calendar months, clamped to month end.
type MonthlyStepper struct{}

func (MonthlyStepper) Step(start Date, n int) Date {
	return start.AddMonths(n)
}

var steppers = map[Recurrence]Stepper{
	RecurWeekly:  WeeklyStepper{},
	RecurMonthly: MonthlyStepper{},
}

// StepperFor returns the stepper registered for a recurrence rule.
func StepperFor(r Recurrence) (Stepper, bool) {
	s, ok := steppers[r]
	return s, ok
}

// RegisterStepper adds or replaces the stepper of a recurrence rule.
func RegisterStepper(r Recurrence, s Stepper) {
	steppers[r] = s
}

type occurrenceKey struct {
	parent string
	date   string
}

// ExpandRecurring returns the occurrences of every recurring template in txs
// that are scheduled on or before now's calendar date and not yet present.
// Missed periods are all backfilled; a template dated in the future yields
// nothing. Running it again with its output appended yields nothing.
func ExpandRecurring(txs []Transaction, now time.Time, newID func() string) []Transaction {
	existing := make(map[occurrenceKey]struct{}, len(txs))
	for _, t := range txs {
		if t.RecurringParent != "" {
			existing[occurrenceKey{t.RecurringParent, t.Date.String()}] = struct{}{}
		}
	}

	today := DateOf(now)
	var out []Transaction
	for _, tmpl := range txs {
		if !tmpl.IsTemplate() || tmpl.Date.IsZero() {
			continue
		}
		stepper, ok := StepperFor(tmpl.Recurring)
		if !ok {
			continue
		}
		for n := 1; ; n++ {
			next := stepper.Step(tmpl.Date, n)
			if next.After(today) {
				break
			}
			key := occurrenceKey{tmpl.ID, next.String()}
			if _, found := existing[key]; found {
				continue
			}
			occ := tmpl
			occ.ID = newID()
			occ.Date = next
			occ.RecurringParent = tmpl.ID
			occ.Recurring = RecurNone
			existing[key] = struct{}{}
			out = append(out, occ)
		}
	}
	return out
}
