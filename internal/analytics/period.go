// Package analytics folds transaction lists into dashboard metrics.
//
// Every function here is pure: it takes the transactions, the user's budgets
// and a reference time, and returns plain result structs. Month and year
// boundaries follow the location of the reference time.
package analytics

import (
	"fmt"
	"time"

	"budgetwise/internal/core"
)

// Period is a half-open time range [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Month returns the calendar month containing ref.
func Month(ref time.Time) Period {
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Year returns the calendar year containing ref.
func Year(ref time.Time) Period {
	start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
	return Period{Start: start, End: start.AddDate(1, 0, 0)}
}

// MonthsBack returns the calendar month n months before the one containing ref.
func MonthsBack(ref time.Time, n int) Period {
	start := time.Date(ref.Year(), ref.Month()-time.Month(n), 1, 0, 0, 0, 0, ref.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// LastDays returns the n days ending at ref.
func LastDays(ref time.Time, n int) Period {
	return Period{Start: ref.AddDate(0, 0, -n), End: ref}
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// ParseMonth parses a "YYYY-MM" selector into the month it names, in loc.
func ParseMonth(s string, loc *time.Location) (Period, error) {
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return Month(t), nil
}

// MonthKey renders the "YYYY-MM" selector for the month containing t.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// inPeriod returns the transactions of type typ dated inside p. An empty
// typ matches both types.
func inPeriod(txs []core.Transaction, p Period, typ core.TxType) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if typ != "" && t.Type != typ {
			continue
		}
		if p.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

func sum(txs []core.Transaction) core.Money {
	var total core.Money
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// ratio returns a/b*100, or 0 when b is zero.
func ratio(a, b core.Money) float64 {
	if b.Cents == 0 {
		return 0
	}
	return float64(a.Cents) / float64(b.Cents) * 100
}
