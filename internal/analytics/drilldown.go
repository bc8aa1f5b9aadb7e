package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"budgetwise/internal/core"
)

// Timeframe selects the window of a category drilldown.
type Timeframe string

const (
	ThisMonth  Timeframe = "thisMonth"
	Last3Month Timeframe = "3months"
	Last6Month Timeframe = "6months"
	LastYear   Timeframe = "1year"
	AllTime    Timeframe = "all"
)

// ParseTimeframe validates a timeframe query value, defaulting to ThisMonth.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.TrimSpace(s)); tf {
	case "":
		return ThisMonth, nil
	case ThisMonth, Last3Month, Last6Month, LastYear, AllTime:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// Window returns the period covered by the timeframe and whether it is
// bounded at all. Bounded windows start at the beginning of a month and end
// with the month of now.
func (tf Timeframe) Window(now time.Time) (Period, bool) {
	var back int
	switch tf {
	case ThisMonth, "":
		back = 0
	case Last3Month:
		back = 2
	case Last6Month:
		back = 5
	case LastYear:
		back = 11
	default:
		return Period{}, false
	}
	return Period{Start: MonthsBack(now, back).Start, End: Month(now).End}, true
}

func (tf Timeframe) filter(txs []core.Transaction, now time.Time) []core.Transaction {
	p, bounded := tf.Window(now)
	if !bounded {
		return txs
	}
	return inPeriod(txs, p, "")
}

// Drilldown returns per-category expense totals with counts for the timeframe,
// largest first.
func Drilldown(txs []core.Transaction, tf Timeframe, now time.Time) []CategoryTotal {
	return groupExpenses(filterType(tf.filter(txs, now), core.Expense))
}

// DayGroup holds the transactions of one category on one calendar day.
type DayGroup struct {
	Date         string             `json:"date"`
	Label        string             `json:"label"`
	Total        core.Money         `json:"total"`
	Transactions []core.Transaction `json:"transactions"`
}

// DailyGroups groups the transactions of category in the timeframe by day,
// newest day first. Days are taken in the location of now.
func DailyGroups(txs []core.Transaction, category string, tf Timeframe, now time.Time) []DayGroup {
	index := map[string]int{}
	var out []DayGroup
	for _, t := range tf.filter(txs, now) {
		if t.Category != category {
			continue
		}
		d := t.Date.In(now.Location())
		key := d.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, DayGroup{Date: key, Label: d.Format("Jan 02, 2006")})
		}
		out[i].Total = out[i].Total.Add(t.Amount)
		out[i].Transactions = append(out[i].Transactions, t)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date > out[b].Date })
	return out
}

// DailyPoint is the income and expense of one day of the month.
type DailyPoint struct {
	Day      int        `json:"day"`
	Date     string     `json:"date"`
	Income   core.Money `json:"income"`
	Expenses core.Money `json:"expenses"`
}

// DailySeries returns one point per day of the month containing now.
func DailySeries(txs []core.Transaction, now time.Time) []DailyPoint {
	p := Month(now)
	days := p.End.AddDate(0, 0, -1).Day()
	out := make([]DailyPoint, days)
	for i := range out {
		out[i] = DailyPoint{Day: i + 1, Date: p.Start.AddDate(0, 0, i).Format(time.DateOnly)}
	}
	for _, t := range inPeriod(txs, p, "") {
		d := t.Date.In(now.Location()).Day() - 1
		switch t.Type {
		case core.Income:
			out[d].Income = out[d].Income.Add(t.Amount)
		case core.Expense:
			out[d].Expenses = out[d].Expenses.Add(t.Amount)
		}
	}
	return out
}
