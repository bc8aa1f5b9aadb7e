package analytics

import (
	"fmt"
	"strings"
	"time"

	"budgetwise/internal/core"
)

// NoCategory names the top category when nothing was spent.
const NoCategory = "None"

// QuickInsight summarizes the last 30 days of activity. SpendingTrend is the
// percent change of expenses in the last 15 days against the 15 days before,
// 0 when the earlier window is empty.
type QuickInsight struct {
	Income        core.Money          `json:"income"`
	Expenses      core.Money          `json:"expenses"`
	SavingsRate   float64             `json:"savingsRate"`
	TopCategory   core.CategoryAmount `json:"topCategory"`
	SpendingTrend float64             `json:"spendingTrend"`
}

// QuickInsights computes income, expenses, savings rate, top category and
// spending trend over the 30 days ending at now.
func QuickInsights(txs []core.Transaction, now time.Time) QuickInsight {
	window := LastDays(now, 30)
	recent := inPeriod(txs, window, "")
	income := sum(filterType(recent, core.Income))
	expenses := filterType(recent, core.Expense)

	out := QuickInsight{
		Income:      income,
		Expenses:    sum(expenses),
		SavingsRate: SavingsRate(income, sum(expenses)),
		TopCategory: core.CategoryAmount{Category: NoCategory},
	}
	if groups := groupExpenses(expenses); len(groups) > 0 {
		out.TopCategory = core.CategoryAmount{Category: groups[0].Category, Amount: groups[0].Amount}
	}

	last := sum(inPeriod(expenses, LastDays(now, 15), core.Expense))
	prev := sum(inPeriod(expenses, Period{Start: window.Start, End: now.AddDate(0, 0, -15)}, core.Expense))
	out.SpendingTrend = change(last, prev)
	return out
}

func filterType(txs []core.Transaction, typ core.TxType) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

// TrendRange selects how many months a trend series covers.
type TrendRange string

const (
	Range3Months TrendRange = "3months"
	Range6Months TrendRange = "6months"
	Range1Year   TrendRange = "1year"
)

// defaultTrendCategories is how many top categories a trend shows by default.
const defaultTrendCategories = 3

// Months returns the number of months covered by the range.
func (r TrendRange) Months() (int, error) {
	switch r {
	case Range3Months, "":
		return 3, nil
	case Range6Months:
		return 6, nil
	case Range1Year:
		return 12, nil
	default:
		return 0, fmt.Errorf("unknown trend range %q", string(r))
	}
}

type (
	// TrendPoint is the expense total of one month, overall and per category.
	TrendPoint struct {
		Month      string                `json:"month"`
		Label      string                `json:"label"`
		Categories map[string]core.Money `json:"categories"`
		Total      core.Money            `json:"total"`
	}

	// TrendReport is a monthly expense series, oldest month first.
	TrendReport struct {
		Range      TrendRange   `json:"range"`
		Categories []string     `json:"categories"`
		Points     []TrendPoint `json:"points"`
	}
)

// SpendingTrends builds the monthly expense series ending with the month of
// now. Without explicit categories the top three by all-time spend are used.
func SpendingTrends(txs []core.Transaction, now time.Time, rng TrendRange, categories []string) (TrendReport, error) {
	n, err := rng.Months()
	if err != nil {
		return TrendReport{}, err
	}
	if rng == "" {
		rng = Range3Months
	}
	if len(categories) == 0 {
		categories = TopCategories(txs, defaultTrendCategories)
	}

	report := TrendReport{Range: rng, Categories: categories}
	for i := n - 1; i >= 0; i-- {
		p := MonthsBack(now, i)
		expenses := inPeriod(txs, p, core.Expense)
		point := TrendPoint{
			Month:      MonthKey(p.Start),
			Label:      p.Start.Format("Jan 2006"),
			Categories: make(map[string]core.Money, len(categories)),
			Total:      sum(expenses),
		}
		for _, c := range categories {
			point.Categories[c] = core.Money{}
		}
		for _, t := range expenses {
			if v, ok := point.Categories[t.Category]; ok {
				point.Categories[t.Category] = v.Add(t.Amount)
			}
		}
		report.Points = append(report.Points, point)
	}
	return report, nil
}

// TopCategories returns up to n expense categories by all-time spend.
func TopCategories(txs []core.Transaction, n int) []string {
	groups := groupExpenses(filterType(txs, core.Expense))
	if len(groups) > n {
		groups = groups[:n]
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Category
	}
	return out
}

// ParseTrendRange validates a range query value.
func ParseTrendRange(s string) (TrendRange, error) {
	r := TrendRange(strings.TrimSpace(s))
	if _, err := r.Months(); err != nil {
		return "", err
	}
	if r == "" {
		r = Range3Months
	}
	return r, nil
}
