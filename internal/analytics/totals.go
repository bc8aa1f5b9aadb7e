package analytics

import (
	"sort"
	"time"

	"budgetwise/internal/core"
)

// Totals is the income, expense and net balance of a period.
type Totals struct {
	Period     Period     `json:"period"`
	Income     core.Money `json:"totalIncome"`
	Expenses   core.Money `json:"totalExpenses"`
	NetBalance core.Money `json:"netBalance"`
}

// ComputeTotals sums income and expenses dated inside p.
func ComputeTotals(txs []core.Transaction, p Period) Totals {
	out := Totals{Period: p}
	for _, t := range txs {
		if !p.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case core.Income:
			out.Income = out.Income.Add(t.Amount)
		case core.Expense:
			out.Expenses = out.Expenses.Add(t.Amount)
		}
	}
	out.NetBalance = out.Income.Sub(out.Expenses)
	return out
}

// MonthTotals returns the totals of the calendar month containing now.
func MonthTotals(txs []core.Transaction, now time.Time) Totals {
	return ComputeTotals(txs, Month(now))
}

// YearTotals returns the year-to-date totals for the calendar year of now.
func YearTotals(txs []core.Transaction, now time.Time) Totals {
	return ComputeTotals(txs, Year(now))
}

// CategoryTotal is the aggregated spend of one category.
type CategoryTotal struct {
	Category string              `json:"category"`
	Amount   core.Money          `json:"amount"`
	Count    int                 `json:"count"`
	Percent  float64             `json:"percent"`
	Visual   core.CategoryVisual `json:"visual"`
}

// Breakdown groups the expenses dated inside p by category and sorts the
// groups by amount descending. Ties keep first-encountered order.
func Breakdown(txs []core.Transaction, p Period) []CategoryTotal {
	return groupExpenses(inPeriod(txs, p, core.Expense))
}

func groupExpenses(expenses []core.Transaction) []CategoryTotal {
	index := map[string]int{}
	var out []CategoryTotal
	var total core.Money
	for _, t := range expenses {
		if t.Type != core.Expense {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, CategoryTotal{Category: t.Category, Visual: core.VisualFor(t.Category)})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
		out[i].Count++
		total = total.Add(t.Amount)
	}
	for i := range out {
		out[i].Percent = ratio(out[i].Amount, total)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Amount.Cents > out[b].Amount.Cents
	})
	return out
}
