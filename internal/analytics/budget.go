package analytics

import (
	"sort"
	"time"

	"budgetwise/internal/core"
)

// BudgetStatus classifies actual spend against a category budget.
type BudgetStatus string

const (
	StatusOver     BudgetStatus = "over"
	StatusWarning  BudgetStatus = "warning"
	StatusGood     BudgetStatus = "good"
	StatusNoBudget BudgetStatus = "noBudget"
)

// warningRatio is the share of a budget above which spend is flagged.
const warningRatio = 0.9

type (
	// BudgetLine compares the spend of one category to its budget. Budget is
	// nil when the user set none; PercentUsed is then 100 and only used for
	// ordering.
	BudgetLine struct {
		Category    string              `json:"category"`
		Actual      core.Money          `json:"actual"`
		Budget      *core.Money         `json:"budget"`
		Difference  core.Money          `json:"difference"`
		PercentUsed float64             `json:"percentUsed"`
		Status      BudgetStatus        `json:"status"`
		Visual      core.CategoryVisual `json:"visual"`
	}

	// BudgetReport is the per-category comparison plus a totals row.
	BudgetReport struct {
		Lines  []BudgetLine `json:"lines"`
		Totals BudgetLine   `json:"totals"`
	}

	// MonthOption is an entry of a month selector.
	MonthOption struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
)

func classify(actual, budget core.Money) BudgetStatus {
	switch {
	case budget.Cents <= 0:
		return StatusNoBudget
	case actual.Cents > budget.Cents:
		return StatusOver
	case float64(actual.Cents) > warningRatio*float64(budget.Cents):
		return StatusWarning
	default:
		return StatusGood
	}
}

func newLine(category string, actual, budget core.Money) BudgetLine {
	line := BudgetLine{
		Category:    category,
		Actual:      actual,
		PercentUsed: 100,
		Status:      classify(actual, budget),
	}
	if budget.Cents > 0 {
		b := budget
		line.Budget = &b
		line.Difference = budget.Sub(actual)
		line.PercentUsed = ratio(actual, budget)
	}
	return line
}

// Budgets looks up the spending cap of a category. core.UserPreferences
// implements it.
type Budgets interface {
	BudgetFor(category string) (core.Money, bool)
}

func budgetFor(budgets Budgets, category string) (core.Money, bool) {
	if budgets == nil {
		return core.Money{}, false
	}
	return budgets.BudgetFor(category)
}

// CompareBudgets compares each category of the breakdown with its budget.
// Budgeted lines sort before unbudgeted ones, then by percent used
// descending. Budgets of zero or less count as unset.
func CompareBudgets(breakdown []CategoryTotal, budgets Budgets) BudgetReport {
	lines := make([]BudgetLine, 0, len(breakdown))
	var totalBudget, totalActual core.Money
	for _, c := range breakdown {
		budget, _ := budgetFor(budgets, c.Category)
		line := newLine(c.Category, c.Amount, budget)
		line.Visual = core.VisualFor(c.Category)
		lines = append(lines, line)
		if line.Budget != nil {
			totalBudget = totalBudget.Add(budget)
		}
		totalActual = totalActual.Add(c.Amount)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		hi, hj := lines[i].Budget != nil, lines[j].Budget != nil
		if hi != hj {
			return hi
		}
		return lines[i].PercentUsed > lines[j].PercentUsed
	})

	totals := newLine("Total", totalActual, totalBudget)
	// The totals row always reports the remaining amount, even with no budget.
	totals.Difference = totalBudget.Sub(totalActual)
	totals.Visual = core.DefaultVisual
	return BudgetReport{Lines: lines, Totals: totals}
}

// MonthOptions lists the n most recent months ending with the month of now,
// newest first.
func MonthOptions(now time.Time, n int) []MonthOption {
	out := make([]MonthOption, 0, n)
	for i := 0; i < n; i++ {
		m := MonthsBack(now, i).Start
		out = append(out, MonthOption{Value: MonthKey(m), Label: m.Format("January 2006")})
	}
	return out
}
