package analytics

import (
	"fmt"
	"math"
	"time"

	"budgetwise/internal/core"
)

// Score weights of the overall financial health score.
const (
	weightSavingsRate      = 0.4
	weightBudgetAdherence  = 0.3
	weightExpenseDiversity = 0.1
	weightIncomeStability  = 0.2
)

// stabilityWindow is the number of calendar months, current included, used
// for income stability.
const stabilityWindow = 3

// Rating is the display band of an overall score.
type Rating string

const (
	RatingExcellent        Rating = "Excellent"
	RatingGood             Rating = "Good"
	RatingFair             Rating = "Fair"
	RatingNeedsImprovement Rating = "Needs Improvement"
	RatingPoor             Rating = "Poor"
)

// HealthReport holds the financial health sub-metrics of the current month.
// Percentages are on a 0..100 scale except the savings rate and the change
// figures, which may be negative.
type HealthReport struct {
	CurrentIncome          core.Money `json:"currentIncome"`
	CurrentExpenses        core.Money `json:"currentExpenses"`
	PreviousIncome         core.Money `json:"previousIncome"`
	PreviousExpenses       core.Money `json:"previousExpenses"`
	SavingsRate            float64    `json:"savingsRate"`
	PreviousSavingsRate    float64    `json:"previousSavingsRate"`
	SavingsRateChange      float64    `json:"savingsRateChange"`
	IncomeChange           float64    `json:"incomeChange"`
	ExpenseChange          float64    `json:"expenseChange"`
	BudgetAdherence        float64    `json:"budgetAdherence"`
	BudgetedCategories     int        `json:"budgetedCategories"`
	CategoriesWithinBudget int        `json:"categoriesWithinBudget"`
	ExpenseDiversity       float64    `json:"expenseDiversity"`
	IncomeStability        float64    `json:"incomeStability"`
	OverallScore           int        `json:"overallScore"`
	Rating                 Rating     `json:"rating"`
	Advice                 []string   `json:"advice"`
}

// Health computes the financial health report for the month containing now.
func Health(txs []core.Transaction, budgets Budgets, now time.Time) HealthReport {
	cur := ComputeTotals(txs, Month(now))
	prev := ComputeTotals(txs, MonthsBack(now, 1))

	r := HealthReport{
		CurrentIncome:       cur.Income,
		CurrentExpenses:     cur.Expenses,
		PreviousIncome:      prev.Income,
		PreviousExpenses:    prev.Expenses,
		SavingsRate:         SavingsRate(cur.Income, cur.Expenses),
		PreviousSavingsRate: SavingsRate(prev.Income, prev.Expenses),
		IncomeChange:        change(cur.Income, prev.Income),
		ExpenseChange:       change(cur.Expenses, prev.Expenses),
	}
	r.SavingsRateChange = r.SavingsRate - r.PreviousSavingsRate

	groups := Breakdown(txs, Month(now))
	r.BudgetAdherence, r.BudgetedCategories, r.CategoriesWithinBudget = BudgetAdherence(groups, budgets)
	r.ExpenseDiversity = ExpenseDiversity(groups)

	incomes := make([]core.Money, stabilityWindow)
	for i := range incomes {
		incomes[i] = sum(inPeriod(txs, MonthsBack(now, i), core.Income))
	}
	r.IncomeStability = IncomeStability(incomes)

	r.OverallScore = OverallScore(r.SavingsRate, r.BudgetAdherence, r.ExpenseDiversity, r.IncomeStability)
	r.Rating = RatingFor(r.OverallScore)
	r.Advice = Advice(r)
	return r
}

// SavingsRate returns (income-expenses)/income*100, or 0 without income.
func SavingsRate(income, expenses core.Money) float64 {
	if income.Cents <= 0 {
		return 0
	}
	return ratio(income.Sub(expenses), income)
}

// change is the percentage change from prev to cur, 0 when prev is zero.
func change(cur, prev core.Money) float64 {
	if prev.Cents <= 0 {
		return 0
	}
	return ratio(cur.Sub(prev), prev)
}

// BudgetAdherence returns the share of budgeted categories whose spend is
// within budget, along with both counts. Only categories with spend and a
// budget above zero are considered; without any the adherence is 0.
func BudgetAdherence(groups []CategoryTotal, budgets Budgets) (adherence float64, budgeted, within int) {
	for _, g := range groups {
		b, ok := budgetFor(budgets, g.Category)
		if !ok {
			continue
		}
		budgeted++
		if g.Amount.Cents <= b.Cents {
			within++
		}
	}
	if budgeted == 0 {
		return 0, 0, 0
	}
	return float64(within) / float64(budgeted) * 100, budgeted, within
}

// ExpenseDiversity is the Shannon entropy of the category distribution
// normalized by log2 of the category count, scaled to 0..100. It is 0 with
// fewer than two categories.
func ExpenseDiversity(groups []CategoryTotal) float64 {
	var total int64
	n := 0
	for _, g := range groups {
		if g.Amount.Cents > 0 {
			total += g.Amount.Cents
			n++
		}
	}
	if n < 2 || total == 0 {
		return 0
	}
	var h float64
	for _, g := range groups {
		if g.Amount.Cents <= 0 {
			continue
		}
		p := float64(g.Amount.Cents) / float64(total)
		h -= p * math.Log2(p)
	}
	return h / math.Log2(float64(n)) * 100
}

// IncomeStability scores monthly incomes as (1-CV)*100 clamped to 0..100,
// where CV is the population standard deviation over the mean. It is 0 when
// the mean is zero.
func IncomeStability(incomes []core.Money) float64 {
	if len(incomes) == 0 {
		return 0
	}
	var total float64
	for _, m := range incomes {
		total += m.Float()
	}
	mean := total / float64(len(incomes))
	if mean <= 0 {
		return 0
	}
	var variance float64
	for _, m := range incomes {
		d := m.Float() - mean
		variance += d * d
	}
	variance /= float64(len(incomes))
	cv := math.Sqrt(variance) / mean
	return clamp((1-cv)*100, 0, 100)
}

// OverallScore combines the sub-metrics into a rounded score clamped to
// 0..100. A negative savings rate contributes nothing.
func OverallScore(savingsRate, adherence, diversity, stability float64) int {
	score := math.Max(0, savingsRate)*weightSavingsRate +
		adherence*weightBudgetAdherence +
		diversity*weightExpenseDiversity +
		stability*weightIncomeStability
	return int(clamp(math.Round(score), 0, 100))
}

func RatingFor(score int) Rating {
	switch {
	case score >= 80:
		return RatingExcellent
	case score >= 60:
		return RatingGood
	case score >= 40:
		return RatingFair
	case score >= 20:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}

// Advice returns the threshold-based recommendations for a report.
func Advice(r HealthReport) []string {
	advice := []string{}
	if r.SavingsRate < 20 {
		advice = append(advice, "Try to increase your savings rate by reducing non-essential expenses.")
	}
	if r.BudgetAdherence < 70 {
		advice = append(advice, fmt.Sprintf(
			"%d of %d categories are within budget. Review your spending in over-budget categories.",
			r.CategoriesWithinBudget, r.BudgetedCategories))
	}
	if r.IncomeStability < 50 {
		advice = append(advice, "Your income shows significant variation. Consider building an emergency fund to cover expenses during lower income periods.")
	}
	if r.ExpenseDiversity < 40 {
		advice = append(advice, "Your spending is concentrated in few categories. Review if this aligns with your financial priorities.")
	}
	return advice
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
