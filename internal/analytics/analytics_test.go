package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwise/internal/core"
)

var now = time.Date(2025, time.March, 20, 15, 0, 0, 0, time.UTC)

func tx(typ core.TxType, category string, amount float64, date time.Time) core.Transaction {
	return core.Transaction{Type: typ, Category: category, Amount: core.MoneyFromFloat(amount), Date: date}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func money(amount float64) core.Money { return core.MoneyFromFloat(amount) }

func budgets(caps map[string]core.Money) core.UserPreferences {
	return core.UserPreferences{Budgets: caps}
}

func TestTotals(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Income, "Salary", 3000, day(2025, 3, 1)),
		tx(core.Expense, "Housing", 1200, day(2025, 3, 2)),
		tx(core.Expense, "Food & Drinks", 45.5, day(2025, 3, 31)),
		tx(core.Expense, "Shopping", 99, day(2025, 2, 28)),
		tx(core.Income, "Bonus", 500, day(2025, 1, 15)),
		tx(core.Income, "Salary", 2800, day(2024, 12, 31)),
	}

	m := MonthTotals(txs, now)
	assert.Equal(t, money(3000), m.Income)
	assert.Equal(t, money(1245.5), m.Expenses)
	assert.Equal(t, m.Income.Sub(m.Expenses), m.NetBalance)

	y := YearTotals(txs, now)
	assert.Equal(t, money(3500), y.Income)
	assert.Equal(t, money(1344.5), y.Expenses)
	assert.Equal(t, money(2155.5), y.NetBalance)

	empty := MonthTotals(nil, now)
	assert.True(t, empty.Income.IsZero() && empty.Expenses.IsZero() && empty.NetBalance.IsZero())
}

func TestMonthBoundaries(t *testing.T) {
	p := Month(now)
	assert.True(t, p.Contains(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))

	jan := MonthsBack(now, 2)
	assert.Equal(t, time.January, jan.Start.Month())
	dec := MonthsBack(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), 1)
	assert.Equal(t, 2024, dec.Start.Year())
	assert.Equal(t, time.December, dec.Start.Month())

	sel, err := ParseMonth("2024-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 29, sel.End.AddDate(0, 0, -1).Day())
	_, err = ParseMonth("2024/02", time.UTC)
	assert.Error(t, err)
}

func TestBreakdownSortsDescendingAndKeepsTieOrder(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Shopping", 100, day(2025, 3, 1)),
		tx(core.Income, "Salary", 5000, day(2025, 3, 1)),
		tx(core.Expense, "Utilities", 100, day(2025, 3, 2)),
		tx(core.Expense, "Housing", 900, day(2025, 3, 3)),
		tx(core.Expense, "Shopping", 50, day(2025, 2, 3)),
		tx(core.Expense, "Healthcare", 100, day(2025, 3, 4)),
	}
	got := Breakdown(txs, Month(now))
	require.Len(t, got, 4)

	names := []string{got[0].Category, got[1].Category, got[2].Category, got[3].Category}
	assert.Equal(t, []string{"Housing", "Shopping", "Utilities", "Healthcare"}, names)

	var total core.Money
	for _, g := range got {
		total = total.Add(g.Amount)
	}
	assert.Equal(t, money(1200), total)
	assert.InDelta(t, 75.0, got[0].Percent, 1e-9)
	assert.Equal(t, "home", got[0].Visual.Icon)
}

func TestCompareBudgets(t *testing.T) {
	breakdown := []CategoryTotal{
		{Category: "Food & Drinks", Amount: money(550)},
		{Category: "Shopping", Amount: money(460)},
		{Category: "Entertainment", Amount: money(800)},
		{Category: "Housing", Amount: money(100)},
	}
	r := CompareBudgets(breakdown, budgets(map[string]core.Money{
		"Food & Drinks": money(500),
		"Shopping":      money(500),
		"Housing":       money(500),
		"Entertainment": {},
	}))
	require.Len(t, r.Lines, 4)

	food := r.Lines[0]
	assert.Equal(t, "Food & Drinks", food.Category)
	assert.Equal(t, StatusOver, food.Status)
	assert.Equal(t, money(-50), food.Difference)
	assert.InDelta(t, 110.0, food.PercentUsed, 1e-9)

	shopping := r.Lines[1]
	assert.Equal(t, "Shopping", shopping.Category)
	assert.Equal(t, StatusWarning, shopping.Status)
	assert.InDelta(t, 92.0, shopping.PercentUsed, 1e-9)

	assert.Equal(t, "Housing", r.Lines[2].Category)
	assert.Equal(t, StatusGood, r.Lines[2].Status)

	unbudgeted := r.Lines[3]
	assert.Equal(t, "Entertainment", unbudgeted.Category)
	assert.Equal(t, StatusNoBudget, unbudgeted.Status)
	assert.Nil(t, unbudgeted.Budget)
	assert.Equal(t, 100.0, unbudgeted.PercentUsed)
	assert.True(t, unbudgeted.Difference.IsZero())

	require.NotNil(t, r.Totals.Budget)
	assert.Equal(t, money(1500), *r.Totals.Budget)
	assert.Equal(t, money(1910), r.Totals.Actual)
	assert.Equal(t, money(-410), r.Totals.Difference)
	assert.Equal(t, StatusOver, r.Totals.Status)
}

func TestCompareBudgetsWarningThreshold(t *testing.T) {
	r := CompareBudgets([]CategoryTotal{{Category: "Shopping", Amount: money(450)}}, budgets(map[string]core.Money{"Shopping": money(500)}))
	assert.Equal(t, StatusGood, r.Lines[0].Status, "exactly 90 percent is still good")

	r = CompareBudgets([]CategoryTotal{{Category: "Shopping", Amount: money(500)}}, budgets(map[string]core.Money{"Shopping": money(500)}))
	assert.Equal(t, StatusWarning, r.Lines[0].Status, "at the budget is a warning, not over")
}

func TestCompareBudgetsWithoutBudgets(t *testing.T) {
	r := CompareBudgets([]CategoryTotal{{Category: "Shopping", Amount: money(10)}}, nil)
	assert.Equal(t, StatusNoBudget, r.Totals.Status)
	assert.Equal(t, 100.0, r.Totals.PercentUsed)
	assert.Equal(t, money(-10), r.Totals.Difference)
}

func TestMonthOptions(t *testing.T) {
	opts := MonthOptions(now, 12)
	require.Len(t, opts, 12)
	assert.Equal(t, MonthOption{Value: "2025-03", Label: "March 2025"}, opts[0])
	assert.Equal(t, MonthOption{Value: "2024-04", Label: "April 2024"}, opts[11])
}

func TestHealthScenario(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Income, "Salary", 3000, day(2025, 3, 1)),
		tx(core.Expense, "Food & Drinks", 400, day(2025, 3, 5)),
		tx(core.Expense, "Housing", 1200, day(2025, 3, 3)),
		tx(core.Expense, "Shopping", 300, day(2025, 3, 10)),
	}
	r := Health(txs, nil, now)

	assert.InDelta(t, 36.67, r.SavingsRate, 0.005)
	assert.Equal(t, 0.0, r.BudgetAdherence)
	assert.Equal(t, 0, r.BudgetedCategories)
	assert.InDelta(t, 82.805, r.ExpenseDiversity, 0.001)
	assert.Equal(t, 0.0, r.IncomeStability)
	assert.Equal(t, 23, r.OverallScore)
	assert.Equal(t, RatingNeedsImprovement, r.Rating)
	assert.Equal(t, []string{
		"0 of 0 categories are within budget. Review your spending in over-budget categories.",
		"Your income shows significant variation. Consider building an emergency fund to cover expenses during lower income periods.",
	}, r.Advice)
}

func TestHealthPreviousMonth(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Income, "Salary", 3000, day(2025, 3, 1)),
		tx(core.Expense, "Housing", 1500, day(2025, 3, 3)),
		tx(core.Income, "Salary", 2000, day(2025, 2, 1)),
		tx(core.Expense, "Housing", 1000, day(2025, 2, 3)),
	}
	r := Health(txs, nil, now)
	assert.Equal(t, money(2000), r.PreviousIncome)
	assert.InDelta(t, 50.0, r.IncomeChange, 1e-9)
	assert.InDelta(t, 50.0, r.ExpenseChange, 1e-9)
	assert.InDelta(t, 50.0, r.PreviousSavingsRate, 1e-9)
	assert.InDelta(t, 0.0, r.SavingsRateChange, 1e-9)

	none := Health(txs[:2], nil, now)
	assert.Equal(t, 0.0, none.IncomeChange)
	assert.Equal(t, 0.0, none.ExpenseChange)
}

func TestExpenseDiversity(t *testing.T) {
	single := []CategoryTotal{{Category: "Housing", Amount: money(1000)}}
	assert.Equal(t, 0.0, ExpenseDiversity(single))
	assert.Equal(t, 0.0, ExpenseDiversity(nil))

	even := []CategoryTotal{
		{Category: "Housing", Amount: money(100)},
		{Category: "Shopping", Amount: money(100)},
		{Category: "Utilities", Amount: money(100)},
		{Category: "Education", Amount: money(100)},
	}
	assert.InDelta(t, 100.0, ExpenseDiversity(even), 1e-9)

	skewed := []CategoryTotal{
		{Category: "Housing", Amount: money(970)},
		{Category: "Shopping", Amount: money(10)},
		{Category: "Utilities", Amount: money(10)},
		{Category: "Education", Amount: money(10)},
	}
	assert.Less(t, ExpenseDiversity(skewed), ExpenseDiversity(even))
}

func TestBudgetAdherence(t *testing.T) {
	groups := []CategoryTotal{
		{Category: "Housing", Amount: money(1000)},
		{Category: "Shopping", Amount: money(200)},
		{Category: "Education", Amount: money(50)},
	}
	all, budgeted, within := BudgetAdherence(groups, budgets(map[string]core.Money{
		"Housing":  money(1000),
		"Shopping": money(300),
	}))
	assert.Equal(t, 100.0, all)
	assert.Equal(t, 2, budgeted)
	assert.Equal(t, 2, within)

	none, _, _ := BudgetAdherence(groups, budgets(map[string]core.Money{
		"Housing":  money(900),
		"Shopping": money(100),
	}))
	assert.Equal(t, 0.0, none)

	half, _, _ := BudgetAdherence(groups, budgets(map[string]core.Money{
		"Housing":   money(900),
		"Shopping":  money(300),
		"Utilities": money(10),
	}))
	assert.Equal(t, 50.0, half)

	negative, budgeted, _ := BudgetAdherence(groups, budgets(map[string]core.Money{"Housing": money(-5)}))
	assert.Equal(t, 0.0, negative)
	assert.Zero(t, budgeted, "a cap of zero or less is unset")

	unset, _, _ := BudgetAdherence(groups, nil)
	assert.Equal(t, 0.0, unset)
}

func TestParseTrendRange(t *testing.T) {
	tests := []struct {
		in      string
		want    TrendRange
		wantErr bool
	}{
		{"", Range3Months, false},
		{"3months", Range3Months, false},
		{" 6months ", Range6Months, false},
		{"1year", Range1Year, false},
		{"2weeks", "", true},
		{"6MONTHS", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTrendRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIncomeStability(t *testing.T) {
	assert.InDelta(t, 100.0, IncomeStability([]core.Money{money(3000), money(3000), money(3000)}), 1e-9)
	assert.Equal(t, 0.0, IncomeStability([]core.Money{{}, {}, {}}))

	mild := IncomeStability([]core.Money{money(3000), money(2800), money(3200)})
	wild := IncomeStability([]core.Money{money(3000), money(1500), money(0)})
	assert.Greater(t, mild, wild)
	assert.InDelta(t, 18.35, wild, 0.01)
	assert.Equal(t, 0.0, IncomeStability([]core.Money{money(3000), {}, {}}))
}

func TestOverallScore(t *testing.T) {
	assert.Equal(t, 100, OverallScore(100, 100, 100, 100))
	assert.Equal(t, 100, OverallScore(400, 100, 100, 100), "score is clamped")
	assert.Equal(t, 30, OverallScore(-80, 100, 0, 0), "negative savings rate contributes nothing")
	assert.Equal(t, 0, OverallScore(0, 0, 0, 0))
}

func TestRatingFor(t *testing.T) {
	cases := []struct {
		score int
		want  Rating
	}{
		{100, RatingExcellent},
		{80, RatingExcellent},
		{79, RatingGood},
		{60, RatingGood},
		{40, RatingFair},
		{20, RatingNeedsImprovement},
		{19, RatingPoor},
		{0, RatingPoor},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RatingFor(tc.score), "score %d", tc.score)
	}
}

func TestAdviceWhenHealthy(t *testing.T) {
	r := HealthReport{SavingsRate: 25, BudgetAdherence: 80, IncomeStability: 90, ExpenseDiversity: 60}
	assert.Empty(t, Advice(r))
	r.BudgetAdherence = 50
	r.CategoriesWithinBudget, r.BudgetedCategories = 1, 2
	assert.Equal(t, []string{"1 of 2 categories are within budget. Review your spending in over-budget categories."}, Advice(r))
}

func TestQuickInsights(t *testing.T) {
	empty := QuickInsights(nil, now)
	assert.Equal(t, NoCategory, empty.TopCategory.Category)
	assert.Equal(t, 0.0, empty.SpendingTrend)

	txs := []core.Transaction{
		tx(core.Income, "Salary", 2000, now.AddDate(0, 0, -3)),
		tx(core.Expense, "Shopping", 300, now.AddDate(0, 0, -2)),
		tx(core.Expense, "Housing", 200, now.AddDate(0, 0, -20)),
		tx(core.Expense, "Shopping", 100, now.AddDate(0, 0, -25)),
		tx(core.Expense, "Housing", 5000, now.AddDate(0, 0, -40)),
	}
	q := QuickInsights(txs, now)
	assert.Equal(t, money(2000), q.Income)
	assert.Equal(t, money(600), q.Expenses)
	assert.InDelta(t, 70.0, q.SavingsRate, 1e-9)
	assert.Equal(t, core.CategoryAmount{Category: "Shopping", Amount: money(400)}, q.TopCategory)
	assert.InDelta(t, 0.0, q.SpendingTrend, 1e-9)

	txs = append(txs, tx(core.Expense, "Education", 300, now.AddDate(0, 0, -1)))
	assert.InDelta(t, 100.0, QuickInsights(txs, now).SpendingTrend, 1e-9)
}

func TestSpendingTrends(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Housing", 1000, day(2025, 3, 1)),
		tx(core.Expense, "Housing", 1000, day(2025, 1, 1)),
		tx(core.Expense, "Shopping", 300, day(2025, 2, 1)),
		tx(core.Expense, "Education", 200, day(2024, 6, 1)),
		tx(core.Expense, "Utilities", 100, day(2025, 3, 2)),
		tx(core.Income, "Salary", 9000, day(2025, 3, 1)),
	}
	r, err := SpendingTrends(txs, now, Range3Months, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Housing", "Shopping", "Education"}, r.Categories)
	require.Len(t, r.Points, 3)
	assert.Equal(t, "Jan 2025", r.Points[0].Label)
	assert.Equal(t, "Mar 2025", r.Points[2].Label)
	assert.Equal(t, money(1100), r.Points[2].Total)
	assert.Equal(t, money(1000), r.Points[2].Categories["Housing"])
	assert.True(t, r.Points[1].Categories["Housing"].IsZero())

	year, err := SpendingTrends(txs, now, Range1Year, []string{"Utilities"})
	require.NoError(t, err)
	assert.Len(t, year.Points, 12)
	assert.Equal(t, "2024-04", year.Points[0].Month)

	_, err = SpendingTrends(txs, now, TrendRange("2weeks"), nil)
	assert.Error(t, err)
}

func TestDrilldown(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, "Housing", 1000, day(2025, 3, 1)),
		tx(core.Expense, "Shopping", 30, day(2025, 3, 4)),
		tx(core.Expense, "Shopping", 20, day(2025, 3, 4)),
		tx(core.Expense, "Shopping", 80, day(2025, 1, 10)),
		tx(core.Expense, "Utilities", 70, day(2024, 9, 1)),
		tx(core.Expense, "Education", 500, day(2023, 1, 1)),
	}

	this := Drilldown(txs, ThisMonth, now)
	require.Len(t, this, 2)
	assert.Equal(t, CategoryTotal{Category: "Shopping", Amount: money(50), Count: 2, Percent: this[1].Percent, Visual: core.VisualFor("Shopping")}, this[1])

	assert.Len(t, Drilldown(txs, Last3Month, now), 2)
	assert.Len(t, Drilldown(txs, Last6Month, now), 2)
	assert.Len(t, Drilldown(txs, LastYear, now), 3)
	all := Drilldown(txs, AllTime, now)
	require.Len(t, all, 4)
	assert.Equal(t, "Housing", all[0].Category)

	groups := DailyGroups(txs, "Shopping", Last3Month, now)
	require.Len(t, groups, 2)
	assert.Equal(t, "2025-03-04", groups[0].Date)
	assert.Equal(t, "Mar 04, 2025", groups[0].Label)
	assert.Equal(t, money(50), groups[0].Total)
	assert.Len(t, groups[0].Transactions, 2)
	assert.Equal(t, "2025-01-10", groups[1].Date)

	tf, err := ParseTimeframe("")
	require.NoError(t, err)
	assert.Equal(t, ThisMonth, tf)
	_, err = ParseTimeframe("decade")
	assert.Error(t, err)
}

func TestDailySeries(t *testing.T) {
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		tx(core.Income, "Salary", 100, day(2024, 2, 1)),
		tx(core.Expense, "Housing", 40, day(2024, 2, 29)),
		tx(core.Expense, "Housing", 10, day(2024, 2, 29)),
		tx(core.Expense, "Housing", 99, day(2024, 3, 1)),
	}
	series := DailySeries(txs, feb)
	require.Len(t, series, 29)
	assert.Equal(t, money(100), series[0].Income)
	assert.Equal(t, 29, series[28].Day)
	assert.Equal(t, "2024-02-29", series[28].Date)
	assert.Equal(t, money(50), series[28].Expenses)
}
