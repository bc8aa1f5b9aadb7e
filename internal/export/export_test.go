package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwise/internal/core"
)

func sample() []core.Transaction {
	d := func(day int) time.Time { return time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC) }
	return []core.Transaction{
		{ID: "1", Type: core.Income, Category: "Salary", Date: d(1), Amount: core.Money{Cents: 300000}},
		{ID: "2", Type: core.Expense, Category: "Housing", Date: d(2), Amount: core.Money{Cents: 120000}, Notes: "rent, june"},
		{ID: "3", Type: core.Expense, Category: "Food & Drinks", Date: d(3), Amount: core.Money{Cents: 4550}},
		{ID: "4", Type: core.Expense, Category: "Food & Drinks", Date: d(4), Amount: core.Money{Cents: 2000}},
		{ID: "5", Type: core.Income, Category: "Freelance", Date: d(5), Amount: core.Money{Cents: 50000}},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())
	assert.Equal(t, int64(350000), s.TotalIncome.Cents)
	assert.Equal(t, int64(126550), s.TotalExpenses.Cents)
	assert.Equal(t, int64(223450), s.Balance.Cents)
	assert.Equal(t, []core.CategoryAmount{
		{Category: "Housing", Amount: core.Money{Cents: 120000}},
		{Category: "Food & Drinks", Amount: core.Money{Cents: 6550}},
	}, s.ExpensesByCategory)
	assert.Equal(t, "Salary", s.IncomeByCategory[0].Category)

	empty := Summarize(nil)
	assert.True(t, empty.Balance.IsZero())
	assert.Empty(t, empty.ExpensesByCategory)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(), "eur"))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 6)
	assert.Equal(t, []string{"Date", "Type", "Category", "Notes", "Amount (EUR)"}, recs[0])
	assert.Equal(t, []string{"2025-06-02", "expense", "Housing", "rent, june", "1200.00"}, recs[2])

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, nil, "XYZ"))
	assert.Equal(t, "Date,Type,Category,Notes,Amount (USD)\n", buf.String())
}

func TestSummaryText(t *testing.T) {
	text := SummaryText(Summarize(sample()), "USD")
	assert.Contains(t, text, "FINANCIAL SUMMARY\n\n")
	assert.Contains(t, text, "Total Income: "+core.FormatMoney(core.Money{Cents: 350000}, "USD")+"\n")
	assert.Contains(t, text, "EXPENSES BY CATEGORY\nHousing: ")
	assert.Contains(t, text, "\nINCOME BY CATEGORY\nSalary: ")
	assert.Less(t, bytes.Index([]byte(text), []byte("Housing")), bytes.Index([]byte(text), []byte("Food & Drinks")))
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	txs := sample()
	require.NoError(t, WritePDF(&buf, txs, Summarize(txs), "EUR", "Ada"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	assert.ErrorIs(t, WritePDF(&buf, nil, Summary{}, "EUR", ""), ErrNoTransactions)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{" pdf ", FormatPDF, false},
		{"txt", FormatTXT, false},
		{"xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "financial_summary.txt", FormatTXT.Filename())
}
