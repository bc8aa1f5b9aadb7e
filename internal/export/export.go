// Package export renders a user's transactions as CSV, a plain-text summary
// or a PDF report.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"budgetwise/internal/core"
)

// ErrNoTransactions is returned by report formats that need at least one row.
var ErrNoTransactions = errors.New("no transactions to export")

// Format is an export file format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatTXT Format = "txt"
	FormatPDF Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatTXT, FormatPDF:
		return f, nil
	case "":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType and Filename describe the HTTP download for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatTXT:
		return "text/plain; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

func (f Format) Filename() string {
	switch f {
	case FormatPDF:
		return "transactions.pdf"
	case FormatTXT:
		return "financial_summary.txt"
	default:
		return "transactions.csv"
	}
}

// Summary is the totals block shared by the text and PDF reports.
// Category lists are sorted by amount descending.
type Summary struct {
	TotalIncome        core.Money            `json:"totalIncome"`
	TotalExpenses      core.Money            `json:"totalExpenses"`
	Balance            core.Money            `json:"balance"`
	ExpensesByCategory []core.CategoryAmount `json:"expensesByCategory"`
	IncomeByCategory   []core.CategoryAmount `json:"incomeByCategory"`
}

func Summarize(txs []core.Transaction) Summary {
	var s Summary
	expenses := map[string]core.Money{}
	income := map[string]core.Money{}
	var expenseOrder, incomeOrder []string

	for _, t := range txs {
		switch t.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			if _, ok := income[t.Category]; !ok {
				incomeOrder = append(incomeOrder, t.Category)
			}
			income[t.Category] = income[t.Category].Add(t.Amount)
		case core.Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
			if _, ok := expenses[t.Category]; !ok {
				expenseOrder = append(expenseOrder, t.Category)
			}
			expenses[t.Category] = expenses[t.Category].Add(t.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	s.ExpensesByCategory = byAmount(expenseOrder, expenses)
	s.IncomeByCategory = byAmount(incomeOrder, income)
	return s
}

func byAmount(order []string, sums map[string]core.Money) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(order))
	for _, c := range order {
		out = append(out, core.CategoryAmount{Category: c, Amount: sums[c]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.Cents > out[j].Amount.Cents })
	return out
}

// WriteCSV writes one row per transaction under a Date, Type, Category,
// Notes, Amount header. Amounts are plain decimals in the user's currency.
func WriteCSV(w io.Writer, txs []core.Transaction, currency string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Type", "Category", "Notes", "Amount (" + currencyCode(currency) + ")"}); err != nil {
		return err
	}
	for _, t := range txs {
		rec := []string{
			t.Date.Format("2006-01-02"),
			string(t.Type),
			t.Category,
			t.Notes,
			t.Amount.String(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SummaryText renders the plain-text financial summary.
func SummaryText(s Summary, currency string) string {
	var b strings.Builder
	b.WriteString("FINANCIAL SUMMARY\n\n")
	fmt.Fprintf(&b, "Total Income: %s\n", core.FormatMoney(s.TotalIncome, currency))
	fmt.Fprintf(&b, "Total Expenses: %s\n", core.FormatMoney(s.TotalExpenses, currency))
	fmt.Fprintf(&b, "Balance: %s\n\n", core.FormatMoney(s.Balance, currency))

	b.WriteString("EXPENSES BY CATEGORY\n")
	for _, c := range s.ExpensesByCategory {
		fmt.Fprintf(&b, "%s: %s\n", c.Category, core.FormatMoney(c.Amount, currency))
	}
	b.WriteString("\nINCOME BY CATEGORY\n")
	for _, c := range s.IncomeByCategory {
		fmt.Fprintf(&b, "%s: %s\n", c.Category, core.FormatMoney(c.Amount, currency))
	}
	return b.String()
}

func currencyCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !core.IsSupportedCurrency(code) {
		return core.DefaultCurrency
	}
	return code
}
