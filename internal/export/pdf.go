package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"budgetwise/internal/core"
)

var (
	headerFill = [3]int{41, 128, 185}
	stripeFill = [3]int{245, 245, 245}
)

// WritePDF renders the transaction history table followed by the financial
// summary. owner is printed under the title.
func WritePDF(w io.Writer, txs []core.Transaction, s Summary, currency, owner string) error {
	if len(txs) == 0 {
		return ErrNoTransactions
	}
	code := currencyCode(currency)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 15, 20)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetTextColor(41, 128, 185)
	pdf.CellFormat(0, 12, "BudgetWise", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 13)
	pdf.SetTextColor(80, 80, 80)
	if owner != "" {
		pdf.CellFormat(0, 8, tr("User: "+owner), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 8, "Currency: "+code, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	amount := func(m core.Money) string { return code + " " + m.String() }

	section(pdf, "Transaction History")
	widths := []float64{28, 22, 40, 50, 30}
	rows := make([][]string, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, []string{
			t.Date.Format("2006-01-02"),
			string(t.Type),
			tr(t.Category),
			tr(truncate(t.Notes, 32)),
			amount(t.Amount),
		})
	}
	table(pdf, widths, []string{"Date", "Type", "Category", "Notes", "Amount"}, rows, 11)

	pdf.Ln(6)
	section(pdf, "Financial Summary")
	table(pdf, []float64{85, 85}, []string{"Type", "Amount"}, [][]string{
		{"Total Income", amount(s.TotalIncome)},
		{"Total Expenses", amount(s.TotalExpenses)},
		{"Balance", amount(s.Balance)},
	}, 12)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func table(pdf *fpdf.Fpdf, widths []float64, head []string, rows [][]string, size float64) {
	const h = 8
	pdf.SetFont("Helvetica", "B", size)
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.SetTextColor(255, 255, 255)
	for i, col := range head {
		pdf.CellFormat(widths[i], h, col, "", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", size)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(stripeFill[0], stripeFill[1], stripeFill[2])
	for n, row := range rows {
		for i, cell := range row {
			align := "L"
			if i == len(row)-1 {
				align = "R"
			}
			pdf.CellFormat(widths[i], h, cell, "", 0, align, n%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
