// Package sheets mirrors stored transactions into a spreadsheet, one row per
// transaction keyed by id in the first column.
package sheets

import (
	"context"
	"time"

	"budgetwise/internal/core"
)

type (
	// Exporter writes transactions to an external sheet. UpsertTransaction
	// replaces the row holding tx.ID or appends one. DeleteTransaction is a
	// no-op for ids that have no row.
	Exporter interface {
		UpsertTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		DeleteTransaction(ctx context.Context, id string) error
	}
)

// Header is the first row of an export sheet.
var Header = []any{"ID", "User", "Date", "Type", "Category", "Amount", "Notes", "Updated"}

// Row renders tx in Header column order.
func Row(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.UserID,
		tx.Date.UTC().Format("2006-01-02"),
		string(tx.Type),
		tx.Category,
		tx.Amount.String(),
		tx.Notes,
		tx.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
