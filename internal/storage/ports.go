// Package storage defines the persistence ports and the SQLite implementation.
package storage

import (
	"context"
	"errors"
	"sort"

	"budgetwise/internal/core"
)

// ErrNotFound is returned when a record does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

type (
	// TransactionStore persists per-user transactions. List returns records
	// sorted by date descending, newest creation first on equal dates.
	TransactionStore interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	// PreferencesStore persists the per-user preferences singleton.
	PreferencesStore interface {
		GetPreferences(ctx context.Context, userID string) (core.UserPreferences, error)
		SavePreferences(ctx context.Context, prefs core.UserPreferences) (core.UserPreferences, error)
	}

	// SyncStore tracks which transactions still need exporting.
	//
	// MarkSynced takes the exported copies and marks a row only while its
	// updated_at still equals the copy's, so an edit made during the export
	// keeps the row pending.
	SyncStore interface {
		ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkSynced(ctx context.Context, exported ...core.Transaction) error
	}

	// Store is a complete backend.
	Store interface {
		TransactionStore
		PreferencesStore
		SyncStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// SortTransactions orders txs by date descending, then creation descending.
func SortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
