// Package storagetest holds the behaviour every storage.Store implementation must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwise/internal/core"
	"budgetwise/internal/storage"
)

// Factory returns an empty store. Run closes it when each subtest ends.
type Factory func(t *testing.T) storage.Store

func input(typ core.TxType, category string, date time.Time, cents int64, notes string) core.TransactionInput {
	return core.TransactionInput{
		Type:     typ,
		Category: category,
		Date:     date,
		Amount:   core.Money{Cents: cents},
		Notes:    notes,
	}
}

func Run(t *testing.T, newStore Factory) {
	t.Helper()
	day := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	open := func(t *testing.T) storage.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("create then list round trip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		in := input(core.Expense, "Food & Drinks", day, 1250, "lunch with team")

		created, err := s.CreateTransaction(ctx, "u1", in)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)

		txs, err := s.ListTransactions(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, txs, 1)
		got := txs[0]
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, core.Expense, got.Type)
		assert.Equal(t, "Food & Drinks", got.Category)
		assert.True(t, got.Date.Equal(day), "date %s != %s", got.Date, day)
		assert.Equal(t, int64(1250), got.Amount.Cents)
		assert.Equal(t, "lunch with team", got.Notes)
	})

	t.Run("list is scoped per user and sorted by date descending", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateTransaction(ctx, "u1", input(core.Expense, "Housing", day.AddDate(0, 0, -2), 100, ""))
		require.NoError(t, err)
		_, err = s.CreateTransaction(ctx, "u1", input(core.Income, "Salary", day, 200, ""))
		require.NoError(t, err)
		_, err = s.CreateTransaction(ctx, "u1", input(core.Expense, "Shopping", day.AddDate(0, 0, -1), 300, ""))
		require.NoError(t, err)
		_, err = s.CreateTransaction(ctx, "u2", input(core.Expense, "Shopping", day, 400, ""))
		require.NoError(t, err)

		txs, err := s.ListTransactions(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, "Salary", txs[0].Category)
		assert.Equal(t, "Shopping", txs[1].Category)
		assert.Equal(t, "Housing", txs[2].Category)

		empty, err := s.ListTransactions(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("get update and delete enforce ownership", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		created, err := s.CreateTransaction(ctx, "u1", input(core.Expense, "Utilities", day, 5000, ""))
		require.NoError(t, err)

		_, err = s.GetTransaction(ctx, "u2", created.ID)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		_, err = s.UpdateTransaction(ctx, "u2", created.ID, input(core.Expense, "Utilities", day, 1, ""))
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		err = s.DeleteTransaction(ctx, "u2", created.ID)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		_, err = s.GetTransaction(ctx, "u1", "00000000-0000-4000-8000-000000000000")
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		got, err := s.GetTransaction(ctx, "u1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), got.Amount.Cents)
	})

	t.Run("update replaces fields and delete removes", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		created, err := s.CreateTransaction(ctx, "u1", input(core.Expense, "Utilities", day, 5000, "power"))
		require.NoError(t, err)

		updated, err := s.UpdateTransaction(ctx, "u1", created.ID,
			input(core.Expense, "Healthcare", day.AddDate(0, 0, 1), 7525, "dentist"))
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Healthcare", updated.Category)
		assert.Equal(t, int64(7525), updated.Amount.Cents)
		assert.Equal(t, "dentist", updated.Notes)

		got, err := s.GetTransaction(ctx, "u1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Healthcare", got.Category)
		assert.True(t, got.Date.Equal(day.AddDate(0, 0, 1)))

		require.NoError(t, s.DeleteTransaction(ctx, "u1", created.ID))
		_, err = s.GetTransaction(ctx, "u1", created.ID)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		assert.True(t, errors.Is(s.DeleteTransaction(ctx, "u1", created.ID), storage.ErrNotFound))
	})

	t.Run("sync tracking", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_, err := s.CreateTransaction(ctx, "u1", input(core.Income, "Salary", day, 100, ""))
		require.NoError(t, err)
		b, err := s.CreateTransaction(ctx, "u1", input(core.Expense, "Food & Drinks", day, 200, ""))
		require.NoError(t, err)

		pending, err := s.ListUnsynced(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		require.NoError(t, s.MarkSynced(ctx, pending...))
		pending, err = s.ListUnsynced(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		_, err = s.UpdateTransaction(ctx, "u1", b.ID, input(core.Expense, "Food & Drinks", day, 250, ""))
		require.NoError(t, err)
		pending, err = s.ListUnsynced(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, b.ID, pending[0].ID)

		require.NoError(t, s.MarkSynced(ctx))
	})

	t.Run("mark synced skips rows edited since export", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		created, err := s.CreateTransaction(ctx, "u1", input(core.Expense, "Shopping", day, 300, ""))
		require.NoError(t, err)

		pending, err := s.ListUnsynced(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		exported := pending[0]

		edited, err := s.UpdateTransaction(ctx, "u1", created.ID, input(core.Expense, "Shopping", day, 450, ""))
		require.NoError(t, err)
		require.True(t, edited.UpdatedAt.After(exported.UpdatedAt))

		require.NoError(t, s.MarkSynced(ctx, exported))
		pending, err = s.ListUnsynced(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1, "the stale export must not clear the newer edit")
		assert.Equal(t, int64(450), pending[0].Amount.Cents)

		require.NoError(t, s.MarkSynced(ctx, pending[0]))
		pending, err = s.ListUnsynced(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("preferences", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.GetPreferences(ctx, "u1")
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		prefs := core.DefaultPreferences("u1")
		prefs.Currency = "EUR"
		prefs.DisplayName = "Ada"
		prefs.Budgets["Food & Drinks"] = core.Money{Cents: 50000}
		prefs.Avatar = &core.Avatar{ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

		saved, err := s.SavePreferences(ctx, prefs)
		require.NoError(t, err)
		assert.False(t, saved.UpdatedAt.IsZero())

		got, err := s.GetPreferences(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "EUR", got.Currency)
		assert.Equal(t, "Ada", got.DisplayName)
		assert.Equal(t, int64(50000), got.Budgets["Food & Drinks"].Cents)
		require.NotNil(t, got.Avatar)
		assert.Equal(t, "image/png", got.Avatar.ContentType)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got.Avatar.Data)

		got.Avatar = nil
		delete(got.Budgets, "Food & Drinks")
		_, err = s.SavePreferences(ctx, got)
		require.NoError(t, err)

		again, err := s.GetPreferences(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, again.Avatar)
		assert.Empty(t, again.Budgets)
	})
}
