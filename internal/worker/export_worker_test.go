package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	sheetsmem "budgetwise/internal/sheets/memory"
	"budgetwise/internal/storage/memory"
)

func newTx(t *testing.T, store *memory.Store, user string, cents int64) core.Transaction {
	t.Helper()
	tx, err := store.CreateTransaction(context.Background(), user, core.TransactionInput{
		Type:     core.Expense,
		Category: "Housing",
		Date:     time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		Amount:   core.Money{Cents: cents},
	})
	require.NoError(t, err)
	return tx
}

func unsyncedIDs(t *testing.T, store *memory.Store) []string {
	t.Helper()
	pending, err := store.ListUnsynced(context.Background(), 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(pending))
	for _, tx := range pending {
		ids = append(ids, tx.ID)
	}
	return ids
}

func TestHandleEvent_CreatedExportsStoredRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exp := sheetsmem.New()
	w := NewExportWorker(store, exp, 10, nil)

	tx := newTx(t, store, "u1", 1000)
	stale := tx
	stale.Amount = core.Money{Cents: 1}

	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.ActionCreated, stale)))

	row, ok := exp.Row(tx.ID)
	require.True(t, ok)
	assert.Equal(t, "10.00", row[5], "stored amount wins over the event payload")
	assert.Empty(t, unsyncedIDs(t, store))
}

func TestHandleEvent_Deleted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exp := sheetsmem.New()
	w := NewExportWorker(store, exp, 10, nil)

	tx := newTx(t, store, "u1", 500)
	require.NoError(t, w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.ActionCreated, tx)))
	require.NoError(t, store.DeleteTransaction(ctx, "u1", tx.ID))

	require.NoError(t, w.HandleEvent(ctx, amqp.NewDeletedEvent("u1", tx.ID)))
	assert.Empty(t, exp.IDs())

	// Deleting again is harmless.
	require.NoError(t, w.HandleEvent(ctx, amqp.NewDeletedEvent("u1", tx.ID)))
}

func TestHandleEvent_MissingTransactionIsSkipped(t *testing.T) {
	store := memory.New()
	exp := sheetsmem.New()
	w := NewExportWorker(store, exp, 10, nil)

	ghost := core.Transaction{ID: "ghost", UserID: "u1", Type: core.Expense, Category: "Housing"}
	require.NoError(t, w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.ActionUpdated, ghost)))
	assert.Equal(t, 0, exp.Upserts)
}

func TestHandleEvent_ExporterFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exp := sheetsmem.New()
	w := NewExportWorker(store, exp, 10, nil)
	boom := errors.New("sheets unavailable")
	exp.FailWith(boom)

	tx := newTx(t, store, "u1", 700)
	err := w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.ActionCreated, tx))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{tx.ID}, unsyncedIDs(t, store), "failed exports stay pending")

	err = w.HandleEvent(ctx, amqp.NewDeletedEvent("u1", tx.ID))
	assert.ErrorIs(t, err, boom)
}

func TestHandleEvent_RejectsInvalidEvent(t *testing.T) {
	w := NewExportWorker(memory.New(), sheetsmem.New(), 10, nil)
	err := w.HandleEvent(context.Background(), &amqp.TransactionEvent{Action: "archived", UserID: "u", TransactionID: "x"})
	assert.ErrorIs(t, err, amqp.ErrInvalidEvent)
}

func TestProcessPending_RespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exp := sheetsmem.New()
	w := NewExportWorker(store, exp, 2, nil)

	for i := 0; i < 5; i++ {
		newTx(t, store, "u1", int64(100+i))
	}

	n, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, unsyncedIDs(t, store), 3)

	require.NoError(t, w.StartupSyncCheck(ctx))
	assert.Empty(t, unsyncedIDs(t, store))
	assert.Len(t, exp.IDs(), 5)
}

func TestProcessPending_CountsOnlySuccesses(t *testing.T) {
	store := memory.New()
	exp := sheetsmem.New()
	exp.FailWith(errors.New("quota"))
	w := NewExportWorker(store, exp, 10, nil)
	newTx(t, store, "u1", 100)

	n, err := w.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, unsyncedIDs(t, store), 1)
}

func TestStartupSyncCheck_NothingPending(t *testing.T) {
	w := NewExportWorker(memory.New(), sheetsmem.New(), 10, nil)
	assert.NoError(t, w.StartupSyncCheck(context.Background()))
}

type fakeSource struct {
	events []*amqp.TransactionEvent
}

func (f *fakeSource) ConsumeTransactionEvents(ctx context.Context, handler amqp.Handler) error {
	for _, ev := range f.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_ConsumesAndSweeps(t *testing.T) {
	store := memory.New()
	exp := sheetsmem.New()
	w := NewExportWorker(store, exp, 10, nil)

	evented := newTx(t, store, "u1", 100)
	require.NoError(t, store.MarkSynced(context.Background(), evented))
	swept := newTx(t, store, "u2", 200)

	src := &fakeSource{events: []*amqp.TransactionEvent{amqp.NewTransactionEvent(amqp.ActionCreated, evented)}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, src, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		_, a := exp.Row(evented.ID)
		_, b := exp.Row(swept.ID)
		return a && b
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// editingExporter updates the stored record once while its first upload is
// in flight.
type editingExporter struct {
	*sheetsmem.Exporter
	edit func()
}

func (e *editingExporter) UpsertTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if e.edit != nil {
		e.edit()
		e.edit = nil
	}
	return e.Exporter.UpsertTransaction(ctx, tx)
}

func TestProcessPending_EditDuringExportStaysPending(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tx := newTx(t, store, "u1", 1000)

	exp := &editingExporter{Exporter: sheetsmem.New()}
	exp.edit = func() {
		_, err := store.UpdateTransaction(ctx, "u1", tx.ID, core.TransactionInput{
			Type:     core.Expense,
			Category: "Housing",
			Date:     tx.Date,
			Amount:   core.Money{Cents: 1500},
		})
		require.NoError(t, err)
	}
	w := NewExportWorker(store, exp, 10, nil)

	n, err := w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	row, ok := exp.Row(tx.ID)
	require.True(t, ok)
	assert.Equal(t, "10.00", row[5], "first upload carries the pre-edit amount")
	assert.Equal(t, []string{tx.ID}, unsyncedIDs(t, store))

	n, err = w.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	row, ok = exp.Row(tx.ID)
	require.True(t, ok)
	assert.Equal(t, "15.00", row[5])
	assert.Empty(t, unsyncedIDs(t, store))
}
