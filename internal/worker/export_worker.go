// Package worker mirrors stored transactions into the external spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/metrics"
	"budgetwise/internal/sheets"
	"budgetwise/internal/storage"
)

// Store is the part of a backend the worker reads and marks.
type Store interface {
	storage.SyncStore
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
}

// EventSource delivers transaction events until ctx is cancelled.
type EventSource interface {
	ConsumeTransactionEvents(ctx context.Context, handler amqp.Handler) error
}

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
	actionSweep    = "sweep"
)

// ExportWorker applies transaction events to a sheets.Exporter and sweeps
// records the event stream missed.
type ExportWorker struct {
	store     Store
	exporter  sheets.Exporter
	batchSize int
	logger    *log.Logger
}

func NewExportWorker(store Store, exporter sheets.Exporter, batchSize int, logger *log.Logger) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent exports one event. A returned error asks the broker to redeliver.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	w.logger.DebugContext(ctx, "Processing transaction event",
		"action", ev.Action, log.FieldTxID, ev.TransactionID, log.FieldUserID, ev.UserID)

	if ev.Action == amqp.ActionDeleted {
		if err := w.exporter.DeleteTransaction(ctx, ev.TransactionID); err != nil {
			w.record(ev.Action, outcomeError)
			return fmt.Errorf("delete exported row: %w", err)
		}
		w.record(ev.Action, outcomeOK)
		w.logger.InfoContext(ctx, "Removed exported transaction", log.FieldTxID, ev.TransactionID)
		return nil
	}

	// The stored record wins over the event payload so a late event never
	// overwrites a newer edit.
	tx, err := w.store.GetTransaction(ctx, ev.UserID, ev.TransactionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		w.record(ev.Action, outcomeSkipped)
		w.logger.InfoContext(ctx, "Transaction gone before export, skipping", log.FieldTxID, ev.TransactionID)
		return nil
	case err != nil:
		w.record(ev.Action, outcomeError)
		return fmt.Errorf("load transaction: %w", err)
	}

	if err := w.export(ctx, tx); err != nil {
		w.record(ev.Action, outcomeError)
		return err
	}
	w.record(ev.Action, outcomeOK)
	return nil
}

// ProcessPending exports up to one batch of unsynced transactions.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	synced, failed, err := w.sweep(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if synced+failed > 0 {
		w.logger.InfoContext(ctx, "Processed pending transactions", "synced", synced, "errors", failed)
	}
	return synced, nil
}

// StartupSyncCheck catches up on records written while the worker was down.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.sweep(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	if synced+failed == 0 {
		w.logger.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed, "synced", synced, "errors", failed)
	return nil
}

// Run consumes events from src and sweeps every interval until ctx ends.
// A nil src leaves only the periodic sweep.
func (w *ExportWorker) Run(ctx context.Context, src EventSource, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	g, ctx := errgroup.WithContext(ctx)

	if src != nil {
		g.Go(func() error {
			err := src.ConsumeTransactionEvents(ctx, w.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
					w.logger.ErrorContext(ctx, "Pending sweep failed", log.FieldError, err)
				}
			}
		}
	})

	return g.Wait()
}

func (w *ExportWorker) sweep(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.ListUnsynced(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list unsynced: %w", err)
	}
	for _, tx := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.export(ctx, tx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export transaction",
				log.FieldTxID, tx.ID, log.FieldError, err)
			w.record(actionSweep, outcomeError)
			failed++
			continue
		}
		w.record(actionSweep, outcomeOK)
		synced++
	}
	return synced, failed, nil
}

func (w *ExportWorker) export(ctx context.Context, tx core.Transaction) error {
	ref, err := w.exporter.UpsertTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}
	// The row is written; a failed mark only means a redundant re-export later.
	// An edit made during the upload keeps the record pending for the next sweep.
	if err := w.store.MarkSynced(ctx, tx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldTxID, tx.ID, log.FieldError, err)
	}
	w.logger.InfoContext(ctx, "Exported transaction",
		log.FieldTxID, tx.ID, "sheets_ref", ref, log.FieldAmount, tx.Amount.Cents)
	return nil
}

func (w *ExportWorker) record(action any, outcome string) {
	metrics.ExportEvents.WithLabelValues(fmt.Sprint(action), outcome).Inc()
}
