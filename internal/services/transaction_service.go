package services

import (
	"context"
	"fmt"
	"time"

	"budgetwise/internal/amqp"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
	"budgetwise/internal/stream"
)

// TransactionService orchestrates transaction writes across the store, AMQP
// and the snapshot hub. events, hub and inv may be nil.
type TransactionService struct {
	store  storage.TransactionStore
	events EventPublisher
	hub    *stream.Hub
	inv    Invalidator
	logger *log.Logger
	now    func() time.Time
}

func NewTransactionService(store storage.TransactionStore, events EventPublisher, hub *stream.Hub, inv Invalidator, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		store:  store,
		events: events,
		hub:    hub,
		inv:    inv,
		logger: logger.WithComponent(log.ComponentTransaction),
		now:    time.Now,
	}
}

// List returns the user's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (s *TransactionService) Create(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize(s.now())
	if err := in.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	tx, err := s.store.CreateTransaction(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldUserID, userID, log.FieldTxID, tx.ID,
		log.FieldTxType, tx.Type, log.FieldCategory, tx.Category, log.FieldAmount, tx.Amount.Cents)

	s.afterWrite(ctx, userID, amqp.NewTransactionEvent(amqp.ActionCreated, tx))
	return tx, nil
}

func (s *TransactionService) Update(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize(s.now())
	if err := in.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	tx, err := s.store.UpdateTransaction(ctx, userID, id, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction updated", log.FieldUserID, userID, log.FieldTxID, tx.ID)

	s.afterWrite(ctx, userID, amqp.NewTransactionEvent(amqp.ActionUpdated, tx))
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldUserID, userID, log.FieldTxID, id)

	s.afterWrite(ctx, userID, amqp.NewDeletedEvent(userID, id))
	return nil
}

// Snapshot publishes the user's current list to the hub and returns it.
// Stream handlers call it right after subscribing. The list is read under the
// hub's per-user load lock so concurrent writers publish in read order.
func (s *TransactionService) Snapshot(ctx context.Context, userID string) (stream.Snapshot, error) {
	if s.hub == nil {
		txs, err := s.List(ctx, userID)
		if err != nil {
			return stream.Snapshot{}, err
		}
		return stream.Snapshot{UserID: userID, Transactions: txs, At: s.now().UTC()}, nil
	}
	return s.hub.PublishFunc(userID, func() ([]core.Transaction, error) {
		return s.List(ctx, userID)
	})
}

// afterWrite runs the side effects of a committed write. None of them can
// fail the request: the record is already stored.
func (s *TransactionService) afterWrite(ctx context.Context, userID string, ev *amqp.TransactionEvent) {
	if s.inv != nil {
		s.inv.Invalidate(userID)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionEvent(ctx, ev); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish transaction event",
				"action", ev.Action, log.FieldTxID, ev.TransactionID, log.FieldError, err)
		}
	} else {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping transaction event")
	}

	if s.hub != nil && s.hub.Subscribers(userID) > 0 {
		if _, err := s.Snapshot(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "Failed to refresh snapshot", log.FieldUserID, userID, log.FieldError, err)
		}
	}
}
