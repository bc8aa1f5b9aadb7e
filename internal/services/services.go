// Package services coordinates the stores, the event bus, the snapshot hub
// and the caches behind each user action.
package services

import (
	"context"
	"errors"

	"budgetwise/internal/amqp"
)

// ErrInvalidInput wraps every validation failure returned by the services.
var ErrInvalidInput = errors.New("invalid input")

// Result is the outcome of a write. On failure Value holds the prior value so
// callers can roll back optimistic UI state.
type Result[T any] struct {
	Value    T
	Previous T
	Err      error
}

func (r Result[T]) OK() bool { return r.Err == nil }

// EventPublisher forwards transaction events to the export pipeline.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Invalidator drops derived data cached for a user.
type Invalidator interface {
	Invalidate(userID string)
}
