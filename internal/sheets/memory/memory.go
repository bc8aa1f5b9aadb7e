// Package memory is an in-process sheets.Exporter for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"budgetwise/internal/core"
	"budgetwise/internal/sheets"
)

type Exporter struct {
	mu    sync.Mutex
	order []string
	rows  map[string][]any
	err   error

	Upserts int
	Deletes int
}

var _ sheets.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: map[string][]any{}}
}

// FailWith makes every later call return err. Pass nil to recover.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *Exporter) UpsertTransaction(_ context.Context, tx core.Transaction) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.Upserts++
	if _, ok := e.rows[tx.ID]; !ok {
		e.order = append(e.order, tx.ID)
	}
	e.rows[tx.ID] = sheets.Row(tx)
	return fmt.Sprintf("mem:%d", slices.Index(e.order, tx.ID)+2), nil
}

func (e *Exporter) DeleteTransaction(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.Deletes++
	if _, ok := e.rows[id]; !ok {
		return nil
	}
	delete(e.rows, id)
	e.order = slices.DeleteFunc(e.order, func(v string) bool { return v == id })
	return nil
}

// Row returns the exported row for id.
func (e *Exporter) Row(id string) ([]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.rows[id]
	return slices.Clone(row), ok
}

// IDs lists exported ids in sheet order.
func (e *Exporter) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.order)
}
