// Package memory is an in-process Store used by tests and DATA_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetwise/internal/core"
	"budgetwise/internal/storage"
)

type record struct {
	tx     core.Transaction
	synced bool
}

type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	txs   map[string]*record
	prefs map[string]core.UserPreferences
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:   time.Now,
		txs:   map[string]*record{},
		prefs: map[string]core.UserPreferences{},
	}
}

// WithClock replaces the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, r := range s.txs {
		if r.tx.UserID == userID {
			out = append(out, r.tx)
		}
	}
	storage.SortTransactions(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.txs[id]
	if !ok || r.tx.UserID != userID {
		return core.Transaction{}, storage.ErrNotFound
	}
	return r.tx, nil
}

func (s *Store) CreateTransaction(_ context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	t := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}.Apply(in)
	s.txs[t.ID] = &record{tx: t}
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.txs[id]
	if !ok || r.tx.UserID != userID {
		return core.Transaction{}, storage.ErrNotFound
	}
	now := s.now().UTC()
	// updated_at identifies the exported version, so it must move on every edit.
	if !now.After(r.tx.UpdatedAt) {
		now = r.tx.UpdatedAt.Add(time.Nanosecond)
	}
	r.tx = r.tx.Apply(in)
	r.tx.UpdatedAt = now
	r.synced = false
	return r.tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.txs[id]
	if !ok || r.tx.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) ListUnsynced(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, r := range s.txs {
		if !r.synced {
			out = append(out, r.tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, exported ...core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range exported {
		if r, ok := s.txs[t.ID]; ok && r.tx.UpdatedAt.Equal(t.UpdatedAt) {
			r.synced = true
		}
	}
	return nil
}

func (s *Store) GetPreferences(_ context.Context, userID string) (core.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return core.UserPreferences{}, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) SavePreferences(_ context.Context, prefs core.UserPreferences) (core.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs = prefs.Clone()
	prefs.UpdatedAt = s.now().UTC()
	s.prefs[prefs.UserID] = prefs
	return prefs.Clone(), nil
}
