// Package stream fans full transaction snapshots out to per-user subscribers.
//
// Each subscription owns a channel of capacity one. Publishing drops any
// snapshot the consumer has not read yet and puts the new one in its place,
// so a slow reader always sees the latest complete list and never a delta.
package stream

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/metrics"
)

var ErrClosed = errors.New("stream hub closed")

type Snapshot struct {
	UserID       string             `json:"userId"`
	Version      uint64             `json:"version"`
	Transactions []core.Transaction `json:"transactions"`
	At           time.Time          `json:"at"`
}

type Subscription struct {
	hub    *Hub
	userID string
	ch     chan Snapshot
	done   chan struct{}
	once   sync.Once
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) UserID() string { return s.userID }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[*Subscription]struct{}
	versions map[string]uint64
	loads    map[string]*userLoad
	closed   bool
	now      func() time.Time
	logger   *log.Logger
}

// userLoad serialises load-then-publish for one user. refs counts the
// callers holding or waiting on mu so the entry can be dropped when idle.
type userLoad struct {
	mu   sync.Mutex
	refs int
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		subs:     map[string]map[*Subscription]struct{}{},
		versions: map[string]uint64{},
		loads:    map[string]*userLoad{},
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentStream),
	}
}

// Subscribe registers a consumer for userID. The subscription ends when ctx
// is cancelled, when Close is called, or when the hub shuts down.
func (h *Hub) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	sub := &Subscription{
		hub:    h,
		userID: userID,
		ch:     make(chan Snapshot, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[userID] == nil {
		h.subs[userID] = map[*Subscription]struct{}{}
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	metrics.StreamSubscribers.Inc()
	h.logger.DebugContext(ctx, "Subscriber registered", log.FieldUserID, userID)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Publish sends a snapshot of txs to every subscriber of userID and returns it.
// The transaction slice is copied so callers may reuse theirs.
func (h *Hub) Publish(userID string, txs []core.Transaction) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.versions[userID]++
	snap := Snapshot{
		UserID:       userID,
		Version:      h.versions[userID],
		Transactions: slices.Clone(txs),
		At:           h.now().UTC(),
	}
	if snap.Transactions == nil {
		snap.Transactions = []core.Transaction{}
	}
	if h.closed {
		return snap
	}

	for sub := range h.subs[userID] {
		// Publishers are serialised by h.mu, so after the drain the send cannot block.
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
	metrics.SnapshotsPublished.Inc()
	return snap
}

// PublishFunc loads the user's transactions and publishes them. Calls for the
// same user run one at a time, so a list read before a concurrent write can
// never be published after the list that includes it.
func (h *Hub) PublishFunc(userID string, load func() ([]core.Transaction, error)) (Snapshot, error) {
	l := h.acquireLoad(userID)
	defer h.releaseLoad(userID, l)

	txs, err := load()
	if err != nil {
		return Snapshot{}, err
	}
	return h.Publish(userID, txs), nil
}

func (h *Hub) acquireLoad(userID string) *userLoad {
	h.mu.Lock()
	l, ok := h.loads[userID]
	if !ok {
		l = &userLoad{}
		h.loads[userID] = l
	}
	l.refs++
	h.mu.Unlock()

	l.mu.Lock()
	return l
}

func (h *Hub) releaseLoad(userID string, l *userLoad) {
	l.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(h.loads, userID)
	}
}

// Subscribers reports how many live subscriptions userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Close ends every subscription. Later Subscribe calls fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
	close(sub.ch)
	metrics.StreamSubscribers.Dec()
}
