package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetwise/internal/amqp"
	"budgetwise/internal/cache"
	"budgetwise/internal/core"
	"budgetwise/internal/storage"
	"budgetwise/internal/storage/memory"
	"budgetwise/internal/stream"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) actions() []amqp.EventAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventAction, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}

type countingInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (c *countingInvalidator) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, userID)
}

// writeCountingStore counts transaction writes on top of the memory store.
type writeCountingStore struct {
	*memory.Store
	writes int
}

func (s *writeCountingStore) CreateTransaction(ctx context.Context, uid string, in core.TransactionInput) (core.Transaction, error) {
	s.writes++
	return s.Store.CreateTransaction(ctx, uid, in)
}

func (s *writeCountingStore) UpdateTransaction(ctx context.Context, uid, id string, in core.TransactionInput) (core.Transaction, error) {
	s.writes++
	return s.Store.UpdateTransaction(ctx, uid, id, in)
}

func (s *writeCountingStore) DeleteTransaction(ctx context.Context, uid, id string) error {
	s.writes++
	return s.Store.DeleteTransaction(ctx, uid, id)
}

// staleListStore reads the first list, then holds it until release closes,
// so a concurrent write lands between the read and the publish.
type staleListStore struct {
	*memory.Store
	first   atomic.Bool
	entered chan struct{}
	release chan struct{}
	created chan struct{}
}

func newStaleListStore() *staleListStore {
	return &staleListStore{
		Store:   memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
		created: make(chan struct{}, 2),
	}
}

func (s *staleListStore) ListTransactions(ctx context.Context, uid string) ([]core.Transaction, error) {
	txs, err := s.Store.ListTransactions(ctx, uid)
	if s.first.CompareAndSwap(false, true) {
		close(s.entered)
		<-s.release
	}
	return txs, err
}

func (s *staleListStore) CreateTransaction(ctx context.Context, uid string, in core.TransactionInput) (core.Transaction, error) {
	tx, err := s.Store.CreateTransaction(ctx, uid, in)
	s.created <- struct{}{}
	return tx, err
}

func validInput(cents int64) core.TransactionInput {
	return core.TransactionInput{
		Type:     core.Expense,
		Category: "Food & Drinks",
		Date:     time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
		Amount:   core.Money{Cents: cents},
	}
}

func TestTransactionService_WriteSideEffects(t *testing.T) {
	ctx := context.Background()
	store := &writeCountingStore{Store: memory.New()}
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	hub := stream.NewHub(nil)
	svc := NewTransactionService(store, pub, hub, inv, nil)

	sub, err := hub.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer sub.Close()

	tx, err := svc.Create(ctx, "u1", validInput(1250))
	require.NoError(t, err)
	assert.Equal(t, 1, store.writes)

	snap := <-sub.C()
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, tx.ID, snap.Transactions[0].ID)

	_, err = svc.Update(ctx, "u1", tx.ID, validInput(900))
	require.NoError(t, err)
	assert.Equal(t, 2, store.writes)

	next := <-sub.C()
	assert.Greater(t, next.Version, snap.Version)
	assert.Equal(t, int64(900), next.Transactions[0].Amount.Cents)

	require.NoError(t, svc.Delete(ctx, "u1", tx.ID))
	assert.Equal(t, 3, store.writes)
	last := <-sub.C()
	assert.Empty(t, last.Transactions)
	assert.NotNil(t, last.Transactions)

	assert.Equal(t, []amqp.EventAction{amqp.ActionCreated, amqp.ActionUpdated, amqp.ActionDeleted}, pub.actions())
	assert.Equal(t, []string{"u1", "u1", "u1"}, inv.users)
}

func TestTransactionService_ValidationSkipsStore(t *testing.T) {
	store := &writeCountingStore{Store: memory.New()}
	pub := &recordingPublisher{}
	svc := NewTransactionService(store, pub, nil, nil, nil)

	tests := []struct {
		name string
		in   core.TransactionInput
		want error
	}{
		{"zero amount", validInput(0), core.ErrInvalidAmount},
		{"unknown category", func() core.TransactionInput { in := validInput(1); in.Category = "Salary"; return in }(), core.ErrUnknownCategory},
		{"bad type", func() core.TransactionInput { in := validInput(1); in.Type = "transfer"; return in }(), core.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "u1", tt.in)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, store.writes)
	assert.Empty(t, pub.actions())
}

func TestTransactionService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc := NewTransactionService(memory.New(), pub, nil, nil, nil)

	tx, err := svc.Create(context.Background(), "u1", validInput(100))
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
}

func TestTransactionService_ForeignIDs(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), nil, nil, nil, nil)

	tx, err := svc.Create(ctx, "owner", validInput(100))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "intruder", tx.ID, validInput(200))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "intruder", tx.ID), storage.ErrNotFound)

	_, err = svc.Get(ctx, "owner", tx.ID)
	assert.NoError(t, err)
}

func TestTransactionService_ZeroDateDefaultsToNow(t *testing.T) {
	svc := NewTransactionService(memory.New(), nil, nil, nil, nil)
	fixed := time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	in := validInput(100)
	in.Date = time.Time{}
	tx, err := svc.Create(context.Background(), "u1", in)
	require.NoError(t, err)
	assert.True(t, tx.Date.Equal(fixed))
}

// failingPrefsStore fails every save after the first n.
type failingPrefsStore struct {
	*memory.Store
	allow int
}

func (s *failingPrefsStore) SavePreferences(ctx context.Context, p core.UserPreferences) (core.UserPreferences, error) {
	if s.allow <= 0 {
		return core.UserPreferences{}, errors.New("disk full")
	}
	s.allow--
	return s.Store.SavePreferences(ctx, p)
}

func strPtr(s string) *string { return &s }

func TestPreferencesService_LazyDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewPreferencesService(store, nil, nil)

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCurrency, p.Currency)
	assert.Empty(t, p.Budgets)

	stored, err := store.GetPreferences(ctx, "u1")
	require.NoError(t, err, "defaults are persisted on first access")
	assert.Equal(t, "u1", stored.UserID)
}

func TestPreferencesService_UpdateMerges(t *testing.T) {
	ctx := context.Background()
	inv := &countingInvalidator{}
	svc := NewPreferencesService(memory.New(), nil, nil).WithInvalidator(inv)

	res := svc.Update(ctx, "u1", core.PreferencesPatch{
		Currency: strPtr("eur"),
		Budgets:  map[string]core.Money{"Housing": {Cents: 100000}, "Shopping": {Cents: 20000}},
	})
	require.True(t, res.OK(), res.Err)
	assert.Equal(t, "EUR", res.Value.Currency)
	assert.Equal(t, core.DefaultCurrency, res.Previous.Currency)

	res = svc.Update(ctx, "u1", core.PreferencesPatch{
		Budgets: map[string]core.Money{"Shopping": {}},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, "EUR", res.Value.Currency, "nil fields keep their value")
	assert.Equal(t, map[string]core.Money{"Housing": {Cents: 100000}}, res.Value.Budgets)

	got, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, res.Value.Budgets, got.Budgets)
	assert.Equal(t, []string{"u1", "u1"}, inv.users)
}

func TestPreferencesService_Rollback(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		svc := NewPreferencesService(memory.New(), nil, nil)
		res := svc.Update(ctx, "u1", core.PreferencesPatch{
			Budgets: map[string]core.Money{"Housing": {Cents: -1}},
		})
		require.ErrorIs(t, res.Err, ErrInvalidInput)
		assert.ErrorIs(t, res.Err, core.ErrInvalidBudget)
		assert.Equal(t, res.Previous, res.Value)
	})

	t.Run("store failure keeps cache", func(t *testing.T) {
		store := &failingPrefsStore{Store: memory.New(), allow: 2}
		svc := NewPreferencesService(store, nil, nil)

		ok := svc.Update(ctx, "u1", core.PreferencesPatch{Currency: strPtr("GBP")})
		require.NoError(t, ok.Err)

		res := svc.Update(ctx, "u1", core.PreferencesPatch{Currency: strPtr("JPY")})
		require.Error(t, res.Err)
		assert.Equal(t, "GBP", res.Value.Currency)

		got, err := svc.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "GBP", got.Currency)
	})
}

func TestPreferencesService_SetAvatar(t *testing.T) {
	ctx := context.Background()
	svc := NewPreferencesService(memory.New(), nil, nil)

	res := svc.SetAvatar(ctx, "u1", &core.Avatar{ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, res.Err)
	require.NotNil(t, res.Value.Avatar)
	assert.Equal(t, "image/png", res.Value.Avatar.ContentType)

	res = svc.SetAvatar(ctx, "u1", &core.Avatar{ContentType: "image/bmp", Data: []byte{1}})
	assert.ErrorIs(t, res.Err, core.ErrAvatarType)
	require.NotNil(t, res.Value.Avatar, "rollback keeps the old avatar")

	big := make([]byte, core.MaxAvatarBytes+1)
	res = svc.SetAvatar(ctx, "u1", &core.Avatar{ContentType: "image/png", Data: big})
	assert.ErrorIs(t, res.Err, core.ErrAvatarTooLarge)

	res = svc.SetAvatar(ctx, "u1", nil)
	require.NoError(t, res.Err)
	assert.Nil(t, res.Value.Avatar)
}

func TestTransactionService_ConcurrentWritesPublishLatestList(t *testing.T) {
	ctx := context.Background()
	store := newStaleListStore()
	hub := stream.NewHub(nil)
	defer hub.Close()
	svc := NewTransactionService(store, &recordingPublisher{}, hub, &countingInvalidator{}, nil)

	sub, err := hub.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Create(ctx, "u1", validInput(100))
		assert.NoError(t, err)
	}()
	<-store.entered

	go func() {
		defer wg.Done()
		_, err := svc.Create(ctx, "u1", validInput(200))
		assert.NoError(t, err)
	}()
	<-store.created
	<-store.created
	time.Sleep(20 * time.Millisecond)

	close(store.release)
	wg.Wait()

	snap := <-sub.C()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Len(t, snap.Transactions, 2, "the newest version carries both writes")
}

func TestDashboardService_CachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	prefs := NewPreferencesService(store, nil, nil)
	dash := NewDashboardService(store, prefs, nil, nil)
	prefs.WithInvalidator(dash)
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	dash.now = func() time.Time { return now }
	txs := NewTransactionService(store, nil, nil, dash, nil)

	_, err := txs.Create(ctx, "u1", validInput(5000))
	require.NoError(t, err)

	d, err := dash.Build(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-05", d.Month)
	assert.Equal(t, int64(5000), d.MonthTotals.Expenses.Cents)

	// Direct store writes bypass invalidation, so the cached copy is served.
	_, err = store.CreateTransaction(ctx, "u1", validInput(1000))
	require.NoError(t, err)
	d, err = dash.Build(ctx, "u1", "2025-05")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), d.MonthTotals.Expenses.Cents)

	_, err = txs.Create(ctx, "u1", validInput(250))
	require.NoError(t, err)
	d, err = dash.Build(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(6250), d.MonthTotals.Expenses.Cents)

	res := prefs.Update(ctx, "u1", core.PreferencesPatch{Budgets: map[string]core.Money{"Food & Drinks": {Cents: 10000}}})
	require.NoError(t, res.Err)
	d, err = dash.Build(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, d.Budgets.Lines, 1)
	require.NotNil(t, d.Budgets.Totals.Budget)
	assert.Equal(t, int64(10000), d.Budgets.Totals.Budget.Cents)
}

// writeDuringListStore lands a write plus its invalidation after the first
// list has been read but before the caller uses it.
type writeDuringListStore struct {
	*memory.Store
	dash *DashboardService
	once sync.Once
}

func (s *writeDuringListStore) ListTransactions(ctx context.Context, uid string) ([]core.Transaction, error) {
	txs, err := s.Store.ListTransactions(ctx, uid)
	s.once.Do(func() {
		_, werr := s.Store.CreateTransaction(ctx, uid, validInput(300))
		if werr == nil {
			s.dash.Invalidate(uid)
		}
	})
	return txs, err
}

func TestDashboardService_InvalidateDuringBuildIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &writeDuringListStore{Store: memory.New()}
	c := cache.NewLRUCache[Dashboard]("dashboard-test", 10, time.Minute)
	dash := NewDashboardService(store, NewPreferencesService(store.Store, nil, nil), c, nil)
	store.dash = dash
	dash.now = func() time.Time { return time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC) }

	_, err := store.Store.CreateTransaction(ctx, "u1", validInput(1000))
	require.NoError(t, err)

	d, err := dash.Build(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), d.MonthTotals.Expenses.Cents)
	assert.Zero(t, c.Size(), "a build overtaken by an invalidation must not be cached")

	d, err = dash.Build(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), d.MonthTotals.Expenses.Cents)
	assert.Equal(t, 1, c.Size())
}

func TestDashboardService_InvalidateIsScopedToUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := cache.NewLRUCache[Dashboard]("dashboard-test", 10, time.Minute)
	dash := NewDashboardService(store, NewPreferencesService(store, nil, nil), c, nil)
	dash.now = func() time.Time { return time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC) }

	users := []string{"a", "a|b", "a|", "ab"}
	for _, uid := range users {
		_, err := dash.Build(ctx, uid, "")
		require.NoError(t, err)
	}
	require.Equal(t, len(users), c.Size())

	dash.Invalidate("a")
	_, ok := c.Get(cacheKey("a", "2025-05"))
	assert.False(t, ok)
	for _, uid := range users[1:] {
		_, ok := c.Get(cacheKey(uid, "2025-05"))
		assert.True(t, ok, "entry for %q dropped by another user's invalidation", uid)
	}
}

func TestDashboardService_PastMonth(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	dash := NewDashboardService(store, NewPreferencesService(store, nil, nil), nil, nil)
	dash.now = func() time.Time { return time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC) }

	in := validInput(700)
	in.Date = time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	_, err := store.CreateTransaction(ctx, "u1", in)
	require.NoError(t, err)

	d, err := dash.Build(ctx, "u1", "2025-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-03", d.Month)
	assert.Equal(t, int64(700), d.MonthTotals.Expenses.Cents)

	_, err = dash.Build(ctx, "u1", "March")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
