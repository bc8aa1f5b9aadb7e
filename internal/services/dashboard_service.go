package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetwise/internal/analytics"
	"budgetwise/internal/cache"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/storage"
)

// Dashboard is every figure the overview page shows for one month.
type Dashboard struct {
	Month        string                    `json:"month"`
	Currency     string                    `json:"currency"`
	MonthTotals  analytics.Totals          `json:"monthTotals"`
	YearTotals   analytics.Totals          `json:"yearTotals"`
	Breakdown    []analytics.CategoryTotal `json:"breakdown"`
	Budgets      analytics.BudgetReport    `json:"budgets"`
	Health       analytics.HealthReport    `json:"health"`
	Insights     analytics.QuickInsight    `json:"insights"`
	Daily        []analytics.DailyPoint    `json:"daily"`
	MonthOptions []analytics.MonthOption   `json:"monthOptions"`
	GeneratedAt  time.Time                 `json:"generatedAt"`
}

// DashboardService builds dashboards and caches them per user and month.
type DashboardService struct {
	txs    storage.TransactionStore
	prefs  *PreferencesService
	cache  cache.Cache[Dashboard]
	logger *log.Logger
	now    func() time.Time

	// gens counts invalidations per user. A build only caches its result if
	// no invalidation ran since it started reading.
	mu   sync.Mutex
	gens map[string]uint64
}

var _ Invalidator = (*DashboardService)(nil)

func NewDashboardService(txs storage.TransactionStore, prefs *PreferencesService, c cache.Cache[Dashboard], logger *log.Logger) *DashboardService {
	if c == nil {
		c = cache.NewLRUCache[Dashboard]("dashboard", 1000, 5*time.Minute)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		txs:    txs,
		prefs:  prefs,
		cache:  c,
		logger: logger.WithComponent(log.ComponentDashboard),
		now:    time.Now,
		gens:   map[string]uint64{},
	}
}

// Build returns the dashboard for month ("YYYY-MM"; empty means the current month).
func (s *DashboardService) Build(ctx context.Context, userID, month string) (Dashboard, error) {
	now := s.now()
	ref := now
	if month != "" {
		p, err := analytics.ParseMonth(month, now.Location())
		if err != nil {
			return Dashboard{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if !p.Contains(now) {
			// Other months are viewed as of their last instant.
			ref = p.End.Add(-time.Nanosecond)
		}
	}

	key := cacheKey(userID, analytics.MonthKey(ref))
	if d, ok := s.cache.Get(key); ok {
		s.logger.DebugContext(ctx, "Dashboard cache hit", log.FieldUserID, userID, log.FieldMonth, analytics.MonthKey(ref))
		return d, nil
	}

	gen := s.generation(userID)
	txs, err := s.txs.ListTransactions(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list transactions: %w", err)
	}
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}

	d := Assemble(txs, prefs, ref, now)
	s.mu.Lock()
	if s.gens[userID] == gen {
		s.cache.Set(key, d)
	} else {
		s.logger.DebugContext(ctx, "Dashboard invalidated during build, not caching", log.FieldUserID, userID)
	}
	s.mu.Unlock()
	return d, nil
}

// Invalidate drops every cached month of userID.
func (s *DashboardService) Invalidate(userID string) {
	s.mu.Lock()
	s.gens[userID]++
	n := s.cache.DeletePrefix(cacheKey(userID, ""))
	s.mu.Unlock()
	if n > 0 {
		s.logger.Debug("Dashboard cache invalidated", log.FieldUserID, userID, log.FieldCount, n)
	}
}

func (s *DashboardService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// Assemble computes a dashboard for the month containing ref. Insights always
// cover the 30 days ending at now.
func Assemble(txs []core.Transaction, prefs core.UserPreferences, ref, now time.Time) Dashboard {
	month := analytics.Month(ref)
	breakdown := analytics.Breakdown(txs, month)
	return Dashboard{
		Month:        analytics.MonthKey(ref),
		Currency:     prefs.Currency,
		MonthTotals:  analytics.MonthTotals(txs, ref),
		YearTotals:   analytics.YearTotals(txs, ref),
		Breakdown:    breakdown,
		Budgets:      analytics.CompareBudgets(breakdown, prefs),
		Health:       analytics.Health(txs, prefs, ref),
		Insights:     analytics.QuickInsights(txs, now),
		Daily:        analytics.DailySeries(txs, ref),
		MonthOptions: analytics.MonthOptions(now, 12),
		GeneratedAt:  now.UTC(),
	}
}

// cacheKey joins with NUL, which cannot occur in a user id, so one user's
// prefix never matches another's keys.
func cacheKey(userID, month string) string {
	return userID + "\x00" + month
}
