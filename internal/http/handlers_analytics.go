package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"budgetwise/internal/analytics"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/services"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.dashboard.Build(r.Context(), currentUser(r).UID, strings.TrimSpace(r.URL.Query().Get("month")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// monthRef resolves the month query parameter. The reference instant is now
// for the current month and the last instant of any other month.
func (s *Server) monthRef(r *http.Request) (analytics.Period, time.Time, error) {
	now := s.now().In(s.loc)
	m := strings.TrimSpace(r.URL.Query().Get("month"))
	if m == "" {
		return analytics.Month(now), now, nil
	}
	p, err := analytics.ParseMonth(m, s.loc)
	if err != nil {
		return analytics.Period{}, time.Time{}, fmt.Errorf("%w: %w", services.ErrInvalidInput, err)
	}
	if p.Contains(now) {
		return p, now, nil
	}
	return p, p.End.Add(-time.Nanosecond), nil
}

// handleAnalytics serves one analytics view over the user's transactions.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	u := currentUser(r)
	ctx := r.Context()

	period, ref, err := s.monthRef(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	txs, err := s.txs.List(ctx, u.UID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.now().In(s.loc)
	q := r.URL.Query()

	switch kind {
	case "totals":
		writeJSON(w, http.StatusOK, struct {
			Month analytics.Totals `json:"month"`
			Year  analytics.Totals `json:"year"`
		}{analytics.ComputeTotals(txs, period), analytics.YearTotals(txs, ref)})

	case "breakdown":
		writeJSON(w, http.StatusOK, analytics.Breakdown(txs, period))

	case "budgets":
		prefs, err := s.prefs.Get(ctx, u.UID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, analytics.CompareBudgets(analytics.Breakdown(txs, period), prefs))

	case "health":
		prefs, err := s.prefs.Get(ctx, u.UID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, analytics.Health(txs, prefs, ref))

	case "insights":
		writeJSON(w, http.StatusOK, analytics.QuickInsights(txs, now))

	case "trends":
		var cats []string
		for _, c := range strings.Split(q.Get("categories"), ",") {
			if c = strings.TrimSpace(c); c != "" {
				cats = append(cats, c)
			}
		}
		rng, err := analytics.ParseTrendRange(q.Get("range"))
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: %w", services.ErrInvalidInput, err))
			return
		}
		report, err := analytics.SpendingTrends(txs, now, rng, cats)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: %w", services.ErrInvalidInput, err))
			return
		}
		writeJSON(w, http.StatusOK, report)

	case "drilldown":
		tf, err := analytics.ParseTimeframe(q.Get("timeframe"))
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: %w", services.ErrInvalidInput, err))
			return
		}
		if cat := strings.TrimSpace(q.Get("category")); cat != "" {
			writeJSON(w, http.StatusOK, analytics.DailyGroups(txs, cat, tf, now))
			return
		}
		writeJSON(w, http.StatusOK, analytics.Drilldown(txs, tf, now))

	case "daily":
		writeJSON(w, http.StatusOK, analytics.DailySeries(txs, ref))

	default:
		writeError(w, r, http.StatusNotFound, codeNotFound, fmt.Sprintf("unknown analytics view %q", kind))
	}
}

type adviceRequest struct {
	FinancialGoals string `json:"financialGoals"`
}

// handleAdvisor asks the model for suggestions on the current month.
func (s *Server) handleAdvisor(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "the budget advisor is not configured")
		return
	}
	var req adviceRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
	}

	u := currentUser(r)
	txs, err := s.txs.List(r.Context(), u.UID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	currency := core.DefaultCurrency
	if prefs, err := s.prefs.Get(r.Context(), u.UID); err == nil {
		currency = prefs.Currency
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to load preferences, advising in default currency",
			log.FieldUserID, u.UID, log.FieldError, err)
	}

	resp, err := s.advisor.Advise(r.Context(), txs, sanitizeInput(req.FinancialGoals), currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
