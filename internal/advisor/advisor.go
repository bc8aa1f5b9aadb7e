// Package advisor asks a hosted language model for budget suggestions based
// on the current month's income and expenses.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"budgetwise/internal/analytics"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
	"budgetwise/internal/metrics"
)

// DefaultGoal is used when the user states no financial goals.
const DefaultGoal = "General financial health improvement."

var (
	// ErrNotEnoughData is returned when the month has neither income nor
	// expenses; no model call is made.
	ErrNotEnoughData = errors.New("not enough data: add income and expenses for the current month to get advice")
	// ErrMalformedResponse is returned when the model output cannot be read
	// as a list of suggestions.
	ErrMalformedResponse = errors.New("advisor returned a malformed response")
	// ErrUpstream wraps transport and status failures of the model call.
	ErrUpstream = errors.New("advisor model call failed")
)

type (
	// Expense is one expense transaction as sent to the model.
	Expense struct {
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
	}

	// Request is the input of a suggestion call.
	Request struct {
		Income         core.Money `json:"income"`
		Expenses       []Expense  `json:"expenses"`
		FinancialGoals string     `json:"financialGoals"`
		CurrencyCode   string     `json:"currencyCode"`
	}

	// Response is the list of suggestions returned by the model.
	Response struct {
		Suggestions []string `json:"suggestions"`
	}

	// Suggester calls a model. Implementations make exactly one attempt.
	Suggester interface {
		Suggest(ctx context.Context, req Request) (Response, error)
		Name() string
	}
)

// BuildRequest shapes the transactions of the month containing now into a
// model request: income is summed, expenses are kept one entry per
// transaction in input order.
func BuildRequest(txs []core.Transaction, goals, currency string, now time.Time) (Request, error) {
	month := analytics.Month(now)
	req := Request{
		FinancialGoals: strings.TrimSpace(goals),
		CurrencyCode:   strings.ToUpper(strings.TrimSpace(currency)),
		Expenses:       []Expense{},
	}
	for _, t := range txs {
		if !month.Contains(t.Date) {
			continue
		}
		switch t.Type {
		case core.Income:
			req.Income = req.Income.Add(t.Amount)
		case core.Expense:
			req.Expenses = append(req.Expenses, Expense{Category: t.Category, Amount: t.Amount})
		}
	}
	if req.Income.IsZero() && len(req.Expenses) == 0 {
		return Request{}, ErrNotEnoughData
	}
	if req.FinancialGoals == "" {
		req.FinancialGoals = DefaultGoal
	}
	if !core.IsSupportedCurrency(req.CurrencyCode) {
		req.CurrencyCode = core.DefaultCurrency
	}
	return req, nil
}

// Service runs advice requests against a Suggester.
type Service struct {
	suggester Suggester
	logger    *log.Logger
	now       func() time.Time
}

func NewService(s Suggester, logger *log.Logger) *Service {
	return &Service{
		suggester: s,
		logger:    logger.WithComponent(log.ComponentAdvisor),
		now:       time.Now,
	}
}

// Advise builds the request for the current month and asks the model once.
func (s *Service) Advise(ctx context.Context, txs []core.Transaction, goals, currency string) (Response, error) {
	req, err := BuildRequest(txs, goals, currency, s.now())
	if err != nil {
		return Response{}, err
	}

	provider := s.suggester.Name()
	start := time.Now()
	resp, err := s.suggester.Suggest(ctx, req)
	metrics.AdvisorDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AdvisorCalls.WithLabelValues(provider, outcome(err)).Inc()
		s.logger.ErrorContext(ctx, "Advisor call failed",
			log.FieldProvider, provider,
			log.FieldError, err.Error(),
			"error_type", log.ErrorTypeUpstream)
		return Response{}, err
	}
	metrics.AdvisorCalls.WithLabelValues(provider, "ok").Inc()
	s.logger.InfoContext(ctx, "Advisor suggestions generated",
		log.FieldProvider, provider,
		log.FieldCount, len(resp.Suggestions),
		log.FieldDuration, time.Since(start).Milliseconds())
	return resp, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func upstreamErr(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, provider, err)
}
