package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"budgetwise/internal/analytics"
	"budgetwise/internal/core"
	"budgetwise/internal/services"
)

// transactionRequest is the body of create and update calls. Date accepts
// "2006-01-02" or RFC 3339; empty means now.
type transactionRequest struct {
	Type     core.TxType `json:"type"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
	Amount   core.Money  `json:"amount"`
	Notes    string      `json:"notes"`
}

func (s *Server) input(req transactionRequest) (core.TransactionInput, error) {
	in := core.TransactionInput{
		Type:     core.TxType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Category: sanitizeInput(req.Category),
		Amount:   req.Amount,
		Notes:    sanitizeInput(req.Notes),
	}
	if d := strings.TrimSpace(req.Date); d != "" {
		t, err := s.parseDate(d)
		if err != nil {
			return core.TransactionInput{}, fmt.Errorf("%w: %w", services.ErrInvalidInput, core.ErrInvalidDate)
		}
		in.Date = t
	}
	return in, nil
}

func (s *Server) parseDate(v string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", v, s.loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// handleListTransactions returns the user's transactions, newest first.
// Optional filters: type=income|expense and month=YYYY-MM.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	q := r.URL.Query()

	typ := core.TxType(strings.ToLower(strings.TrimSpace(q.Get("type"))))
	if typ != "" && !typ.Valid() {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, core.ErrInvalidType.Error())
		return
	}
	var period *analytics.Period
	if m := strings.TrimSpace(q.Get("month")); m != "" {
		p, err := analytics.ParseMonth(m, s.loc)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		period = &p
	}

	txs, err := s.txs.List(r.Context(), u.UID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if typ != "" && t.Type != typ {
			continue
		}
		if period != nil && !period.Contains(t.Date) {
			continue
		}
		out = append(out, t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.txs.Get(r.Context(), currentUser(r).UID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	in, err := s.input(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.txs.Create(r.Context(), currentUser(r).UID, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/transactions/"+tx.ID)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	in, err := s.input(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tx, err := s.txs.Update(r.Context(), currentUser(r).UID, r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.txs.Delete(r.Context(), currentUser(r).UID, r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
