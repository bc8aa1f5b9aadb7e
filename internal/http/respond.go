package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"budgetwise/internal/advisor"
	"budgetwise/internal/auth"
	"budgetwise/internal/core"
	"budgetwise/internal/export"
	"budgetwise/internal/log"
	"budgetwise/internal/services"
	"budgetwise/internal/storage"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeBadRequest      = "bad_request"
	codeInvalidInput    = "invalid_input"
	codeNotFound        = "not_found"
	codeNotEnoughData   = "not_enough_data"
	codeNoTransactions  = "no_transactions"
	codeUpstream        = "advisor_failed"
	codeUnavailable     = "unavailable"
	codeUnauthenticated = "unauthenticated"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// fail maps a service error onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, r, http.StatusUnprocessableEntity, codeInvalidInput, validationMessage(err))
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, advisor.ErrNotEnoughData):
		writeError(w, r, http.StatusConflict, codeNotEnoughData, advisor.ErrNotEnoughData.Error())
	case errors.Is(err, export.ErrNoTransactions):
		writeError(w, r, http.StatusNotFound, codeNoTransactions, export.ErrNoTransactions.Error())
	case errors.Is(err, advisor.ErrUpstream), errors.Is(err, advisor.ErrMalformedResponse):
		logger.ErrorContext(ctx, "Advisor failed", log.FieldError, err)
		writeError(w, r, http.StatusBadGateway, codeUpstream, "could not get suggestions from the advisor, try again later")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required")
	default:
		logger.ErrorContext(ctx, "Request failed", log.FieldPath, r.URL.Path, log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// validationMessage strips the generic prefix so clients see the field error.
func validationMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, services.ErrInvalidInput.Error()+": "); ok {
		return rest
	}
	return msg
}

// decodeJSON reads one JSON document from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return nil
}

// sanitizeInput trims s and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// currentUser returns the user set by the auth middleware.
func currentUser(r *http.Request) *core.User {
	u, _ := auth.UserFrom(r.Context())
	return u
}
