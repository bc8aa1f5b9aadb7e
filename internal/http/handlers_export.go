package http

import (
	"bytes"
	"net/http"
	"strconv"

	"budgetwise/internal/core"
	"budgetwise/internal/export"
	"budgetwise/internal/log"
)

// handleExport renders every transaction of the user as a download.
// format=csv (default), txt for the summary, or pdf.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	u := currentUser(r)
	ctx := r.Context()
	txs, err := s.txs.List(ctx, u.UID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(txs) == 0 {
		s.fail(w, r, export.ErrNoTransactions)
		return
	}
	currency := core.DefaultCurrency
	if prefs, err := s.prefs.Get(ctx, u.UID); err == nil {
		currency = prefs.Currency
	}

	// Render fully before writing so failures still get a JSON error.
	var buf bytes.Buffer
	switch format {
	case export.FormatTXT:
		buf.WriteString(export.SummaryText(export.Summarize(txs), currency))
	case export.FormatPDF:
		owner := u.DisplayName
		if owner == "" {
			owner = u.Email
		}
		err = export.WritePDF(&buf, txs, export.Summarize(txs), currency, owner)
	default:
		err = export.WriteCSV(&buf, txs, currency)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	log.FromContext(ctx).WithComponent(log.ComponentExport).InfoContext(ctx, "Transactions exported",
		log.FieldOperation, log.OpExport,
		log.FieldUserID, u.UID,
		"format", string(format),
		log.FieldCount, len(txs))

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
