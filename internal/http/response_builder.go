package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/stats"
	"expensetracker/internal/storage"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg, field string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code, Field: field, RequestID: w.Header().Get(log.RequestIDHeader)})
}

// errorStatus maps service errors onto HTTP statuses.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "bad_request"
	case core.IsValidation(err), errors.Is(err, core.ErrMissingID):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "store_unavailable"
	}
}

// respondError logs and writes err. Server side failures are logged at
// error level; client mistakes at debug.
func respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := errorStatus(err)
	ctx := r.Context()
	logger := log.FromContext(ctx)

	field := ""
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		field = ve.Field
	}

	msg := err.Error()
	if status >= 500 {
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, op, nil)
		msg = http.StatusText(status)
	} else {
		logger.DebugContext(ctx, "Request rejected", log.FieldOperation, op, log.FieldError, err.Error())
	}
	writeError(w, status, code, msg, field)
}

func round(f float64) float64 { return core.RoundAmount(f) }

func roundEntries(in []stats.Entry) []stats.Entry {
	out := make([]stats.Entry, len(in))
	for i, e := range in {
		e.BaseAmount = round(e.BaseAmount)
		out[i] = e
	}
	return out
}

func roundRow(row stats.PeriodRow) stats.PeriodRow {
	row.Total = round(row.Total)
	return row
}

// roundDashboard rounds every derived money value to two places for display.
// Raw amounts on entries are left as stored.
func roundDashboard(d stats.Dashboard) stats.Dashboard {
	d.Entries = roundEntries(d.Entries)
	d.Summary.Total = round(d.Summary.Total)
	d.Summary.CurrentMonthTotal = round(d.Summary.CurrentMonthTotal)

	rows := make([]stats.PeriodRow, len(d.Periods.Rows))
	for i, row := range d.Periods.Rows {
		rows[i] = roundRow(row)
	}
	d.Periods.Rows = rows
	if d.Periods.Best != nil {
		best := roundRow(*d.Periods.Best)
		d.Periods.Best = &best
	}
	d.Periods.Average = round(d.Periods.Average)

	cats := make([]stats.CategoryTotal, len(d.Categories))
	for i, c := range d.Categories {
		c.Total = round(c.Total)
		cats[i] = c
	}
	d.Categories = cats

	dates := make([]stats.DateTotal, len(d.Dates))
	for i, dt := range d.Dates {
		dt.Total = round(dt.Total)
		dates[i] = dt
	}
	d.Dates = dates
	return d
}
