package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/stats"
	"expensetracker/internal/storage"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bad json", fmt.Errorf("%w: eof", errBadJSON), http.StatusBadRequest, "bad_request"},
		{"validation", &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, http.StatusUnprocessableEntity, "validation_failed"},
		{"missing id", core.ErrMissingID, http.StatusUnprocessableEntity, "validation_failed"},
		{"not found", fmt.Errorf("update: %w", storage.ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", storage.ErrConflict, http.StatusConflict, "conflict"},
		{"timeout", fmt.Errorf("list: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("connection reset"), http.StatusBadGateway, "store_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRespondErrorHidesServerDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-1")
	respondError(rec, httptest.NewRequest("GET", "/", nil), "list", errors.New("dial tcp 10.0.0.5:5432: refused"))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Bad Gateway", body.Error)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestRespondErrorValidationField(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("create: %w", &core.ValidationError{Field: "description", Err: core.ErrDescriptionTooLong})
	respondError(rec, httptest.NewRequest("POST", "/", nil), "create", err)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "description", body.Field)
	assert.Equal(t, "validation_failed", body.Code)
}

func TestRoundDashboard(t *testing.T) {
	best := stats.PeriodRow{Period: "2024-01", Total: 10.005}
	d := roundDashboard(stats.Dashboard{
		Entries: []stats.Entry{{BaseAmount: 1.234, OriginalAmount: 1.2345}},
		Summary: stats.Summary{Total: 3.14159, CurrentMonthTotal: 2.718},
		Periods: stats.PeriodStats{
			Rows:    []stats.PeriodRow{best},
			Best:    &best,
			Average: 1.005,
		},
		Categories: []stats.CategoryTotal{{Category: core.Food, Total: 0.125}},
		Dates:      []stats.DateTotal{{Date: "2024-01-01", Total: 9.999}},
	})

	assert.Equal(t, 1.23, d.Entries[0].BaseAmount)
	assert.Equal(t, 1.2345, d.Entries[0].OriginalAmount)
	assert.Equal(t, 3.14, d.Summary.Total)
	assert.Equal(t, 2.72, d.Summary.CurrentMonthTotal)
	assert.Equal(t, 10.01, d.Periods.Rows[0].Total)
	assert.Equal(t, 10.01, d.Periods.Best.Total)
	assert.Equal(t, 10.005, best.Total, "input is not mutated")
	assert.Equal(t, 0.13, d.Categories[0].Total)
	assert.Equal(t, 10.0, d.Dates[0].Total)
}
