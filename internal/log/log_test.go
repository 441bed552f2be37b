package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: "test", Format: "json", Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerStampsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf).WithComponent(ComponentMaterializer)
	l.Info("hello", FieldRuleID, "r1")

	assert.Equal(t, 1, strings.Count(buf.String(), `"component"`))
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, ComponentMaterializer, lines[0]["component"])
	assert.Equal(t, "r1", lines[0]["rule_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})
	l.Info("dropped")
	l.Warn("kept")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.Equal(t, ComponentApp, lines[0]["component"])
}

func TestFieldsWithExpense(t *testing.T) {
	e := core.Expense{ID: "e1", RecurringRuleID: "r1", Date: core.NewDate(2024, 5, 1), Category: core.Food, Amount: 12.5, Currency: core.EUR}
	f := NewFields().WithExpense(e).WithError(errors.New("boom")).WithError(nil)
	assert.Equal(t, "e1", f[FieldExpenseID])
	assert.Equal(t, "r1", f[FieldRuleID])
	assert.Equal(t, "2024-05-01", f[FieldDate])
	assert.Equal(t, "boom", f[FieldError])

	s := f.ToSlice()
	require.Len(t, s, len(f)*2)
	assert.Equal(t, FieldAmount, s[0], "keys are sorted")
}

func TestFieldsWithRule(t *testing.T) {
	r := core.RecurringRule{ID: "r-1", Frequency: core.Weekly, NextDueDate: core.NewDate(2024, 5, 15)}
	f := NewFields().WithRule(r)
	assert.Equal(t, "r-1", f[FieldRuleID])
	assert.Equal(t, "weekly", f[FieldFrequency])
	assert.Equal(t, "2024-05-15", f[FieldDueDate])
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestAccessLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)
	h := Middleware(logger)(RequestIDMiddleware()(AccessLogMiddleware()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))))

	req := httptest.NewRequest(http.MethodGet, "/api/expenses?month=2024-01", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, ComponentHTTP, lines[0]["component"])
	assert.Equal(t, float64(404), lines[0]["status_code"])
	assert.Equal(t, "10.0.0.1", lines[0]["client_ip"])
	assert.Equal(t, "month=2024-01", lines[0]["query"])
	assert.NotEmpty(t, lines[0]["request_id"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	l := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())
}
