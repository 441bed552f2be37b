package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	store *memory.Store
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	store := memory.New()
	catalog := core.DefaultCatalog()
	clock := func() time.Time { return fixedNow }
	mat := services.NewMaterializer(store, catalog, services.WithClock(clock))

	deps := Deps{
		Expenses:     services.NewExpenseService(store, catalog, mat, nil),
		Sync:         services.NewSyncService(store, mat),
		Store:        store,
		Catalog:      catalog,
		BaseCurrency: core.USD,
		SnapshotTTL:  time.Minute,
		Logger:       log.New(log.Config{Level: slog.LevelError + 4, Output: io.Discard}),
		Now:          clock,
	}
	for _, m := range mutate {
		m(&deps)
	}
	return &testEnv{srv: NewServer(":0", deps), store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(log.RequestIDHeader))

	rec = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", body["status"])
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStoreFailure(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Store = downStore{} })
	rec := env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestCreateExpense(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/expenses",
		`{"expense_date":"2024-03-01","category":"Food","amount":"12,50","currency":"eur","description":"  Pizza "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	saved := decode[core.Expense](t, rec)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 12.5, saved.Amount)
	assert.Equal(t, core.EUR, saved.Currency)
	assert.Equal(t, "Pizza", saved.Description)

	list, err := env.store.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateExpenseValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"bad json", `{"amount":`, http.StatusBadRequest, ""},
		{"unknown field", `{"expense_date":"2024-03-01","amount":1,"owner":"x"}`, http.StatusBadRequest, ""},
		{"missing date", `{"amount":1}`, http.StatusUnprocessableEntity, "expense_date"},
		{"zero amount", `{"expense_date":"2024-03-01","amount":0}`, http.StatusUnprocessableEntity, "amount"},
		{"negative amount", `{"expense_date":"2024-03-01","amount":"-3"}`, http.StatusUnprocessableEntity, "amount"},
		{"description too long", `{"expense_date":"2024-03-01","amount":1,"description":"` + strings.Repeat("x", 201) + `"}`, http.StatusUnprocessableEntity, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/expenses", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[errorBody](t, rec)
			assert.Equal(t, tt.field, body.Field)
		})
	}

	list, _ := env.store.ListExpenses(context.Background())
	assert.Empty(t, list, "rejected input never reaches the store")
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/expenses", `{"expense_date":"2024-03-01","amount":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[core.Expense](t, rec).ID

	rec = env.do(t, http.MethodPut, "/api/expenses/"+id, `{"expense_date":"2024-03-02","amount":7,"category":"Transport"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[core.Expense](t, rec)
	assert.Equal(t, 7.0, updated.Amount)
	assert.Equal(t, core.Transport, updated.Category)

	rec = env.do(t, http.MethodPut, "/api/expenses/missing", `{"expense_date":"2024-03-02","amount":7}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/expenses/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/expenses/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRuleMaterializesAndShowsOnDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/recurring",
		`{"name":"Rent","category":"Other","amount":100,"currency":"EUR","frequency":"monthly","next_due_date":"2024-01-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ruleCreatedResponse](t, rec)
	assert.Equal(t, 2, created.Materialized.Created, "Jan 31 and Feb 29 are due on Mar 15")
	assert.Equal(t, "2024-01-31", created.Rule.NextDueDate.String(), "returned rule is as inserted")
	assert.Empty(t, created.MaterializeError)

	rec = env.do(t, http.MethodGet, "/api/dashboard?granularity=monthly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dash struct {
		BaseCurrency string `json:"base_currency"`
		Summary      struct {
			Total   float64 `json:"total"`
			Entries int     `json:"entries"`
		} `json:"summary"`
		Periods struct {
			Rows []struct {
				Period string `json:"period"`
			} `json:"rows"`
		} `json:"periods"`
		AvailableMonths []string `json:"available_months"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, "USD", dash.BaseCurrency)
	assert.Equal(t, 2, dash.Summary.Entries)
	assert.Equal(t, 216.0, dash.Summary.Total)
	require.Len(t, dash.Periods.Rows, 2)
	assert.Equal(t, "2024-02", dash.Periods.Rows[0].Period)
	assert.Equal(t, []string{"2024-02", "2024-01"}, dash.AvailableMonths)

	rec = env.do(t, http.MethodGet, "/api/recurring?base=eur", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rules := decode[ruleListResponse](t, rec)
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, core.EUR, rules.BaseCurrency)
	assert.Equal(t, 100.0, rules.Rules[0].BaseAmount)
	assert.Equal(t, "2024-03-29", rules.Rules[0].NextDueDate.String(), "day clamps to Feb 29 and stays there")
}

func TestCreateRuleValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/recurring", `{"name":"  ","amount":1,"next_due_date":"2024-01-01"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "name", decode[errorBody](t, rec).Field)

	rec = env.do(t, http.MethodPost, "/api/recurring", `{"name":"x","amount":1,"next_due_date":"2024-02-30"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "next_due_date", decode[errorBody](t, rec).Field)
}

func TestDeleteRuleRemovesGeneratedExpenses(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/recurring",
		`{"name":"Gym","amount":10,"frequency":"weekly","next_due_date":"2024-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[ruleCreatedResponse](t, rec).Rule.ID

	rec = env.do(t, http.MethodPost, "/api/expenses", `{"expense_date":"2024-03-01","amount":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/recurring/"+id, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	list, err := env.store.ListExpenses(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRecurring())
}

func TestUpdateRule(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/recurring",
		`{"name":"Netflix","amount":10,"frequency":"monthly","next_due_date":"2024-05-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[ruleCreatedResponse](t, rec).Rule.ID

	rec = env.do(t, http.MethodPut, "/api/recurring/"+id,
		`{"name":"Netflix 4K","amount":"15.99","frequency":"yearly","next_due_date":"2024-06-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[core.RecurringRule](t, rec)
	assert.Equal(t, "Netflix 4K", got.Name)
	assert.Equal(t, core.Yearly, got.Frequency)
	assert.Equal(t, 15.99, got.Amount)
}

func TestSessionReportsMaterialization(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.InsertRule(context.Background(), core.RecurringRule{
		Name: "Phone", Category: core.Other, Amount: 20, Currency: core.MKD,
		Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 3, 15),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[sessionResponse](t, rec)
	assert.Equal(t, 1, resp.Materialized.Created)
	assert.Equal(t, 1, resp.Expenses)
	assert.Equal(t, 1, resp.Rules)

	rec = env.do(t, http.MethodPost, "/api/session", "")
	resp = decode[sessionResponse](t, rec)
	assert.Zero(t, resp.Materialized.Created, "second session finds nothing due")
}

func TestReadOnCacheMissMaterializes(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.InsertRule(context.Background(), core.RecurringRule{
		Name: "Water", Category: core.Other, Amount: 15, Currency: core.USD,
		Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[expenseListResponse](t, rec).Entries, 1)

	env.srv.invalidate()
	rec = env.do(t, http.MethodGet, "/api/expenses", "")
	assert.Len(t, decode[expenseListResponse](t, rec).Entries, 1, "a second pass adds nothing")
}

func TestListExpensesFilters(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{
		`{"expense_date":"2024-01-10","category":"Food","amount":10,"currency":"USD","description":"Groceries"}`,
		`{"expense_date":"2024-02-10","category":"Transport","amount":1000,"currency":"MKD","description":"Bus pass"}`,
		`{"expense_date":"2024-02-11","category":"Food","amount":3,"currency":"EUR","description":"Coffee"}`,
	} {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/expenses", body).Code)
	}

	rec := env.do(t, http.MethodGet, "/api/expenses?category=Food&month=2024-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[expenseListResponse](t, rec)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Coffee", resp.Entries[0].Description)
	assert.Equal(t, 3.24, resp.Entries[0].BaseAmount)
	assert.Equal(t, []string{"2024-02", "2024-01"}, resp.AvailableMonths)

	rec = env.do(t, http.MethodGet, "/api/expenses?q=mkd&base=mkd", "")
	resp = decode[expenseListResponse](t, rec)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, core.MKD, resp.BaseCurrency)
	assert.Equal(t, 1000.0, resp.Entries[0].BaseAmount)

	rec = env.do(t, http.MethodGet, "/api/expenses?category=Unknown&month=bogus", "")
	assert.Len(t, decode[expenseListResponse](t, rec).Entries, 3, "unknown filters are ignored")
}

func TestWritesInvalidateCachedSnapshot(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.srv.snapshots.Size())

	_, err := env.store.InsertExpense(context.Background(), core.Expense{Date: core.NewDate(2024, 3, 1), Amount: 1, Currency: core.USD, Category: core.Food})
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/expenses", "")
	assert.Empty(t, decode[expenseListResponse](t, rec).Entries, "served from cached snapshot")

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/expenses", `{"expense_date":"2024-03-02","amount":2}`).Code)
	rec = env.do(t, http.MethodGet, "/api/expenses", "")
	assert.Len(t, decode[expenseListResponse](t, rec).Entries, 2)
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[catalogResponse](t, rec)
	assert.Equal(t, []core.Category{core.Food, core.Transport, core.Other}, c.Categories)
	assert.Equal(t, core.MKD, c.DefaultCurrency)
	assert.Equal(t, core.USD, c.BaseCurrency)
	assert.Len(t, c.Frequencies, 3)
}

func TestWriteRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.WriteLimit = 2 })
	body := `{"expense_date":"2024-03-01","amount":1}`
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/expenses", body).Code)
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/expenses", body).Code)
	rec := env.do(t, http.MethodPost, "/api/expenses", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/expenses", "").Code, "reads are not limited")
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPatch, "/api/expenses", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
