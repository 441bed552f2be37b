package http

import (
	"context"
	"net/http"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/stats"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.deps.Now().UTC().Format(time.RFC3339),
		"uptime":    s.deps.Now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store and reports cache and limiter state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["cache"] = map[string]any{
		"snapshot_entries":  s.snapshots.Size(),
		"dashboard_entries": s.dashboards.Size(),
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.activeClients()}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.deps.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

type sessionResponse struct {
	Materialized     services.MaterializeResult `json:"materialized"`
	MaterializeError string                     `json:"materialize_error,omitempty"`
	Expenses         int                        `json:"expenses"`
	Rules            int                        `json:"rules"`
	FetchedAt        time.Time                  `json:"fetched_at"`
}

// handleSession starts a session: materialize due rules and load a fresh
// snapshot. A materialization failure is reported but does not fail the call.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	snap, err := s.refresh(ctx, true)
	if err != nil {
		respondError(w, r, log.OpSync, err)
		return
	}
	resp := sessionResponse{
		Materialized: snap.Materialized,
		Expenses:     len(snap.Expenses),
		Rules:        len(snap.Rules),
		FetchedAt:    snap.FetchedAt,
	}
	if snap.MaterializeErr != nil {
		resp.MaterializeError = snap.MaterializeErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	snap, err := s.snapshot(ctx)
	if err != nil {
		respondError(w, r, log.OpList, err)
		return
	}

	params := parseDashboardParams(r.URL.Query(), s.deps.Catalog, s.deps.BaseCurrency)
	today := s.today()
	key := dashboardKey(params, today)
	d, ok := s.dashboards.Get(key)
	if !ok {
		d = roundDashboard(stats.Build(snap.Expenses, params, s.deps.Catalog, today))
		s.dashboards.Set(key, d)
	}
	writeJSON(w, http.StatusOK, d)
}

func dashboardKey(p stats.Params, today core.Date) string {
	return today.String() + "|" + string(p.Base) + "|" + string(p.Granularity) + "|" +
		string(p.Filter.Category) + "|" + p.Filter.Month + "|" + p.Filter.Query
}

type catalogResponse struct {
	Categories      []core.Category           `json:"categories"`
	Currencies      []core.Currency           `json:"currencies"`
	Frequencies     []core.Frequency          `json:"frequencies"`
	DefaultCurrency core.Currency             `json:"default_currency"`
	BaseCurrency    core.Currency             `json:"base_currency"`
	Rates           map[core.Currency]float64 `json:"rates"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	c := s.deps.Catalog
	writeJSON(w, http.StatusOK, catalogResponse{
		Categories:      c.Categories,
		Currencies:      c.Currencies,
		Frequencies:     core.Frequencies,
		DefaultCurrency: c.DefaultCurrency,
		BaseCurrency:    s.deps.BaseCurrency,
		Rates:           c.Rates,
	})
}
