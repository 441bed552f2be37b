package http

import (
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/stats"
)

type expenseListResponse struct {
	BaseCurrency    core.Currency `json:"base_currency"`
	Entries         []stats.Entry `json:"entries"`
	AvailableMonths []string      `json:"available_months"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	snap, err := s.snapshot(ctx)
	if err != nil {
		respondError(w, r, log.OpList, err)
		return
	}

	q := r.URL.Query()
	base := parseBase(q, s.deps.Catalog, s.deps.BaseCurrency)
	filtered := parseFilter(q, s.deps.Catalog).Apply(snap.Expenses, s.deps.Catalog)
	writeJSON(w, http.StatusOK, expenseListResponse{
		BaseCurrency:    base,
		Entries:         roundEntries(stats.Normalize(filtered, s.deps.Catalog, base)),
		AvailableMonths: stats.AvailableMonths(snap.Expenses),
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, log.OpCreate, err)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		respondError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()
	saved, err := s.deps.Expenses.CreateExpense(ctx, e)
	if err != nil {
		respondError(w, r, log.OpCreate, err)
		return
	}
	s.invalidate()
	log.NewStructuredLogger(log.FromContext(ctx)).LogExpenseCreated(ctx, saved)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, log.OpUpdate, err)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		respondError(w, r, log.OpUpdate, err)
		return
	}
	e.ID = pathID(r)

	ctx, cancel := withTimeout(r)
	defer cancel()
	saved, err := s.deps.Expenses.UpdateExpense(ctx, e)
	if err != nil {
		respondError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := s.deps.Expenses.DeleteExpense(ctx, pathID(r)); err != nil {
		respondError(w, r, log.OpDelete, err)
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}
