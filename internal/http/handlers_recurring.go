package http

import (
	"net/http"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/stats"
)

type ruleListResponse struct {
	BaseCurrency core.Currency     `json:"base_currency"`
	Rules        []stats.RuleEntry `json:"rules"`
}

type ruleCreatedResponse struct {
	Rule             core.RecurringRule         `json:"rule"`
	Materialized     services.MaterializeResult `json:"materialized"`
	MaterializeError string                     `json:"materialize_error,omitempty"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	snap, err := s.snapshot(ctx)
	if err != nil {
		respondError(w, r, log.OpList, err)
		return
	}
	base := parseBase(r.URL.Query(), s.deps.Catalog, s.deps.BaseCurrency)
	entries := stats.RuleEntries(snap.Rules, s.deps.Catalog, base)
	for i := range entries {
		entries[i].BaseAmount = round(entries[i].BaseAmount)
	}
	writeJSON(w, http.StatusOK, ruleListResponse{BaseCurrency: base, Rules: entries})
}

// handleCreateRule stores the rule and materializes what is already due. If
// the rule was saved but materialization failed the rule is still returned
// with the failure reported; the next session retries it.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, log.OpCreate, err)
		return
	}
	rule, err := req.toRule()
	if err != nil {
		respondError(w, r, log.OpCreate, err)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()
	saved, result, err := s.deps.Expenses.CreateRule(ctx, rule)
	if err != nil && saved.ID == "" {
		respondError(w, r, log.OpCreate, err)
		return
	}
	s.invalidate()

	resp := ruleCreatedResponse{Rule: saved, Materialized: result}
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Rule saved but materialization failed",
			log.NewFields().WithRule(saved).WithError(err).ToSlice()...)
		resp.MaterializeError = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, log.OpUpdate, err)
		return
	}
	rule, err := req.toRule()
	if err != nil {
		respondError(w, r, log.OpUpdate, err)
		return
	}
	rule.ID = pathID(r)

	ctx, cancel := withTimeout(r)
	defer cancel()
	saved, err := s.deps.Expenses.UpdateRule(ctx, rule)
	if err != nil {
		respondError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := s.deps.Expenses.DeleteRule(ctx, pathID(r)); err != nil {
		respondError(w, r, log.OpDelete, err)
		return
	}
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}
