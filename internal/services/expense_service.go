package services

import (
	"context"
	"fmt"
	"log/slog"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// ExpenseService validates user edits before they reach the store and keeps
// recurring rules and their generated expenses consistent.
type ExpenseService struct {
	store        storage.Store
	catalog      core.Catalog
	materializer *Materializer
	events       EventPublisher
}

func NewExpenseService(store storage.Store, catalog core.Catalog, materializer *Materializer, events EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:        store,
		catalog:      catalog,
		materializer: materializer,
		events:       events,
	}
}

// CreateExpense stores a manual expense and publishes it.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e = e.Normalize(s.catalog)
	e.ID = ""
	e.RecurringRuleID = ""
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense created",
		"id", saved.ID,
		"date", saved.Date.String(),
		"category", string(saved.Category),
		"amount", saved.Amount,
		"currency", string(saved.Currency))

	if s.events != nil {
		if err := s.events.PublishExpenseCreated(ctx, saved); err != nil {
			// The expense is stored; export catches up on the next event.
			slog.ErrorContext(ctx, "Failed to publish expense event", "id", saved.ID, "error", err)
		}
	}
	return saved, nil
}

func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		return core.Expense{}, &core.ValidationError{Field: "id", Err: core.ErrMissingID}
	}
	e = e.Normalize(s.catalog)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	saved, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return saved, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// CreateRule stores a recurring rule and immediately materializes everything
// that is due. A materialization failure is returned alongside the stored rule.
func (s *ExpenseService) CreateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, MaterializeResult, error) {
	r = r.Normalize(s.catalog)
	r.ID = ""
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, MaterializeResult{}, err
	}

	saved, err := s.store.InsertRule(ctx, r)
	if err != nil {
		return core.RecurringRule{}, MaterializeResult{}, fmt.Errorf("save recurring rule: %w", err)
	}
	slog.InfoContext(ctx, "Recurring rule created",
		"id", saved.ID,
		"name", saved.Name,
		"frequency", string(saved.Frequency),
		"next_due_date", saved.NextDueDate.String())

	if s.materializer == nil {
		return saved, MaterializeResult{}, nil
	}
	res, err := s.materializer.Run(ctx)
	if err != nil {
		return saved, res, fmt.Errorf("materialize after rule creation: %w", err)
	}
	return saved, res, nil
}

func (s *ExpenseService) UpdateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if r.ID == "" {
		return core.RecurringRule{}, &core.ValidationError{Field: "id", Err: core.ErrMissingID}
	}
	r = r.Normalize(s.catalog)
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	saved, err := s.store.UpdateRule(ctx, r)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("update recurring rule: %w", err)
	}
	return saved, nil
}

// DeleteRule removes every expense generated from the rule, then the rule.
func (s *ExpenseService) DeleteRule(ctx context.Context, id string) error {
	n, err := s.store.DeleteExpensesByRule(ctx, id)
	if err != nil {
		return fmt.Errorf("delete generated expenses: %w", err)
	}
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	slog.InfoContext(ctx, "Recurring rule deleted", "id", id, "expenses_removed", n)
	return nil
}
