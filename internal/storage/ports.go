// Package storage defines the record store used by the expense tracker and
// the errors every adapter maps its driver errors onto.
package storage

import (
	"context"
	"errors"

	"expensetracker/internal/core"
)

// ConflictCode is the stable code reported for uniqueness violations. It is
// the PostgreSQL SQLSTATE for unique_violation, which every adapter reuses.
const ConflictCode = "23505"

var (
	// ErrConflict is returned when a (recurring rule, date) expense already exists.
	ErrConflict = errors.New("storage: unique constraint violation")
	ErrNotFound = errors.New("storage: record not found")
)

// ExpenseRepository persists expenses.
type ExpenseRepository interface {
	// InsertExpense stores e and returns it with ID and CreatedAt assigned.
	// A second expense with the same recurring rule and date fails with ErrConflict.
	InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	// DeleteExpensesByRule removes every expense generated from the rule and
	// returns how many were removed.
	DeleteExpensesByRule(ctx context.Context, ruleID string) (int, error)
	// ListExpenses returns all expenses ordered by date, then creation.
	ListExpenses(ctx context.Context) ([]core.Expense, error)
}

// RuleRepository persists recurring rules.
type RuleRepository interface {
	InsertRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
	UpdateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
	// AdvanceRule sets the next due date of a rule.
	AdvanceRule(ctx context.Context, id string, next core.Date) error
	DeleteRule(ctx context.Context, id string) error
	// ListRules returns all rules ordered by creation.
	ListRules(ctx context.Context) ([]core.RecurringRule, error)
}

// Store is the full record store.
type Store interface {
	ExpenseRepository
	RuleRepository
	Ping(ctx context.Context) error
	Close() error
}

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Code returns ConflictCode for conflicts and "" otherwise.
func Code(err error) string {
	if IsConflict(err) {
		return ConflictCode
	}
	return ""
}
