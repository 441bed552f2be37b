package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength        = 80
	MaxDescriptionLength = 200

	// RecurringPrefix is prepended to a rule name to describe generated expenses.
	RecurringPrefix = "Recurring: "
)

type (
	Expense struct {
		ID              string    `json:"id"`
		Date            Date      `json:"expense_date"`
		Category        Category  `json:"category"`
		Amount          float64   `json:"amount"`
		Currency        Currency  `json:"currency"`
		Description     string    `json:"description"`
		RecurringRuleID string    `json:"recurring_expense_id,omitempty"`
		CreatedAt       time.Time `json:"created_at"`
	}

	RecurringRule struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Category    Category  `json:"category"`
		Amount      float64   `json:"amount"`
		Currency    Currency  `json:"currency"`
		Frequency   Frequency `json:"frequency"`
		NextDueDate Date      `json:"next_due_date"`
		CreatedAt   time.Time `json:"created_at"`
	}
)

// IsRecurring reports whether the expense was generated from a rule.
func (e Expense) IsRecurring() bool {
	return e.RecurringRuleID != ""
}

// Validate checks the user supplied fields of an expense.
func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return &ValidationError{Field: "expense_date", Err: ErrInvalidDate}
	}
	if err := validateAmount(e.Amount); err != nil {
		return err
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}
	return nil
}

// Normalize trims free text and maps unknown enums to catalog defaults.
func (e Expense) Normalize(c Catalog) Expense {
	e.Description = strings.TrimSpace(e.Description)
	e.Category = c.NormalizeCategory(e.Category)
	e.Currency = c.NormalizeCurrency(e.Currency)
	return e
}

// Validate checks the user supplied fields of a rule.
func (r RecurringRule) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return &ValidationError{Field: "name", Err: ErrEmptyName}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return &ValidationError{Field: "name", Err: ErrNameTooLong}
	}
	if err := validateAmount(r.Amount); err != nil {
		return err
	}
	if r.NextDueDate.IsZero() {
		return &ValidationError{Field: "next_due_date", Err: ErrInvalidDate}
	}
	return nil
}

func (r RecurringRule) Normalize(c Catalog) RecurringRule {
	r.Name = strings.TrimSpace(r.Name)
	r.Category = c.NormalizeCategory(r.Category)
	r.Currency = c.NormalizeCurrency(r.Currency)
	r.Frequency = NormalizeFrequency(r.Frequency)
	return r
}

// Occurrence builds the expense generated by the rule on date d.
func (r RecurringRule) Occurrence(d Date) Expense {
	return Expense{
		Date:            d,
		Category:        r.Category,
		Amount:          r.Amount,
		Currency:        r.Currency,
		Description:     RecurringPrefix + r.Name,
		RecurringRuleID: r.ID,
	}
}
