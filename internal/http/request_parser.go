package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/stats"
)

const maxBodyBytes = 64 << 10

var errBadJSON = errors.New("invalid JSON body")

// decodeJSON reads one JSON object from the body, rejecting unknown fields
// and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errBadJSON)
	}
	return nil
}

// amountField accepts 12.5, "12.5" and "12,50".
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	if string(b) == "null" {
		*a = ""
		return nil
	}
	*a = amountField(b)
	return nil
}

type expenseRequest struct {
	ExpenseDate string      `json:"expense_date"`
	Category    string      `json:"category"`
	Amount      amountField `json:"amount"`
	Currency    string      `json:"currency"`
	Description string      `json:"description"`
}

func (req expenseRequest) toExpense() (core.Expense, error) {
	date, err := core.ParseDate(req.ExpenseDate)
	if err != nil {
		return core.Expense{}, &core.ValidationError{Field: "expense_date", Err: err}
	}
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		Date:        date,
		Category:    core.Category(sanitizeInput(req.Category)),
		Amount:      amount,
		Currency:    core.Currency(sanitizeInput(req.Currency)),
		Description: sanitizeInput(req.Description),
	}, nil
}

type ruleRequest struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Amount      amountField `json:"amount"`
	Currency    string      `json:"currency"`
	Frequency   string      `json:"frequency"`
	NextDueDate string      `json:"next_due_date"`
}

func (req ruleRequest) toRule() (core.RecurringRule, error) {
	due, err := core.ParseDate(req.NextDueDate)
	if err != nil {
		return core.RecurringRule{}, &core.ValidationError{Field: "next_due_date", Err: err}
	}
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.RecurringRule{}, err
	}
	return core.RecurringRule{
		Name:        sanitizeInput(req.Name),
		Category:    core.Category(sanitizeInput(req.Category)),
		Amount:      amount,
		Currency:    core.Currency(sanitizeInput(req.Currency)),
		Frequency:   core.Frequency(sanitizeInput(req.Frequency)),
		NextDueDate: due,
	}, nil
}

// parseFilter reads category, month and q. An unknown category or a
// malformed month is ignored rather than matching nothing.
func parseFilter(q url.Values, catalog core.Catalog) stats.Filter {
	f := stats.Filter{Query: sanitizeInput(q.Get("q"))}
	if c := core.Category(sanitizeInput(q.Get("category"))); c != "" && catalog.HasCategory(c) {
		f.Category = c
	}
	if m := strings.TrimSpace(q.Get("month")); m != "" {
		if _, err := core.ParseDate(m + "-01"); err == nil {
			f.Month = m
		}
	}
	return f
}

// parseBase returns the base currency from ?base, or def.
func parseBase(q url.Values, catalog core.Catalog, def core.Currency) core.Currency {
	if b := core.Currency(strings.ToUpper(strings.TrimSpace(q.Get("base")))); catalog.HasCurrency(b) {
		return b
	}
	return def
}

func parseDashboardParams(q url.Values, catalog core.Catalog, def core.Currency) stats.Params {
	return stats.Params{
		Filter:      parseFilter(q, catalog),
		Base:        parseBase(q, catalog, def),
		Granularity: stats.ParseGranularity(q.Get("granularity")),
	}
}
