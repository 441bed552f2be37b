package stats

import (
	"strings"

	"expensetracker/internal/core"
)

// Entry is an expense with its amount expressed in the base currency.
type Entry struct {
	core.Expense
	OriginalAmount float64 `json:"original_amount"`
	BaseAmount     float64 `json:"base_amount"`
}

// Normalize converts every expense into base, normalizing unknown currencies
// to the catalog default first.
func Normalize(expenses []core.Expense, catalog core.Catalog, base core.Currency) []Entry {
	base = catalog.NormalizeCurrency(base)
	out := make([]Entry, len(expenses))
	for i, e := range expenses {
		e.Currency = catalog.NormalizeCurrency(e.Currency)
		out[i] = Entry{
			Expense:        e,
			OriginalAmount: e.Amount,
			BaseAmount:     catalog.Convert(e.Amount, e.Currency, base),
		}
	}
	return out
}

type Summary struct {
	Total             float64 `json:"total"`
	CurrentMonthTotal float64 `json:"current_month_total"`
	Entries           int     `json:"entries"`
}

// Summarize totals the entries and the part of them dated in today's month.
func Summarize(entries []Entry, today core.Date) Summary {
	month := today.MonthKey()
	s := Summary{Entries: len(entries)}
	for _, e := range entries {
		s.Total += e.BaseAmount
		if strings.HasPrefix(e.Date.String(), month) {
			s.CurrentMonthTotal += e.BaseAmount
		}
	}
	return s
}

// RuleEntry is a recurring rule with its amount in the base currency.
type RuleEntry struct {
	core.RecurringRule
	BaseAmount float64 `json:"base_amount"`
}

func RuleEntries(rules []core.RecurringRule, catalog core.Catalog, base core.Currency) []RuleEntry {
	base = catalog.NormalizeCurrency(base)
	out := make([]RuleEntry, len(rules))
	for i, r := range rules {
		r.Currency = catalog.NormalizeCurrency(r.Currency)
		r.Frequency = core.NormalizeFrequency(r.Frequency)
		out[i] = RuleEntry{
			RecurringRule: r,
			BaseAmount:    catalog.Convert(r.Amount, r.Currency, base),
		}
	}
	return out
}
