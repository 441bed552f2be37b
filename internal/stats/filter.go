// Package stats derives summaries, period statistics and chart series from a
// list of expenses. Every function is pure; callers pass the data and "today".
package stats

import (
	"sort"
	"strings"

	"expensetracker/internal/core"
)

// Filter narrows a list of expenses. Empty fields match everything; set
// fields are AND-combined.
type Filter struct {
	Category core.Category // exact match
	Month    string        // date prefix, usually YYYY-MM
	Query    string        // case-insensitive substring over category, description, date and currency
}

// Apply returns the expenses matching f, preserving input order.
func (f Filter) Apply(expenses []core.Expense, catalog core.Catalog) []core.Expense {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Month != "" && !strings.HasPrefix(e.Date.String(), f.Month) {
			continue
		}
		if query != "" && !strings.Contains(searchText(e, catalog), query) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func searchText(e core.Expense, catalog core.Catalog) string {
	return strings.ToLower(strings.Join([]string{
		string(e.Category),
		e.Description,
		e.Date.String(),
		string(catalog.NormalizeCurrency(e.Currency)),
	}, " "))
}

// AvailableMonths lists the distinct YYYY-MM of all expenses, newest first.
func AvailableMonths(expenses []core.Expense) []string {
	seen := make(map[string]struct{})
	months := make([]string, 0)
	for _, e := range expenses {
		key := e.Date.MonthKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		months = append(months, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}
