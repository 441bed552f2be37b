package stats

import "expensetracker/internal/core"

// Params selects what a dashboard shows.
type Params struct {
	Filter      Filter
	Base        core.Currency
	Granularity Granularity
}

// Dashboard is every aggregate computed over one filtered expense list.
type Dashboard struct {
	BaseCurrency    core.Currency   `json:"base_currency"`
	Granularity     Granularity     `json:"granularity"`
	Entries         []Entry         `json:"entries"`
	Summary         Summary         `json:"summary"`
	Periods         PeriodStats     `json:"periods"`
	Categories      []CategoryTotal `json:"categories"`
	Dates           []DateTotal     `json:"dates"`
	AvailableMonths []string        `json:"available_months"`
}

// Build filters expenses and computes the dashboard. Available months are
// taken from the unfiltered list so the month picker never shrinks.
func Build(expenses []core.Expense, p Params, catalog core.Catalog, today core.Date) Dashboard {
	base := catalog.NormalizeCurrency(p.Base)
	g := ParseGranularity(string(p.Granularity))
	entries := Normalize(p.Filter.Apply(expenses, catalog), catalog, base)

	return Dashboard{
		BaseCurrency:    base,
		Granularity:     g,
		Entries:         entries,
		Summary:         Summarize(entries, today),
		Periods:         ComputePeriodStats(entries, g),
		Categories:      CategorySeries(entries),
		Dates:           DateSeries(entries),
		AvailableMonths: AvailableMonths(expenses),
	}
}
