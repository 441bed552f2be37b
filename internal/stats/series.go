package stats

import (
	"sort"

	"expensetracker/internal/core"
)

type CategoryTotal struct {
	Category core.Category `json:"name"`
	Total    float64       `json:"total"`
}

type DateTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// CategorySeries totals entries per category in order of first appearance.
func CategorySeries(entries []Entry) []CategoryTotal {
	index := make(map[core.Category]int)
	out := make([]CategoryTotal, 0)
	for _, e := range entries {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryTotal{Category: e.Category})
		}
		out[i].Total += e.BaseAmount
	}
	return out
}

// DateSeries totals entries per day, oldest first.
func DateSeries(entries []Entry) []DateTotal {
	totals := make(map[string]float64)
	for _, e := range entries {
		totals[e.Date.String()] += e.BaseAmount
	}
	out := make([]DateTotal, 0, len(totals))
	for d, t := range totals {
		out = append(out, DateTotal{Date: d, Total: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
