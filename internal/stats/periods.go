package stats

import (
	"sort"
	"strings"

	"expensetracker/internal/core"
)

type Granularity string

const (
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// ParseGranularity maps unknown values to Monthly.
func ParseGranularity(s string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Weekly:
		return Weekly
	case Yearly:
		return Yearly
	default:
		return Monthly
	}
}

// PeriodKey buckets a date: ISO week "YYYY-Www", "YYYY-MM" or "YYYY".
// Keys of one granularity sort chronologically as strings.
func PeriodKey(d core.Date, g Granularity) string {
	switch g {
	case Weekly:
		return core.ISOWeekKey(d)
	case Yearly:
		return d.YearKey()
	default:
		return d.MonthKey()
	}
}

type PeriodRow struct {
	Period  string  `json:"period"`
	Total   float64 `json:"total"`
	Entries int     `json:"entries"`
}

type PeriodStats struct {
	Rows    []PeriodRow `json:"rows"`
	Best    *PeriodRow  `json:"best"`
	Average float64     `json:"average"`
}

// ComputePeriodStats groups entries by period. Rows are newest first; Best is
// the highest total, the earliest row in that order winning ties; Average is
// the mean row total, 0 when there are no rows.
func ComputePeriodStats(entries []Entry, g Granularity) PeriodStats {
	totals := make(map[string]*PeriodRow)
	for _, e := range entries {
		key := PeriodKey(e.Date, g)
		row, ok := totals[key]
		if !ok {
			row = &PeriodRow{Period: key}
			totals[key] = row
		}
		row.Total += e.BaseAmount
		row.Entries++
	}

	rows := make([]PeriodRow, 0, len(totals))
	for _, row := range totals {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Period > rows[j].Period })

	ps := PeriodStats{Rows: rows}
	if len(rows) == 0 {
		return ps
	}

	best := rows[0]
	sum := 0.0
	for _, row := range rows {
		if row.Total > best.Total {
			best = row
		}
		sum += row.Total
	}
	ps.Best = &best
	ps.Average = sum / float64(len(rows))
	return ps
}
