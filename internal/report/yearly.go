package report

import (
	"sort"
	"time"

	"tutordash/internal/core"
)

// YearSummary aggregates the completed sessions of one calendar year.
// Monthly averages always divide by twelve, also for the running year, so
// they compare like for like with the previous year only once it is over.
type YearSummary struct {
	Year             int     `json:"year"`
	TotalIncome      float64 `json:"total_income"`
	TotalHours       float64 `json:"total_hours"`
	NumStudents      int     `json:"num_students"`
	Sessions         int     `json:"sessions"`
	AvgMonthlyIncome float64 `json:"avg_monthly_income"`
	AvgMonthlyHours  float64 `json:"avg_monthly_hours"`
	AvgHourlyWage    float64 `json:"avg_hourly_wage"`
	YoYIncomePct     float64 `json:"yoy_income_pct"`
	YoYHoursPct      float64 `json:"yoy_hours_pct"`
}

type yearAcc struct {
	income   int64
	hours    float64
	sessions int
	students map[string]struct{}
}

// YearlySummary returns one row per year with completed sessions, ascending.
// The year-over-year percentages compare against the previous row and are 0
// for the first row or when the previous value is 0.
func YearlySummary(sessions []core.Session, now time.Time) []YearSummary {
	acc := map[int]*yearAcc{}
	for _, s := range sessions {
		if s.IsPlanned(now) {
			continue
		}
		a, ok := acc[s.Date.Year()]
		if !ok {
			a = &yearAcc{students: map[string]struct{}{}}
			acc[s.Date.Year()] = a
		}
		a.income += s.Pay.Cents
		a.hours += s.Hours
		a.sessions++
		a.students[s.StudentName] = struct{}{}
	}

	years := make([]int, 0, len(acc))
	for y := range acc {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]YearSummary, 0, len(years))
	for i, y := range years {
		a := acc[y]
		row := YearSummary{
			Year:        y,
			TotalIncome: euros(a.income),
			TotalHours:  finite(a.hours),
			NumStudents: len(a.students),
			Sessions:    a.sessions,
		}
		row.AvgMonthlyIncome = round2(row.TotalIncome / 12)
		row.AvgMonthlyHours = round2(row.TotalHours / 12)
		row.AvgHourlyWage = round2(ratio(row.TotalIncome, row.TotalHours))
		if i > 0 {
			prev := out[i-1]
			row.YoYIncomePct = pctChange(prev.TotalIncome, row.TotalIncome)
			row.YoYHoursPct = pctChange(prev.TotalHours, row.TotalHours)
		}
		out = append(out, row)
	}
	return out
}

// pctChange compares totals; the ratio of monthly averages is the same.
func pctChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return round2((cur - prev) / prev * 100)
}
