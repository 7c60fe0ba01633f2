// Package report is the aggregation engine: pure functions from a session
// set and a pinned "now" to the views the dashboard renders.
package report

import (
	"math"
	"time"

	"tutordash/internal/core"
)

// KPIs is the headline metric set.
type KPIs struct {
	TotalRevenue      float64 `json:"total_revenue"`
	TotalHours        float64 `json:"total_hours"`
	AvgHourlyRate     float64 `json:"avg_hourly_rate"`
	UniqueStudents    int     `json:"unique_students"`
	TotalSessions     int     `json:"total_sessions"`
	AvgSessionLength  float64 `json:"avg_session_length"`
	ThisMonthRevenue  float64 `json:"this_month_revenue"`
	ThisMonthHours    float64 `json:"this_month_hours"`
	ProspectiveIncome float64 `json:"prospective_income"`
	UpcomingSessions  int     `json:"upcoming_sessions"`
}

// ComputeKPIs aggregates the completed sessions of filtered. The this-month
// figures and the planned pipeline are taken from all, so they do not depend
// on the range the caller selected.
func ComputeKPIs(filtered, all []core.Session, now time.Time) KPIs {
	var (
		k        KPIs
		revenue  int64
		students = map[string]struct{}{}
	)
	for _, s := range filtered {
		if s.IsPlanned(now) {
			continue
		}
		revenue += s.Pay.Cents
		k.TotalHours += s.Hours
		k.TotalSessions++
		students[s.StudentName] = struct{}{}
	}
	k.TotalRevenue = euros(revenue)
	k.UniqueStudents = len(students)
	k.AvgHourlyRate = ratio(k.TotalRevenue, k.TotalHours)
	k.AvgSessionLength = ratio(k.TotalHours, float64(k.TotalSessions))

	today := core.DateOf(now)
	var monthRevenue, pipeline int64
	for _, s := range all {
		if s.IsPlanned(now) {
			pipeline += s.Pay.Cents
			k.UpcomingSessions++
			continue
		}
		if s.Date.Year() == today.Year() && s.Date.Month() == today.Month() {
			monthRevenue += s.Pay.Cents
			k.ThisMonthHours += s.Hours
		}
	}
	k.ThisMonthRevenue = euros(monthRevenue)
	k.ProspectiveIncome = euros(pipeline)

	k.TotalHours = finite(k.TotalHours)
	k.ThisMonthHours = finite(k.ThisMonthHours)
	return k
}

func euros(cents int64) float64 {
	return core.Money{Cents: cents}.Euros()
}

// ratio divides and yields 0 for a zero denominator or a non-finite result.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finite(num / den)
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func round2(x float64) float64 {
	return finite(math.Round(x*100) / 100)
}
