package report

import (
	"time"

	"tutordash/internal/core"
)

// MonthPoint is one bucket of the monthly series. Revenue and Hours cover
// completed sessions, the Planned fields future ones.
type MonthPoint struct {
	Month           string  `json:"month"` // YYYY-MM
	Revenue         float64 `json:"revenue"`
	Hours           float64 `json:"hours"`
	Sessions        int     `json:"sessions"`
	PlannedRevenue  float64 `json:"planned_revenue"`
	PlannedHours    float64 `json:"planned_hours"`
	PlannedSessions int     `json:"planned_sessions"`
	AvgHourlyRate   float64 `json:"avg_hourly_rate"`
}

type monthAcc struct {
	revenue, plannedRevenue int64
	hours, plannedHours     float64
	sessions, planned       int
}

// MonthlySeries buckets sessions by calendar month in ascending order.
// Every month between the first and last month of window is present, with
// zeros where nothing happened. Open window bounds fall back to the earliest
// and latest session.
func MonthlySeries(sessions []core.Session, now time.Time, window DateRange) []MonthPoint {
	acc := map[string]*monthAcc{}
	var first, last core.Date
	for _, s := range sessions {
		key := s.Date.MonthKey()
		a, ok := acc[key]
		if !ok {
			a = &monthAcc{}
			acc[key] = a
		}
		if s.IsPlanned(now) {
			a.plannedRevenue += s.Pay.Cents
			a.plannedHours += s.Hours
			a.planned++
		} else {
			a.revenue += s.Pay.Cents
			a.hours += s.Hours
			a.sessions++
		}
		if first.IsZero() || s.Date.Before(first.Time) {
			first = s.Date
		}
		if last.IsZero() || s.Date.After(last.Time) {
			last = s.Date
		}
	}
	if !window.Start.IsZero() {
		first = window.Start
	}
	if !window.End.IsZero() {
		last = window.End
	}
	out := make([]MonthPoint, 0)
	if first.IsZero() || last.IsZero() || first.After(last.Time) {
		return out
	}

	cur := core.NewDate(first.Year(), first.Month(), 1)
	end := core.NewDate(last.Year(), last.Month(), 1)
	for !cur.After(end.Time) {
		p := MonthPoint{Month: cur.MonthKey()}
		if a, ok := acc[p.Month]; ok {
			p.Revenue = euros(a.revenue)
			p.Hours = finite(a.hours)
			p.Sessions = a.sessions
			p.PlannedRevenue = euros(a.plannedRevenue)
			p.PlannedHours = finite(a.plannedHours)
			p.PlannedSessions = a.planned
			p.AvgHourlyRate = round2(ratio(p.Revenue, p.Hours))
		}
		out = append(out, p)
		cur = core.Date{Time: cur.AddDate(0, 1, 0)}
	}
	return out
}
