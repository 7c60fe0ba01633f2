package report

import (
	"sort"
	"strings"
	"time"

	"tutordash/internal/apperr"
	"tutordash/internal/core"
)

// SessionView is a session as listed on the student details page.
type SessionView struct {
	Date     core.Date `json:"date"`
	Hours    float64   `json:"hours"`
	Pay      float64   `json:"pay"`
	Provider string    `json:"provider,omitempty"`
	Start    string    `json:"start,omitempty"`
	End      string    `json:"end,omitempty"`
	Planned  bool      `json:"planned"`
}

// Details is everything known about one student.
type Details struct {
	Name            string        `json:"name"`
	TotalRevenue    float64       `json:"total_revenue"`
	TotalHours      float64       `json:"total_hours"`
	TotalSessions   int           `json:"total_sessions"`
	AvgHourlyRate   *float64      `json:"avg_hourly_rate"`
	PlannedRevenue  float64       `json:"planned_revenue"`
	PlannedHours    float64       `json:"planned_hours"`
	PlannedSessions int           `json:"planned_sessions"`
	FirstSession    core.Date     `json:"first_session"`
	LastSession     core.Date     `json:"last_session"`
	Sessions        []SessionView `json:"sessions"`
}

// StudentDetails looks a student up by name, ignoring case and surrounding
// blanks. Totals cover completed sessions; the session list includes
// planned ones, oldest first.
func StudentDetails(sessions []core.Session, name string, now time.Time) (Details, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Details{}, apperr.Validation("student name is required")
	}
	var (
		d               Details
		revenue, future int64
	)
	for _, s := range sessions {
		if !strings.EqualFold(s.StudentName, name) {
			continue
		}
		if d.Name == "" {
			d.Name = s.StudentName
		}
		planned := s.IsPlanned(now)
		d.Sessions = append(d.Sessions, SessionView{
			Date:     s.Date,
			Hours:    s.Hours,
			Pay:      s.Pay.Euros(),
			Provider: s.Provider,
			Start:    s.Start,
			End:      s.End,
			Planned:  planned,
		})
		if planned {
			future += s.Pay.Cents
			d.PlannedHours += s.Hours
			d.PlannedSessions++
			continue
		}
		revenue += s.Pay.Cents
		d.TotalHours += s.Hours
		d.TotalSessions++
		if d.FirstSession.IsZero() || s.Date.Before(d.FirstSession.Time) {
			d.FirstSession = s.Date
		}
		if s.Date.After(d.LastSession.Time) {
			d.LastSession = s.Date
		}
	}
	if d.Name == "" {
		return Details{}, apperr.NotFound("student %q not found", name)
	}
	d.TotalRevenue = euros(revenue)
	d.PlannedRevenue = euros(future)
	d.TotalHours = finite(d.TotalHours)
	d.PlannedHours = finite(d.PlannedHours)
	if d.TotalHours > 0 {
		rate := round2(ratio(d.TotalRevenue, d.TotalHours))
		d.AvgHourlyRate = &rate
	}
	sort.SliceStable(d.Sessions, func(a, b int) bool {
		return d.Sessions[a].Date.Before(d.Sessions[b].Date.Time)
	})
	return d, nil
}
