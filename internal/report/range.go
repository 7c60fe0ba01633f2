package report

import (
	"strings"
	"time"

	"tutordash/internal/apperr"
	"tutordash/internal/core"
)

// QuickRange names a predefined date window.
type QuickRange string

const (
	All        QuickRange = "all"
	Last7Days  QuickRange = "last_7_days"
	Last30Days QuickRange = "last_30_days"
	Last90Days QuickRange = "last_90_days"
	YearToDate QuickRange = "year_to_date"
	Custom     QuickRange = "custom"
)

// MaxRangeYears bounds the width of a custom window.
const MaxRangeYears = 50

// QuickRanges lists the accepted canonical values.
var QuickRanges = []QuickRange{All, Last7Days, Last30Days, Last90Days, YearToDate, Custom}

// shortNames are the compact spellings used by older dashboard links.
var shortNames = map[string]QuickRange{
	"last7":  Last7Days,
	"last30": Last30Days,
	"last90": Last90Days,
	"ytd":    YearToDate,
}

// ParseQuickRange accepts canonical names and short aliases; empty means All.
func ParseQuickRange(s string) (QuickRange, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return All, nil
	}
	if q, ok := shortNames[s]; ok {
		return q, nil
	}
	for _, q := range QuickRanges {
		if string(q) == s {
			return q, nil
		}
	}
	return "", apperr.Validation("unknown quick_range %q", s)
}

// DateRange is an inclusive window. A zero bound is open.
type DateRange struct {
	Quick QuickRange `json:"quick_range"`
	Start core.Date  `json:"start"`
	End   core.Date  `json:"end"`
}

// Contains reports whether d lies within the range, bounds included.
func (r DateRange) Contains(d core.Date) bool {
	if !r.Start.IsZero() && d.Before(r.Start.Time) {
		return false
	}
	if !r.End.IsZero() && d.After(r.End.Time) {
		return false
	}
	return true
}

// ResolveRange turns a quick range plus optional explicit bounds into a
// concrete window relative to now. The last_* windows start N days before
// today and stay open at the end so planned sessions are kept; year_to_date
// ends today.
func ResolveRange(q QuickRange, start, end *core.Date, now time.Time) (DateRange, error) {
	today := core.DateOf(now)
	if q == "" {
		q = All
	}
	if q != Custom && (start != nil || end != nil) {
		if q != All {
			return DateRange{}, apperr.Validation("start_date/end_date require quick_range=custom, got %q", q)
		}
		// A bare start/end pair implies a custom range.
		q = Custom
	}

	switch q {
	case All:
		return DateRange{Quick: All}, nil
	case Last7Days:
		return DateRange{Quick: q, Start: today.AddDays(-7)}, nil
	case Last30Days:
		return DateRange{Quick: q, Start: today.AddDays(-30)}, nil
	case Last90Days:
		return DateRange{Quick: q, Start: today.AddDays(-90)}, nil
	case YearToDate:
		return DateRange{Quick: q, Start: core.NewDate(today.Year(), 1, 1), End: today}, nil
	case Custom:
		if start == nil || end == nil {
			return DateRange{}, apperr.Validation("quick_range=custom requires both start_date and end_date")
		}
		if start.After(end.Time) {
			return DateRange{}, apperr.Validation("start_date %s is after end_date %s", start, end)
		}
		if end.After(start.AddDate(MaxRangeYears, 0, 0)) {
			return DateRange{}, apperr.Validation("custom range may span at most %d years", MaxRangeYears)
		}
		return DateRange{Quick: Custom, Start: *start, End: *end}, nil
	default:
		return DateRange{}, apperr.Validation("unknown quick_range %q", q)
	}
}

// Filter returns the sessions inside r, in input order. The input is not
// modified.
func Filter(sessions []core.Session, r DateRange) []core.Session {
	out := make([]core.Session, 0, len(sessions))
	for _, s := range sessions {
		if r.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out
}
