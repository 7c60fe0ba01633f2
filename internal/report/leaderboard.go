package report

import (
	"sort"
	"time"

	"tutordash/internal/core"
)

// DefaultTopN is used when the caller asks for a non-positive count.
const DefaultTopN = 10

// StudentTotal is one leaderboard entry. HourlyRate is nil when the student
// has no recorded hours; RateDefined carries the same signal for callers
// that prefer a flag.
type StudentTotal struct {
	Name         string   `json:"name"`
	TotalPay     float64  `json:"total_pay"`
	TotalHours   float64  `json:"total_hours"`
	SessionCount int      `json:"session_count"`
	HourlyRate   *float64 `json:"hourly_rate"`
	RateDefined  bool     `json:"rate_defined"`

	payCents int64
}

// Leaderboard ranks students by completed revenue, highest first. Students
// with equal revenue keep the order in which they first appear in sessions.
func Leaderboard(sessions []core.Session, now time.Time, topN int) []StudentTotal {
	if topN <= 0 {
		topN = DefaultTopN
	}
	byName := map[string]int{}
	out := make([]StudentTotal, 0)
	for _, s := range sessions {
		if s.IsPlanned(now) {
			continue
		}
		i, ok := byName[s.StudentName]
		if !ok {
			i = len(out)
			byName[s.StudentName] = i
			out = append(out, StudentTotal{Name: s.StudentName})
		}
		out[i].payCents += s.Pay.Cents
		out[i].TotalHours += s.Hours
		out[i].SessionCount++
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].payCents > out[b].payCents
	})
	if len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		st := &out[i]
		st.TotalPay = euros(st.payCents)
		st.TotalHours = finite(st.TotalHours)
		if st.TotalHours > 0 {
			rate := ratio(st.TotalPay, st.TotalHours)
			st.HourlyRate = &rate
			st.RateDefined = true
		}
	}
	return out
}
