package report

import (
	"time"

	"tutordash/internal/core"
)

// now is pinned for every test in the package: 15 March 2024, afternoon.
var now = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

func session(name string, y, m, d int, hours float64, payCents int64) core.Session {
	return core.Session{
		StudentName: name,
		Date:        core.NewDate(y, m, d),
		Hours:       hours,
		Pay:         core.Money{Cents: payCents},
	}
}

func names(list []StudentTotal) []string {
	out := make([]string, 0, len(list))
	for _, st := range list {
		out = append(out, st.Name)
	}
	return out
}

func datePtr(y, m, d int) *core.Date {
	v := core.NewDate(y, m, d)
	return &v
}
