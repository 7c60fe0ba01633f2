package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// knownRoutes maps exact request paths to their metric label.
var knownRoutes = map[string]string{
	"/":                    "/",
	"/api/metrics":         "/api/metrics",
	"/api/top-students":    "/api/top-students",
	"/api/monthly-summary": "/api/monthly-summary",
	"/api/yearly-summary":  "/api/yearly-summary",
	"/api/student-search":  "/api/student-search",
	"/api/sessions.csv":    "/api/sessions.csv",
	"/api/refresh":         "/api/refresh",
	"/healthz":             "/healthz",
	"/readyz":              "/readyz",
	"/metrics":             "/metrics",
}

// routeLabel collapses a request path onto its route so metric labels stay
// bounded. Unknown paths share one label.
func routeLabel(path string) string {
	if l, ok := knownRoutes[path]; ok {
		return l
	}
	switch {
	case strings.HasPrefix(path, "/api/student-details/"):
		return "/api/student-details/{name}"
	case strings.HasPrefix(path, "/static/"):
		return "/static/"
	default:
		return "other"
	}
}

// formatEuros formats an amount as a Euro currency string (e.g., "€1.234,50").
func formatEuros(amount float64) string {
	cents := int64(math.Round(amount * 100))
	neg := cents < 0
	if neg {
		cents = -cents
	}
	euros := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range euros {
		if i > 0 && (len(euros)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	s := b.String() + "," + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-€" + s
	}
	return "€" + s
}

// formatHours renders hours with at most one decimal, German style.
func formatHours(h float64) string {
	s := strconv.FormatFloat(math.Round(h*10)/10, 'f', -1, 64)
	return strings.Replace(s, ".", ",", 1)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}

// cacheKey identifies a computed response. The snapshot id and today's date
// are part of it, so a new snapshot or a new day never serves old numbers.
func cacheKey(snapshotID, today string, r *http.Request) string {
	return snapshotID + "|" + today + "|" + r.URL.Path + "?" + r.URL.Query().Encode()
}
