package http

import (
	"net/http/httptest"
	"testing"
)

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":                             "/",
		"/api/metrics":                  "/api/metrics",
		"/api/student-details/Anna%20B": "/api/student-details/{name}",
		"/static/app.js":                "/static/",
		"/wp-admin/setup.php":           "other",
		"/api/refresh":                  "/api/refresh",
	}
	for path, want := range tests {
		if got := routeLabel(path); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFormatEuros(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "€0,00"},
		{12.34, "€12,34"},
		{1234.5, "€1.234,50"},
		{1234567.891, "€1.234.567,89"},
		{-45, "-€45,00"},
	}
	for _, tt := range tests {
		if got := formatEuros(tt.in); got != tt.want {
			t.Errorf("formatEuros(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	if got := formatHours(12.25); got != "12,3" && got != "12,2" {
		t.Errorf("formatHours(12.25) = %q", got)
	}
	if got := formatHours(3); got != "3" {
		t.Errorf("formatHours(3) = %q, want 3", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  An\x00na\n "); got != "Anna" {
		t.Errorf("sanitizeInput = %q, want Anna", got)
	}
}

func TestCacheKeyIsOrderInsensitive(t *testing.T) {
	a := httptest.NewRequest("GET", "/api/top-students?top_n=5&quick_range=ytd", nil)
	b := httptest.NewRequest("GET", "/api/top-students?quick_range=ytd&top_n=5", nil)
	if cacheKey("s1", "2024-03-15", a) != cacheKey("s1", "2024-03-15", b) {
		t.Error("query order changed the cache key")
	}
	if cacheKey("s1", "2024-03-15", a) == cacheKey("s2", "2024-03-15", a) {
		t.Error("snapshot id not part of the cache key")
	}
}
