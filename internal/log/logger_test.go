package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentSnapshot, Output: &buf})
	l.Info("Snapshot loaded", FieldSessions, 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentSnapshot {
		t.Errorf("expected component %q, got %v", ComponentSnapshot, rec[FieldComponent])
	}
	if rec[FieldSessions] != float64(3) {
		t.Errorf("expected sessions=3, got %v", rec[FieldSessions])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})
	h := RequestIDMiddleware(base, func(*http.Request) string { return "req_abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("bad output %q: %v", buf.String(), err)
	}
	if rec[FieldRequestID] != "req_abc" {
		t.Fatalf("expected request id, got %v", rec)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %q", l.Component())
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	sl.LogHTTPEnd(context.Background(), httptest.NewRequest(http.MethodGet, "/api/metrics", nil), 503, 12, "10.0.0.1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if rec["level"] != "ERROR" || rec[FieldStatusCode] != float64(503) {
		t.Fatalf("unexpected record %v", rec)
	}

	buf.Reset()
	sl.LogError(context.Background(), "fetch failed", errors.New("boom"), ComponentSnapshot, OpFetch, nil)
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if rec[FieldError] != "boom" || rec[FieldComponent] != ComponentSnapshot {
		t.Fatalf("unexpected record %v", rec)
	}
}
