package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tutordash/internal/metrics"
	"tutordash/internal/sheets/memory"
	"tutordash/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

func lessonRows() [][]string {
	return [][]string{
		memory.Header,
		{"10.01.2024", "Alice", "14:00", "16:00", "Privat", "2", "40"},
		{"12.03.2024", "Alice", "14:00", "16:00", "Privat", "2", "40"},
		{"13.03.2024", "Bob", "", "", "", "3", "60"},
		{"10.04.2024", "Carl", "", "", "", "1", "30"},
		{"11.03.2024", "Mallory", "", "", "", "viel", "30"},
	}
}

type testServer struct {
	srv      *Server
	store    *memory.Store
	provider *snapshot.Provider
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := memory.New(lessonRows())
	ids := 0
	provider := snapshot.New(store, snapshot.Options{
		TTL: time.Minute,
		Now: func() time.Time { return testNow },
		NewID: func() string {
			ids++
			return fmt.Sprintf("snap-%d", ids)
		},
	})
	opts.Now = func() time.Time { return testNow }
	opts.Location = time.UTC
	srv := NewServer(provider, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, store: store, provider: provider}
}

func (ts *testServer) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Options{})

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/readyz").Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/metrics").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		TotalRevenue      float64 `json:"total_revenue"`
		TotalHours        float64 `json:"total_hours"`
		AvgHourlyRate     float64 `json:"avg_hourly_rate"`
		UniqueStudents    int     `json:"unique_students"`
		TotalSessions     int     `json:"total_sessions"`
		ThisMonthRevenue  float64 `json:"this_month_revenue"`
		ThisMonthHours    float64 `json:"this_month_hours"`
		ProspectiveIncome float64 `json:"prospective_income"`
		UpcomingSessions  int     `json:"upcoming_sessions"`
		Range             struct {
			QuickRange string `json:"quick_range"`
		} `json:"range"`
		Snapshot struct {
			ID          string `json:"id"`
			Source      string `json:"source"`
			Sessions    int    `json:"sessions"`
			DroppedRows int    `json:"dropped_rows"`
		} `json:"snapshot"`
	}
	decode(t, rec, &body)

	assert.Equal(t, 140.0, body.TotalRevenue)
	assert.Equal(t, 7.0, body.TotalHours)
	assert.Equal(t, 20.0, body.AvgHourlyRate)
	assert.Equal(t, 2, body.UniqueStudents)
	assert.Equal(t, 3, body.TotalSessions)
	assert.Equal(t, 100.0, body.ThisMonthRevenue)
	assert.Equal(t, 5.0, body.ThisMonthHours)
	assert.Equal(t, 30.0, body.ProspectiveIncome)
	assert.Equal(t, 1, body.UpcomingSessions)
	assert.Equal(t, "all", body.Range.QuickRange)
	assert.Equal(t, "snap-1", body.Snapshot.ID)
	assert.Equal(t, "memory", body.Snapshot.Source)
	assert.Equal(t, 4, body.Snapshot.Sessions)
	assert.Equal(t, 1, body.Snapshot.DroppedRows)

	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "snap-1", rec.Header().Get("X-Snapshot-ID"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")

	again := ts.do(http.MethodGet, "/api/metrics")
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, rec.Body.String(), again.Body.String())
}

func TestMetricsWithRange(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/metrics?quick_range=custom&start_date=2024-03-01&end_date=2024-03-31")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		TotalRevenue float64 `json:"total_revenue"`
		Range        struct {
			QuickRange string `json:"quick_range"`
			Start      string `json:"start"`
			End        string `json:"end"`
		} `json:"range"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 100.0, body.TotalRevenue)
	assert.Equal(t, "custom", body.Range.QuickRange)
	assert.Equal(t, "2024-03-01", body.Range.Start)
	assert.Equal(t, "2024-03-31", body.Range.End)
}

func TestValidationErrorsAreNotCached(t *testing.T) {
	ts := newTestServer(t, Options{})

	for i := 0; i < 2; i++ {
		rec := ts.do(http.MethodGet, "/api/metrics?quick_range=custom&start_date=2024-03-10&end_date=2024-03-01")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body apiError
		decode(t, rec, &body)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Contains(t, body.Error.Message, "is after end_date")
		assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
	}
}

func TestTopStudents(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/top-students")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Students []struct {
			Name       string   `json:"name"`
			TotalPay   float64  `json:"total_pay"`
			HourlyRate *float64 `json:"hourly_rate"`
		} `json:"students"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Students, 2)
	assert.Equal(t, "Alice", body.Students[0].Name)
	assert.Equal(t, 80.0, body.Students[0].TotalPay)
	assert.Equal(t, "Bob", body.Students[1].Name)
	require.NotNil(t, body.Students[1].HourlyRate)
	assert.Equal(t, 20.0, *body.Students[1].HourlyRate)

	rec = ts.do(http.MethodGet, "/api/top-students?top_n=1&quick_range=last_7_days")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &body)
	require.Len(t, body.Students, 1)
	assert.Equal(t, "Bob", body.Students[0].Name)

	for _, q := range []string{"top_n=0", "top_n=101", "top_n=abc"} {
		rec := ts.do(http.MethodGet, "/api/top-students?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestMonthlySummaryFillsGaps(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/monthly-summary")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Months []struct {
			Month          string  `json:"month"`
			Revenue        float64 `json:"revenue"`
			PlannedRevenue float64 `json:"planned_revenue"`
		} `json:"months"`
	}
	decode(t, rec, &body)

	months := make([]string, 0, len(body.Months))
	for _, m := range body.Months {
		months = append(months, m.Month)
	}
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03", "2024-04"}, months)
	assert.Zero(t, body.Months[1].Revenue)
	assert.Equal(t, 100.0, body.Months[2].Revenue)
	assert.Equal(t, 30.0, body.Months[3].PlannedRevenue)
}

func TestMonthlySummaryRejectsHugeRange(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/monthly-summary?quick_range=custom&start_date=1000-01-01&end_date=9999-12-31")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var body apiError
	decode(t, rec, &body)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Message, "at most 50 years")
	assert.Zero(t, ts.srv.responses.Size())
}

func TestYearlySummary(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/yearly-summary")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Years []struct {
			Year        int     `json:"year"`
			TotalIncome float64 `json:"total_income"`
		} `json:"years"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Years, 1)
	assert.Equal(t, 2024, body.Years[0].Year)
	assert.Equal(t, 140.0, body.Years[0].TotalIncome)
}

func TestStudentSearch(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/student-search?q=A")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Query   string   `json:"query"`
		Results []string `json:"results"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "A", body.Query)
	assert.Equal(t, []string{"Alice", "Carl"}, body.Results)

	rec = ts.do(http.MethodGet, "/api/student-search?q=a&limit=1")
	decode(t, rec, &body)
	assert.Equal(t, []string{"Alice"}, body.Results)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/student-search?limit=51").Code)
}

func TestStudentDetails(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/student-details/alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Name          string  `json:"name"`
		TotalRevenue  float64 `json:"total_revenue"`
		TotalSessions int     `json:"total_sessions"`
		Sessions      []struct {
			Date    string `json:"date"`
			Planned bool   `json:"planned"`
		} `json:"sessions"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "Alice", body.Name)
	assert.Equal(t, 80.0, body.TotalRevenue)
	assert.Equal(t, 2, body.TotalSessions)
	require.Len(t, body.Sessions, 2)
	assert.Equal(t, "2024-01-10", body.Sessions[0].Date)

	rec = ts.do(http.MethodGet, "/api/student-details/Carl")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	require.Len(t, body.Sessions, 1)
	assert.True(t, body.Sessions[0].Planned)

	rec = ts.do(http.MethodGet, "/api/student-details/Zoe")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var errBody apiError
	decode(t, rec, &errBody)
	assert.Equal(t, "NOT_FOUND", errBody.Error.Code)
}

func TestSessionsCSV(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/sessions.csv?quick_range=ytd")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sessions-2024-03-15.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus three sessions up to today")
	assert.Equal(t, "date", records[0][0])
	assert.Equal(t, []string{"2024-01-10", "Alice", "2", "40.00", "Privat", "14:00", "16:00", "completed"}, records[1])

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/sessions.csv?quick_range=never").Code)
}

func TestRefreshIsRateLimited(t *testing.T) {
	ts := newTestServer(t, Options{RefreshPerMinute: 1})

	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/metrics").Code)

	rec := ts.do(http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Status   string `json:"status"`
		Snapshot struct {
			ID string `json:"id"`
		} `json:"snapshot"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "refreshed", body.Status)
	assert.Equal(t, "snap-2", body.Snapshot.ID)

	// The new snapshot id means the old cached body is not reused.
	assert.Equal(t, "MISS", ts.do(http.MethodGet, "/api/metrics").Header().Get("X-Cache"))

	rec = ts.do(http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var errBody apiError
	decode(t, rec, &errBody)
	assert.Equal(t, "RATE_LIMITED", errBody.Error.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(http.MethodGet, "/api/refresh").Code)
}

func TestUpstreamFailure(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.store.Fail(errors.New("connection refused"))

	rec := ts.do(http.MethodGet, "/api/metrics")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body apiError
	decode(t, rec, &body)
	assert.Equal(t, "DATA_SOURCE_UNAVAILABLE", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "connection refused")
}

func TestStaleSnapshotSurvivesFailedRefresh(t *testing.T) {
	ts := newTestServer(t, Options{})
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/metrics").Code)

	ts.store.Fail(errors.New("quota exceeded"))
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodPost, "/api/refresh").Code)

	rec := ts.do(http.MethodGet, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "snap-1", rec.Header().Get("X-Snapshot-ID"))
}

func TestPurgeResponseCache(t *testing.T) {
	ts := newTestServer(t, Options{})

	ts.do(http.MethodGet, "/api/yearly-summary")
	assert.Equal(t, "HIT", ts.do(http.MethodGet, "/api/yearly-summary").Header().Get("X-Cache"))

	ts.srv.PurgeResponseCache()
	assert.Equal(t, "MISS", ts.do(http.MethodGet, "/api/yearly-summary").Header().Get("X-Cache"))
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Nachhilfe Dashboard")
	assert.Contains(t, body, "€140,00")
	assert.Contains(t, body, `value="last_30_days"`)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/wp-login.php").Code)
}

func TestIndexPageWithoutData(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.store.Fail(errors.New("down"))

	rec := ts.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Keine Daten geladen")
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/static/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestPrometheusEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{Metrics: metrics.New()})

	ts.do(http.MethodGet, "/api/metrics")
	ts.do(http.MethodGet, "/api/metrics")

	rec := ts.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	out, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, `route="/api/metrics"`)
	assert.Contains(t, text, "response_cache_hits_total 1")
}
