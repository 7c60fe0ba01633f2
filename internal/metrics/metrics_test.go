package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTPRequest("GET", "/api/metrics", 200, time.Millisecond)
	m.ObserveFetch("memory", time.Millisecond, nil)
	m.ObserveSnapshot(1, 1, time.Now())
	m.StaleServe()
	m.CacheHit()
	m.CacheMiss()
	m.RateLimited()
	m.EventPublished(nil)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveFetch("sheets", 20*time.Millisecond, errors.New("timeout"))
	m.ObserveFetch("sheets", 20*time.Millisecond, nil)
	m.ObserveSnapshot(120, 3, time.Unix(1700000000, 0))
	m.ObserveSnapshot(118, 2, time.Unix(1700000010, 0))
	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors.WithLabelValues("sheets")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.droppedRows))
	assert.Equal(t, 118.0, testutil.ToFloat64(m.snapshotSize))
	assert.Equal(t, 1700000010.0, testutil.ToFloat64(m.lastSuccess))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest("GET", "GET /api/metrics", 200, 5*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "tutordash_http_requests_total"))
	assert.True(t, strings.Contains(string(body), "tutordash_goroutines"))
}
