package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"cdbmap/internal/geom"
	"cdbmap/internal/loader"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestObserveLoads(t *testing.T) {
	is := is.New(t)

	m := New()
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	m.Observe(loader.Snapshot{Status: loader.Processing, Generation: 1, Points: 200})
	m.Observe(loader.Snapshot{
		Status:     loader.Success,
		Generation: 1,
		Points:     200,
		Shapes:     make([]geom.Shape, 3),
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	})
	// pan on the same generation
	m.Observe(loader.Snapshot{Status: loader.Success, Generation: 1})
	m.Observe(loader.Snapshot{Status: loader.Processing, Generation: 2, Points: 400})
	m.Observe(loader.Snapshot{Status: loader.Error, Generation: 2})

	out := scrape(t, m)
	is.True(strings.Contains(out, `cdbmap_loads_total{status="SUCCESS"} 1`))
	is.True(strings.Contains(out, `cdbmap_loads_total{status="ERROR"} 1`))
	is.True(strings.Contains(out, "cdbmap_shapes_loaded 3"))
	is.True(strings.Contains(out, "cdbmap_points_requested 400"))
	is.True(strings.Contains(out, "cdbmap_viewport_changes_total 1"))
	is.True(strings.Contains(out, "cdbmap_load_duration_seconds_count 2"))
}

func TestObserveHTTPRequest(t *testing.T) {
	is := is.New(t)

	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/map.svg", http.StatusOK, 20*time.Millisecond)

	out := scrape(t, m)
	is.True(strings.Contains(out, `cdbmap_http_requests_total{method="GET",path="/map.svg",status="200"} 1`))
}

func TestNilMetrics(t *testing.T) {
	is := is.New(t)

	var m *Metrics
	m.Observe(loader.Snapshot{Status: loader.Success})
	m.ObserveHTTPRequest(http.MethodGet, "/", 200, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	is.Equal(rec.Code, http.StatusServiceUnavailable)
}
