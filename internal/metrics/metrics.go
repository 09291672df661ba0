package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cdbmap/internal/loader"
)

// Metrics exposes map loading and viewport activity to Prometheus.
type Metrics struct {
	registry         *prometheus.Registry
	loadsTotal       *prometheus.CounterVec
	loadDuration     prometheus.Histogram
	shapesLoaded     prometheus.Gauge
	pointsRequested  prometheus.Gauge
	viewportChanges  prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpRequestDelay *prometheus.HistogramVec

	lastGen uint64
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	loadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdbmap",
		Name:      "loads_total",
		Help:      "Map loads by final status",
	}, []string{"status"})

	loadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cdbmap",
		Name:      "load_duration_seconds",
		Help:      "Time from PROCESSING to a final status",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	shapesLoaded := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cdbmap",
		Name:      "shapes_loaded",
		Help:      "Shapes in the current map",
	})

	pointsRequested := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cdbmap",
		Name:      "points_requested",
		Help:      "Row limit of the default query",
	})

	viewportChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cdbmap",
		Name:      "viewport_changes_total",
		Help:      "Pan and zoom operations that moved the viewport",
	})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cdbmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests served",
	}, []string{"method", "path", "status"})

	httpRequestDelay := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cdbmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(
		loadsTotal,
		loadDuration,
		shapesLoaded,
		pointsRequested,
		viewportChanges,
		httpRequests,
		httpRequestDelay,
	)

	return &Metrics{
		registry:         registry,
		loadsTotal:       loadsTotal,
		loadDuration:     loadDuration,
		shapesLoaded:     shapesLoaded,
		pointsRequested:  pointsRequested,
		viewportChanges:  viewportChanges,
		httpRequests:     httpRequests,
		httpRequestDelay: httpRequestDelay,
	}
}

// Observe records one loader snapshot. Pass it to Loader.Subscribe; the
// loader delivers snapshots one at a time so no locking is needed here.
func (m *Metrics) Observe(s loader.Snapshot) {
	if m == nil {
		return
	}
	switch s.Status {
	case loader.Success, loader.Error:
		if s.Generation == m.lastGen {
			// same load, the view moved
			m.viewportChanges.Inc()
			return
		}
		m.lastGen = s.Generation
		m.loadsTotal.WithLabelValues(s.Status.String()).Inc()
		m.loadDuration.Observe(s.Duration().Seconds())
		if s.Status == loader.Success {
			m.shapesLoaded.Set(float64(len(s.Shapes)))
		}
	case loader.Processing:
		m.pointsRequested.Set(float64(s.Points))
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDelay.With(labels).Observe(duration.Seconds())
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
