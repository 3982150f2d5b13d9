// Package metrics exposes prometheus collectors for dataset loading, the
// analyses and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seascope"

// Metrics owns a private registry so several instances can coexist in tests.
// It implements dataset.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	datasetRows    prometheus.Gauge
	analysis       *prometheus.HistogramVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New registers every collector plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		cacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Dataset cache lookups served from memory.",
		}, []string{"scheme"}),
		cacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Dataset cache lookups that required a load.",
		}, []string{"scheme"}),
		loadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "dataset", Name: "load_duration_seconds",
			Help:    "Time to resolve a dataset, cache hits included.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"scheme", "status"}),
		datasetRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "dataset", Name: "rows",
			Help: "Rows in the most recently served dataset.",
		}),
		analysis: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "duration_seconds",
			Help:    "Duration of analysis computations.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"analysis", "status"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		requestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) CacheHit(location string)  { m.cacheHits.WithLabelValues(scheme(location)).Inc() }
func (m *Metrics) CacheMiss(location string) { m.cacheMisses.WithLabelValues(scheme(location)).Inc() }

func (m *Metrics) ObserveLoad(location string, took time.Duration, err error) {
	m.loadDuration.WithLabelValues(scheme(location), status(err)).Observe(took.Seconds())
}

// SetRows records the size of the dataset being served.
func (m *Metrics) SetRows(n int) { m.datasetRows.Set(float64(n)) }

// ObserveAnalysis records how long one analysis took.
func (m *Metrics) ObserveAnalysis(name string, took time.Duration, err error) {
	m.analysis.WithLabelValues(name, status(err)).Observe(took.Seconds())
}

// ObserveRequest records one HTTP request. route is the matched pattern,
// not the raw path.
func (m *Metrics) ObserveRequest(method, route string, code int, took time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(took.Seconds())
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	if k, ok := errs.KindOf(err); ok {
		return string(k)
	}
	return "error"
}

func scheme(location string) string {
	if i := strings.Index(location, "://"); i > 0 {
		return strings.ToLower(location[:i])
	}
	return "file"
}
