// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/mprscape/pkg/observability"
)

// Metrics holds the collectors registered by [New].
type Metrics struct {
	StagesTotal   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	GraphNodes    prometheus.Histogram
	GraphEvents   prometheus.Histogram
	GraphMPRs     prometheus.Histogram

	CacheOpsTotal *prometheus.CounterVec
	CacheSetBytes *prometheus.HistogramVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mprscape_stages_total",
				Help: "Engine stages run, by stage and outcome",
			},
			[]string{"stage", "status"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mprscape_stage_duration_seconds",
				Help:    "Engine stage latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		GraphNodes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mprscape_graph_nodes",
			Help:    "Mapping nodes per reconciliation graph",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		GraphEvents: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mprscape_graph_events",
			Help:    "Events per reconciliation graph",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		GraphMPRs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mprscape_graph_mprs",
			Help:    "Maximum parsimony reconciliations per graph",
			Buckets: prometheus.ExponentialBuckets(1, 10, 12),
		}),
		CacheOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mprscape_cache_operations_total",
				Help: "Cache lookups and writes, by key type and result",
			},
			[]string{"key_type", "result"},
		),
		CacheSetBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mprscape_cache_set_bytes",
				Help:    "Size of cache writes in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"key_type"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mprscape_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mprscape_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "mprscape_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		}),
	}
}

// Install registers collectors with reg and installs them as the global
// observability hooks.
func Install(reg prometheus.Registerer) *Metrics {
	m := New(reg)
	observability.SetEngineHooks(engineHooks{m})
	observability.SetCacheHooks(cacheHooks{m})
	observability.SetHTTPHooks(httpHooks{m})
	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type engineHooks struct{ m *Metrics }

func (h engineHooks) OnStageStart(context.Context, string) {}

func (h engineHooks) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	h.m.StagesTotal.WithLabelValues(stage, status(err)).Inc()
	h.m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (h engineHooks) OnGraph(_ context.Context, nodes, events int, mprs float64) {
	h.m.GraphNodes.Observe(float64(nodes))
	h.m.GraphEvents.Observe(float64(events))
	h.m.GraphMPRs.Observe(mprs)
}

type cacheHooks struct{ m *Metrics }

func (h cacheHooks) OnCacheHit(_ context.Context, keyType string) {
	h.m.CacheOpsTotal.WithLabelValues(keyType, "hit").Inc()
}

func (h cacheHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.m.CacheOpsTotal.WithLabelValues(keyType, "miss").Inc()
}

func (h cacheHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.m.CacheOpsTotal.WithLabelValues(keyType, "set").Inc()
	h.m.CacheSetBytes.WithLabelValues(keyType).Observe(float64(size))
}

type httpHooks struct{ m *Metrics }

func (h httpHooks) OnRequest(context.Context, string, string) {
	h.m.HTTPRequestsInFlight.Inc()
}

func (h httpHooks) OnResponse(_ context.Context, method, route string, code int, d time.Duration) {
	h.m.HTTPRequestsInFlight.Dec()
	h.m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	h.m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
