package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "cartstore"
)

// StoreMetrics counts cart mutations and times pricing quotes.
type StoreMetrics struct {
	Mutations     *prometheus.CounterVec
	QuoteDuration prometheus.Histogram
}

// NewStoreMetrics registers the store collectors on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "mutations_total",
				Help:      "Cart mutations by operation and result.",
			},
			[]string{"op", "result"},
		),
		QuoteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "quote_duration_seconds",
				Help:      "Latency of pricing quotes.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	reg.MustRegister(m.Mutations, m.QuoteDuration)
	return m
}

// ServerMetrics tracks HTTP traffic per route.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"route", "status"},
		),
		LatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_latency_ms",
				Help:      "HTTP request latency in milliseconds.",
				Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"route"},
		),
	}
	reg.MustRegister(m.Requests, m.LatencyMS)
	return m
}

// Handler exposes the default registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
