// Package observability provides Prometheus metrics for the launch aggregator.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Aggregation metrics
	RefreshesTotal   *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	LaunchesServed   prometheus.Gauge
	EnrichmentErrors *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec

	// Ledger metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
	LatestBlock    prometheus.Gauge

	// Quote metrics
	QuoteFetches *prometheus.CounterVec
	QuoteUSD     prometheus.Gauge

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics registers all metrics with reg. A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "arena_terminal"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RefreshesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "refreshes_total",
			Help:      "Total number of launch refreshes by status",
		}, []string{"status"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "refresh_duration_seconds",
			Help:      "Launch refresh duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "cache_lookups_total",
			Help:      "Snapshot cache lookups by result",
		}, []string{"result"}),
		LaunchesServed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "launches",
			Help:      "Number of launches in the latest snapshot",
		}),
		EnrichmentErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "enrichment_errors_total",
			Help:      "Per-token enrichment failures by kind",
		}, []string{"kind"}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "sink_errors_total",
			Help:      "Failed launch sink writes by sink",
		}, []string{"sink"}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "avax",
			Name:      "rpc_call_latency_seconds",
			Help:      "C-Chain RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "avax",
			Name:      "rpc_call_errors_total",
			Help:      "Failed C-Chain RPC call attempts",
		}, []string{"method"}),
		LatestBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "avax",
			Name:      "latest_block",
			Help:      "Latest block number seen by the aggregator",
		}),

		QuoteFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "fetches_total",
			Help:      "Spot price fetches by status",
		}, []string{"status"}),
		QuoteUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "usd",
			Help:      "Last fetched USD price of the native currency",
		}),

		LastSuccessfulRefresh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful refresh",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordRefresh records one refresh attempt.
func (m *Metrics) RecordRefresh(took time.Duration, launches int, err error) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(status(err)).Inc()
	m.RefreshDuration.Observe(took.Seconds())
	if err == nil {
		m.LaunchesServed.Set(float64(launches))
		m.LastSuccessfulRefresh.SetToCurrentTime()
	}
}

// RecordCacheLookup records a snapshot cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordEnrichmentError counts a recovered per-token failure.
func (m *Metrics) RecordEnrichmentError(kind string) {
	if m == nil {
		return
	}
	m.EnrichmentErrors.WithLabelValues(kind).Inc()
}

// RecordSinkError counts a failed sink write.
func (m *Metrics) RecordSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}

// RecordRPCCall matches rpc.CallObserver.
func (m *Metrics) RecordRPCCall(method string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(took.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// SetLatestBlock updates the chain head gauge.
func (m *Metrics) SetLatestBlock(n uint64) {
	if m == nil {
		return
	}
	m.LatestBlock.Set(float64(n))
}

// RecordQuoteFetch matches the pricing.QuoteCacheConfig OnFetch hook.
func (m *Metrics) RecordQuoteFetch(price float64, err error) {
	if m == nil {
		return
	}
	m.QuoteFetches.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.QuoteUSD.Set(price)
	}
}
