// Copyright 2025 Tradeledger Authors
//
// Prometheus collectors for the node's verification work: resolver
// rounds and graph sizes, validator rejections, attachment imports, and
// trade protocol completions. Registered against a private registry so
// tests can create as many instances as they like without collector
// name collisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector ledgerd exports on its /metrics endpoint.
type Metrics struct {
	registry *prometheus.Registry

	ResolverResolutions     prometheus.Counter
	ResolverDownloadedTotal prometheus.Counter
	ResolverFromDiskTotal   prometheus.Counter
	ResolverGraphLimitHits  prometheus.Counter
	ResolverFailures        prometheus.Counter

	ValidatorRejections *prometheus.CounterVec

	AttachmentImports prometheus.Counter

	TradeCompletions *prometheus.CounterVec
	TradeDuration    *prometheus.HistogramVec
}

// New builds a Metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ResolverResolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_resolver_resolutions_total",
			Help: "Completed dependency resolutions.",
		}),
		ResolverDownloadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_resolver_downloaded_transactions_total",
			Help: "Transactions fetched from peers during resolution.",
		}),
		ResolverFromDiskTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_resolver_from_disk_transactions_total",
			Help: "Transactions satisfied from the local store during resolution.",
		}),
		ResolverGraphLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_resolver_graph_limit_hits_total",
			Help: "Resolutions aborted because the dependency graph exceeded the size ceiling.",
		}),
		ResolverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_resolver_failures_total",
			Help: "Resolutions that ended in an error other than the graph ceiling.",
		}),
		ValidatorRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_validator_rejections_total",
			Help: "Transaction groups rejected by the validator, by reason.",
		}, []string{"reason"}),
		AttachmentImports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_attachment_imports_total",
			Help: "Attachments imported into the local store.",
		}),
		TradeCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_trade_completions_total",
			Help: "Two-party trades finished, by role and outcome.",
		}, []string{"role", "outcome"}),
		TradeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_trade_duration_seconds",
			Help:    "Wall-clock duration of a full two-party trade run, by role.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"role"}),
	}
	reg.MustRegister(
		m.ResolverResolutions,
		m.ResolverDownloadedTotal,
		m.ResolverFromDiskTotal,
		m.ResolverGraphLimitHits,
		m.ResolverFailures,
		m.ValidatorRejections,
		m.AttachmentImports,
		m.TradeCompletions,
		m.TradeDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolution implements resolver.Metrics.
func (m *Metrics) ObserveResolution(downloaded, fromDisk int) {
	m.ResolverResolutions.Inc()
	m.ResolverDownloadedTotal.Add(float64(downloaded))
	m.ResolverFromDiskTotal.Add(float64(fromDisk))
}

// ResolutionFailed implements resolver.Metrics.
func (m *Metrics) ResolutionFailed(graphLimitHit bool) {
	if graphLimitHit {
		m.ResolverGraphLimitHits.Inc()
		return
	}
	m.ResolverFailures.Inc()
}

// RejectionRecorded counts one validator rejection under reason.
func (m *Metrics) RejectionRecorded(reason string) {
	m.ValidatorRejections.WithLabelValues(reason).Inc()
}

// TradeFinished records one completed (or failed) trade run.
func (m *Metrics) TradeFinished(role string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.TradeCompletions.WithLabelValues(role, outcome).Inc()
	m.TradeDuration.WithLabelValues(role).Observe(elapsed.Seconds())
}
