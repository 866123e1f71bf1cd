// Package metrics is the supervisor's Prometheus registry: per-handler
// success/failure counters, per-block processing latency, and promoter/
// syncnode health gauges (spec §4.D). Modeled directly on op-interop-mon's
// Metricer/Metrics split, itself grounded on the teacher's op-service
// metrics helpers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	opmetrics "github.com/meridian-labs/chainwatch/op-service/metrics"
)

const Namespace = "chainwatch_supervisor"

type Metricer interface {
	RecordUp()
	RecordInfo(version string)

	RecordHandlerResult(chainID string, kind string, ok bool)
	RecordHandlerLatency(chainID string, kind string, seconds float64)

	RecordPromotionAttempt(chainID string, level string, outcome string)
	RecordSafetyHead(chainID string, level string, blockNumber float64)

	RecordSyncNodeReconnect(chainID string)
	RecordL1Reorg(depth float64)

	Registry() *prometheus.Registry
}

type Metrics struct {
	registry *prometheus.Registry

	up   prometheus.Gauge
	info *prometheus.GaugeVec

	handlerResults  *prometheus.CounterVec
	handlerLatency  *prometheus.HistogramVec
	promotions      *prometheus.CounterVec
	safetyHeads     *prometheus.GaugeVec
	syncNodeRetries *prometheus.CounterVec
	l1ReorgDepth    prometheus.Histogram
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)

	return &Metrics{
		registry: registry,

		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "up", Help: "1 if the supervisor is up",
		}),
		info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "info", Help: "Pseudo-metric with version label",
		}, []string{"version"}),
		handlerResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "handler_results_total", Help: "Per-handler outcome counts",
		}, []string{"chain", "kind", "result"}),
		handlerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Name: "handler_latency_seconds", Help: "now - block.timestamp at handling time",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"chain", "kind"}),
		promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "promotions_total", Help: "Safety promoter tick outcomes",
		}, []string{"chain", "level", "outcome"}),
		safetyHeads: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "safety_head", Help: "Current safety head block number per level",
		}, []string{"chain", "level"}),
		syncNodeRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "sync_node_reconnects_total", Help: "Managed-node WS reconnect attempts",
		}, []string{"chain"}),
		l1ReorgDepth: func() prometheus.Histogram {
			h := prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: Namespace, Name: "l1_reorg_depth", Help: "Blocks walked back to find the common ancestor",
				Buckets: prometheus.LinearBuckets(1, 1, 20),
			})
			registry.MustRegister(h)
			return h
		}(),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordUp() { m.up.Set(1) }

func (m *Metrics) RecordInfo(version string) { m.info.WithLabelValues(version).Set(1) }

func (m *Metrics) RecordHandlerResult(chainID, kind string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.handlerResults.WithLabelValues(chainID, kind, result).Inc()
}

func (m *Metrics) RecordHandlerLatency(chainID, kind string, seconds float64) {
	m.handlerLatency.WithLabelValues(chainID, kind).Observe(seconds)
}

func (m *Metrics) RecordPromotionAttempt(chainID, level, outcome string) {
	m.promotions.WithLabelValues(chainID, level, outcome).Inc()
}

func (m *Metrics) RecordSafetyHead(chainID, level string, blockNumber float64) {
	m.safetyHeads.WithLabelValues(chainID, level).Set(blockNumber)
}

func (m *Metrics) RecordSyncNodeReconnect(chainID string) {
	m.syncNodeRetries.WithLabelValues(chainID).Inc()
}

func (m *Metrics) RecordL1Reorg(depth float64) {
	m.l1ReorgDepth.Observe(depth)
}
