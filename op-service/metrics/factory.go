// Package metrics provides a thin convenience layer over
// prometheus/client_golang, following the same registry+factory split used
// throughout the op-* binaries: one process-wide registry, one factory that
// registers new collectors against it and returns them ready to use.
package metrics

import "github.com/prometheus/client_golang/prometheus"

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

type Factory struct {
	registry *prometheus.Registry
}

func With(registry *prometheus.Registry) Factory {
	return Factory{registry: registry}
}

func (f Factory) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.registry.MustRegister(g)
	return g
}

func (f Factory) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	f.registry.MustRegister(g)
	return g
}

func (f Factory) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.registry.MustRegister(c)
	return c
}

func (f Factory) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.registry.MustRegister(h)
	return h
}
