// Package metrics registers Prometheus collectors for Piecework.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "piecework"

// Metrics holds the Piecework collectors and their registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Dispatched counts form operations by action and outcome.
	Dispatched *prometheus.CounterVec

	// Alarms counts access alarms by severity.
	Alarms *prometheus.CounterVec

	// Exports counts task search exports by media type.
	Exports *prometheus.CounterVec
}

// New creates and registers the collectors in a new registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "dispatched_total",
			Help:      "Form operations dispatched by action and outcome.",
		}, []string{"action", "outcome"}),
		Alarms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "alarms_total",
			Help:      "Access alarms raised by severity.",
		}, []string{"severity"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "exports_total",
			Help:      "Task search results served by media type.",
		}, []string{"media_type"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Dispatched,
		m.Alarms,
		m.Exports,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
