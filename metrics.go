package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the server's Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	TickDuration   prometheus.Histogram
	Entities       prometheus.Gauge
	Sessions       prometheus.Gauge
	Clients        prometheus.Gauge
	Waves          prometheus.Counter
	PilotDeaths    prometheus.Counter
	EnemiesKilled  prometheus.Counter
	StuckRecovered prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg gets a fresh
// registry so tests and multiple servers never collide on the global one.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "starfall_tick_duration_seconds",
			Help:    "Wall time spent in one simulation tick.",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
		Entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "starfall_entities",
			Help: "Active actors across all sessions.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "starfall_sessions",
			Help: "Live simulation sessions.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "starfall_connected_clients",
			Help: "Open websocket connections.",
		}),
		Waves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starfall_waves_started_total",
			Help: "Enemy waves spawned.",
		}),
		PilotDeaths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starfall_pilot_deaths_total",
			Help: "Player ships destroyed.",
		}),
		EnemiesKilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starfall_enemies_destroyed_total",
			Help: "Enemy ships destroyed.",
		}),
		StuckRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starfall_stuck_recoveries_total",
			Help: "Actors teleported after staying outside the arena.",
		}),
	}
	for name, c := range map[string]prometheus.Collector{
		"tick_duration":   m.TickDuration,
		"entities":        m.Entities,
		"sessions":        m.Sessions,
		"clients":         m.Clients,
		"waves":           m.Waves,
		"pilot_deaths":    m.PilotDeaths,
		"enemies_killed":  m.EnemiesKilled,
		"stuck_recovered": m.StuckRecovered,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
