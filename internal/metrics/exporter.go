// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exports the engine's outcome counters and table occupancy
// to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/bastion/internal/engine"
	"grimm.is/bastion/internal/engine/state"
	"grimm.is/bastion/internal/logging"
)

// Exporter implements prometheus.Collector over the engine's counters. The
// counter array itself stays the source of truth; collection reads it
// without copying into intermediate metric state.
type Exporter struct {
	engine *engine.Engine

	outcomeDesc *prometheus.Desc
	tableDesc   *prometheus.Desc
}

// NewExporter creates a collector for the given engine.
func NewExporter(eng *engine.Engine) *Exporter {
	return &Exporter{
		engine: eng,
		outcomeDesc: prometheus.NewDesc(
			"bastion_packets_total",
			"Packet decisions by outcome category",
			[]string{"outcome"}, nil,
		),
		tableDesc: prometheus.NewDesc(
			"bastion_table_entries",
			"Current number of entries per shared table",
			[]string{"table"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.outcomeDesc
	ch <- e.tableDesc
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	counters := e.engine.Counters()
	for _, c := range state.AllCounters() {
		ch <- prometheus.MustNewConstMetric(
			e.outcomeDesc, prometheus.CounterValue,
			float64(counters.Get(c)), c.String(),
		)
	}

	tables := map[string]int{
		"endpoints":  e.engine.Registry().Len(),
		"blacklist":  e.engine.Blacklist().Len(),
		"flows":      e.engine.Flows().Len(),
		"challenges": e.engine.Gate().Len(),
		"sources":    e.engine.Limiter().Len(),
	}
	for name, n := range tables {
		ch <- prometheus.MustNewConstMetric(
			e.tableDesc, prometheus.GaugeValue,
			float64(n), name,
		)
	}
}

// Server serves the metrics endpoint.
type Server struct {
	logger     *logging.Logger
	httpServer *http.Server
	registry   *prometheus.Registry
}

// NewServer registers an exporter for eng on a fresh registry.
func NewServer(eng *engine.Engine, logger *logging.Logger) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewExporter(eng))
	return &Server{logger: logger, registry: reg}
}

// Handler returns the /metrics handler.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Start serves /metrics on addr.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.logger.Info("metrics listening", "addr", addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
	return nil
}

// Close shuts the metrics server down.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}
