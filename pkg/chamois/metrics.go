// Prometheus metrics for the Chamois MMU orchestrator.
//
// Copyright (C) 2026  Chamois Host Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package chamois

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters for the tool-change life cycle. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	toolChanges   prometheus.Counter
	loadRetries   prometheus.Counter
	unloadRetries prometheus.Counter
	linkErrors    prometheus.Counter
	seqErrors     *prometheus.CounterVec
	loadedTool    prometheus.Gauge
}

// NewMetrics registers the chamois metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		toolChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "chamois_tool_changes_total",
			Help: "Completed tool changes.",
		}),
		loadRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "chamois_load_retries_total",
			Help: "Load loop iterations that did not yet report filament caught.",
		}),
		unloadRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "chamois_unload_retries_total",
			Help: "Unload loop iterations that did not yet report filament clear.",
		}),
		linkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "chamois_link_errors_total",
			Help: "I/O failures on the MMU connection.",
		}),
		seqErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chamois_sequence_errors_total",
			Help: "Aborted life-cycle sequences by error kind.",
		}, []string{"kind"}),
		loadedTool: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chamois_loaded_tool",
			Help: "Currently loaded tool index, -1 when none.",
		}),
	}
}

func (m *Metrics) noteToolChange() {
	if m == nil {
		return
	}
	m.toolChanges.Inc()
}

func (m *Metrics) noteRetry(phase string) {
	if m == nil {
		return
	}
	if phase == "load" {
		m.loadRetries.Inc()
	} else {
		m.unloadRetries.Inc()
	}
}

func (m *Metrics) noteLinkError() {
	if m == nil {
		return
	}
	m.linkErrors.Inc()
}

func (m *Metrics) noteSequenceError(kind string) {
	if m == nil {
		return
	}
	m.seqErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) noteLoadedTool(tool int) {
	if m == nil {
		return
	}
	m.loadedTool.Set(float64(tool))
}
