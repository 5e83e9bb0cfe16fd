// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter publishes kernel reports as Prometheus gauges, for a
// build-farm deployment of the driver that keeps the process alive and
// scrapes it. It is additive to the stdout diagnostics; a one-shot
// compile never needs it.
type Exporter struct {
	totalWeight  *prometheus.GaugeVec
	dataFlowPath *prometheus.GaugeVec
	cfgPath      *prometheus.GaugeVec
	cfgLongest   *prometheus.GaugeVec
}

// NewExporter creates the gauge vectors and registers them with reg.
func NewExporter(reg prometheus.Registerer) *Exporter {
	e := &Exporter{
		totalWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nanotube",
			Name:      "kernel_total_weight",
			Help:      "Summed instruction weight of the kernel function.",
		}, []string{"kernel"}),
		dataFlowPath: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nanotube",
			Name:      "kernel_dataflow_critical_path",
			Help:      "Weight of the heaviest def-use chain in the kernel.",
		}, []string{"kernel"}),
		cfgPath: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nanotube",
			Name:      "kernel_cfg_critical_path",
			Help:      "Weight of the heaviest entry-to-exit block path.",
		}, []string{"kernel"}),
		cfgLongest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nanotube",
			Name:      "kernel_cfg_longest_path",
			Help:      "Longest entry-to-exit path in basic blocks.",
		}, []string{"kernel"}),
	}
	reg.MustRegister(e.totalWeight, e.dataFlowPath, e.cfgPath, e.cfgLongest)
	return e
}

// Observe publishes one report.
func (e *Exporter) Observe(r *Report) {
	labels := prometheus.Labels{"kernel": r.Function}
	e.totalWeight.With(labels).Set(float64(r.TotalWeight))
	e.dataFlowPath.With(labels).Set(float64(r.DataFlowCriticalPath))
	e.cfgPath.With(labels).Set(float64(r.CFGCriticalPath))
	e.cfgLongest.With(labels).Set(float64(r.CFGLongestPath))
}
