// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	walWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_wal_writes_total",
		Help: "Audit records written to the spool",
	}, []string{"kind", "status"})

	walReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_wal_replays_total",
		Help: "Spool replay attempts by result",
	}, []string{"result"}) // success, failure

	walDiscardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_wal_discarded_total",
		Help: "Spooled records discarded without reaching the store",
	}, []string{"reason"}) // expired, max_retries, corrupt

	walPendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_wal_pending_entries",
		Help: "Records waiting in the spool",
	})

	walWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_wal_write_latency_seconds",
		Help:    "Spool write latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
)

func recordWrite(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	walWritesTotal.WithLabelValues(kind, status).Inc()
}

func recordReplay(err error) {
	if err != nil {
		walReplaysTotal.WithLabelValues("failure").Inc()
		return
	}
	walReplaysTotal.WithLabelValues("success").Inc()
}

func recordDiscard(reason string) {
	walDiscardedTotal.WithLabelValues(reason).Inc()
}
