// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package obsv centralizes the engine's ambient observability:
// Prometheus metrics, OpenTelemetry tracing helpers, and slog logger
// construction, so every other package pulls from one place instead
// of hand-rolling its own instrumentation.
package obsv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts score() calls by outcome (ok, empty_query,
	// unknown_term, cancelled, internal_error).
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boqa",
		Subsystem: "query",
		Name:      "total",
		Help:      "Total score() calls by outcome",
	}, []string{"outcome"})

	// ItemsScoredTotal counts items ranked across all queries.
	ItemsScoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boqa",
		Subsystem: "query",
		Name:      "items_scored_total",
		Help:      "Total items ranked across all score() calls",
	})

	// QueryLatencySeconds measures end-to-end score() latency.
	QueryLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "boqa",
		Subsystem: "query",
		Name:      "latency_seconds",
		Help:      "End-to-end score() latency",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// WorkerLatencySeconds measures per-worker-shard inference latency.
	WorkerLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boqa",
		Subsystem: "inference",
		Name:      "worker_latency_seconds",
		Help:      "Per-worker inference shard latency",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"mode"})

	// NumericFaultsTotal counts getNodeCase FAULT classifications skipped mid-run.
	NumericFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boqa",
		Subsystem: "inference",
		Name:      "numeric_faults_total",
		Help:      "Total FAULT node-case classifications encountered and skipped",
	})

	// CacheHitsTotal / CacheMissesTotal count the persisted query/score-distribution cache.
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boqa",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	})
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boqa",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	})
)

// RecordQuery records a completed score() call.
func RecordQuery(outcome string, itemsScored int, elapsed time.Duration) {
	QueriesTotal.WithLabelValues(outcome).Inc()
	ItemsScoredTotal.Add(float64(itemsScored))
	QueryLatencySeconds.Observe(elapsed.Seconds())
}

// RecordWorkerLatency records one worker shard's inference duration.
func RecordWorkerLatency(mode string, elapsed time.Duration) {
	WorkerLatencySeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}
