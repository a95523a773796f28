// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astacus_snapshot_duration_seconds",
			Help:    "Time taken to hash-mirror a node's source directory",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	snapshotChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "astacus_snapshot_changes_total",
			Help: "Total number of files created, updated, or removed across all snapshot runs",
		},
	)

	snapshotHashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astacus_snapshot_hash_duration_seconds",
			Help:    "Time taken to blake2s-hash one file during a snapshot",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 5},
		},
	)

	uploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astacus_snapshot_upload_duration_seconds",
			Help:    "Time taken to upload requested hexdigests to object storage",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	downloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astacus_snapshot_download_duration_seconds",
			Help:    "Time taken to materialize a SnapshotState from object storage",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
)
