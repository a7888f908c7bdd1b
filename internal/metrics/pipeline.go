// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs by kind and outcome.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_jobs_total",
		Help: "Total jobs executed by kind and outcome",
	}, []string{"kind", "outcome"})

	// JobDuration tracks end-to-end job execution time.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidforge_job_duration_seconds",
		Help:    "Duration of job executions",
		Buckets: prometheus.ExponentialBuckets(0.1, 2.0, 14), // 100ms to ~27m
	}, []string{"kind"})

	// LockContention counts lock acquisitions that were skipped.
	LockContention = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidforge_lock_contention_total",
		Help: "Jobs skipped because the per-asset lock was held",
	})

	// RenditionsEncoded counts encoded renditions by height.
	RenditionsEncoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_renditions_encoded_total",
		Help: "Renditions encoded by ladder height",
	}, []string{"height"})

	// FramesScored counts frames scored by the moderation classifier.
	FramesScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidforge_moderation_frames_scored_total",
		Help: "Frames scored by the moderation classifier",
	})

	// FramesFlagged counts frames flagged by the moderation engine.
	FramesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidforge_moderation_frames_flagged_total",
		Help: "Frames flagged by the moderation engine",
	})

	// ToolFailures counts external tool failures by tool.
	ToolFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_tool_failures_total",
		Help: "External tool invocation failures",
	}, []string{"tool"})

	// EventsPublished counts pipeline events by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidforge_events_published_total",
		Help: "State-change and progress events published",
	}, []string{"type"})
)
