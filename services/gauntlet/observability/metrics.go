// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gauntlet service.
//
// Metrics cover run lifecycle (started/completed/failed), per-test outcomes
// by category and status, test wall time, and the in-flight run gauge. All
// operations are thread-safe via Prometheus's internal locking; expose them
// through the /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace  = "aleutian"
	gauntletSubsystem = "gauntlet"
)

// RunMetrics holds the Prometheus instruments for run execution.
type RunMetrics struct {
	// RunsTotal counts run outcomes. Labels: status (completed, failed)
	RunsTotal *prometheus.CounterVec

	// TestResultsTotal counts individual test outcomes.
	// Labels: category (security, robustness, bias, unknown),
	// status (success, failure, error)
	TestResultsTotal *prometheus.CounterVec

	// TestDurationSeconds measures wall time per test execution.
	// Labels: test_id
	TestDurationSeconds *prometheus.HistogramVec

	// ActiveRuns tracks runs currently executing.
	ActiveRuns prometheus.Gauge

	// NotificationsTotal counts websocket frames published.
	// Labels: event_type
	NotificationsTotal *prometheus.CounterVec
}

// NewRunMetrics creates and registers the instruments against reg. Pass
// prometheus.DefaultRegisterer in production; tests hand in a private
// registry so parallel tests don't collide on registration.
func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	factory := promauto.With(reg)
	return &RunMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gauntletSubsystem,
				Name:      "runs_total",
				Help:      "Total test runs by terminal status",
			},
			[]string{"status"},
		),

		TestResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gauntletSubsystem,
				Name:      "test_results_total",
				Help:      "Total individual test results by category and status",
			},
			[]string{"category", "status"},
		),

		TestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gauntletSubsystem,
				Name:      "test_duration_seconds",
				Help:      "Wall time per test execution in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"test_id"},
		),

		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gauntletSubsystem,
				Name:      "active_runs",
				Help:      "Number of test runs currently executing",
			},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gauntletSubsystem,
				Name:      "notifications_total",
				Help:      "Total websocket notification frames published by event type",
			},
			[]string{"event_type"},
		),
	}
}
