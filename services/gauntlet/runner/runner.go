// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner executes test runs. One run is one background goroutine
// working through its test ids strictly in order; probes may fan out
// internally, but the run-level sequencing is what keeps result ordering
// and summary arithmetic trivially correct.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/notify"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/observability"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/probes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/registry"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/store"
	"github.com/AleutianAI/AleutianGauntlet/services/llm"
)

var (
	// ErrMissingRunID rejects run creation without a handshake-minted id.
	ErrMissingRunID = errors.New("test_run_id is required; obtain one from the websocket handshake")

	// ErrRunNotPending rejects execution of a run that already started.
	ErrRunNotPending = errors.New("test run is not in pending state")
)

// DefaultTestTimeout bounds one test's execution unless overridden.
const DefaultTestTimeout = 5 * time.Minute

// Publisher is the notification sink the runner reports progress to.
// *notify.Hub satisfies it; tests substitute a recorder.
type Publisher interface {
	Publish(runID string, event notify.Event)
}

// Config carries the runner's tunables.
type Config struct {
	// TestTimeout bounds each individual test. Zero means DefaultTestTimeout.
	TestTimeout time.Duration
}

// Runner owns run creation and execution.
type Runner struct {
	store    store.RunStore
	catalog  *registry.Registry
	units    *probes.UnitRegistry
	notifier Publisher
	metrics  *observability.RunMetrics
	tasks    *TaskTracker
	timeout  time.Duration

	// newClient is the adapter factory, swappable in tests.
	newClient func(llm.ModelConfig) (llm.ModelClient, error)
}

func New(
	runStore store.RunStore,
	catalog *registry.Registry,
	units *probes.UnitRegistry,
	notifier Publisher,
	metrics *observability.RunMetrics,
	cfg Config,
) *Runner {
	timeout := cfg.TestTimeout
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	return &Runner{
		store:     runStore,
		catalog:   catalog,
		units:     units,
		notifier:  notifier,
		metrics:   metrics,
		tasks:     NewTaskTracker(),
		timeout:   timeout,
		newClient: llm.NewModelClient,
	}
}

// Tasks exposes the in-flight run tracker.
func (r *Runner) Tasks() *TaskTracker {
	return r.tasks
}

// CreateRun validates the request and stores the run in pending state. It
// does not start execution; the handler launches Execute on a goroutine
// after the 201 response is committed.
func (r *Runner) CreateRun(ctx context.Context, req *datatypes.CreateRunRequest) (*datatypes.TestRun, error) {
	if req.TestRunID == "" {
		return nil, ErrMissingRunID
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &datatypes.TestRun{
		ID:               req.TestRunID,
		TargetID:         req.ModelSettings.ModelID,
		TestIDs:          append([]string(nil), req.TestIDs...),
		TargetParameters: req.TargetParameters(),
		TestParameters:   req.Parameters,
		Status:           datatypes.RunStatusPending,
		Summary: &datatypes.RunSummary{
			TotalTests:    len(req.TestIDs),
			TestingStatus: string(datatypes.RunStatusPending),
			Message:       "Test run created",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create test run: %w", err)
	}
	slog.Info("Test run created",
		"test_run_id", run.ID, "target_id", run.TargetID, "test_count", len(run.TestIDs))
	return run, nil
}

// Execute runs a pending test run to its terminal state. It is intended to
// be called on its own goroutine; all failures are absorbed into the run
// record and the notification stream rather than returned, except for the
// pending-state guard and the initial load.
func (r *Runner) Execute(ctx context.Context, runID string) error {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != datatypes.RunStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrRunNotPending, runID, run.Status)
	}

	r.tasks.Register(runID)
	defer r.tasks.Deregister(runID)
	if r.metrics != nil {
		r.metrics.ActiveRuns.Inc()
		defer r.metrics.ActiveRuns.Dec()
	}

	start := time.Now().UTC()
	run.StartTime = &start

	// Initialization phase: build the model adapter. A broken adapter
	// degrades to the fallback client instead of aborting, so a run always
	// produces a structurally complete result set.
	run.Status = datatypes.RunStatusInitializing
	run.Summary.TestingStatus = string(datatypes.RunStatusInitializing)
	run.Summary.Message = "Initializing model adapter"
	if err := r.persistAndNotify(ctx, run, "Initializing model adapter"); err != nil {
		return r.failRun(ctx, run, err)
	}

	client := r.buildClient(ctx, run)
	run.Summary.InitializationComplete = true

	run.Status = datatypes.RunStatusRunning
	run.Summary.TestingStatus = string(datatypes.RunStatusRunning)
	run.Summary.Message = "Executing tests"
	if err := r.persistAndNotify(ctx, run, "Executing tests"); err != nil {
		return r.failRun(ctx, run, err)
	}

	for _, testID := range run.TestIDs {
		result := r.executeTest(ctx, run, testID, client)
		if err := r.store.AppendResult(ctx, result); err != nil {
			return r.failRun(ctx, run, fmt.Errorf("failed to store result for %s: %w", testID, err))
		}

		run.Summary.Completed++
		switch result.Status {
		case datatypes.ResultStatusSuccess:
			run.Summary.Passed++
		case datatypes.ResultStatusFailure:
			run.Summary.Failed++
		default:
			run.Summary.Errors++
		}
		if r.metrics != nil {
			category := result.TestCategory
			if category == "" {
				category = "unknown"
			}
			r.metrics.TestResultsTotal.WithLabelValues(category, string(result.Status)).Inc()
		}

		run.Summary.Message = fmt.Sprintf("Completed %d of %d tests",
			run.Summary.Completed, run.Summary.TotalTests)
		if err := r.store.UpdateRun(ctx, run); err != nil {
			return r.failRun(ctx, run, fmt.Errorf("failed to update run after %s: %w", testID, err))
		}
		r.publish(run.ID, notify.TestResult(run.ID, result, run.Summary.Clone()))
		r.publish(run.ID, notify.StatusUpdate(run.ID, run.Status, run.Summary.Message, run.Summary.Clone()))
	}

	end := time.Now().UTC()
	run.EndTime = &end
	run.Status = datatypes.RunStatusCompleted
	run.Summary.TestingStatus = string(datatypes.RunStatusCompleted)
	run.Summary.CurrentTest = ""
	run.Summary.CurrentTestName = ""
	run.Summary.Message = "All tests completed"
	run.UpdatedAt = end
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return r.failRun(ctx, run, fmt.Errorf("failed to finalize run: %w", err))
	}
	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(string(datatypes.RunStatusCompleted)).Inc()
	}
	r.publish(run.ID, notify.RunComplete(run.ID, run.Summary.Clone()))
	slog.Info("Test run completed",
		"test_run_id", run.ID,
		"passed", run.Summary.Passed,
		"failed", run.Summary.Failed,
		"errors", run.Summary.Errors,
		"duration", end.Sub(start).String())
	return nil
}

// buildClient constructs the configured model adapter, falling back to the
// stub client when construction or the connection check fails. The failure
// detail lands in Summary.Error so callers can see the run degraded even
// though it still completes.
func (r *Runner) buildClient(ctx context.Context, run *datatypes.TestRun) llm.ModelClient {
	cfg := llm.ConfigFromTargetParameters(run.TargetID, run.TargetParameters)
	client, err := r.newClient(cfg)
	if err != nil {
		slog.Warn("Model adapter construction failed, using fallback client",
			"test_run_id", run.ID, "target_id", run.TargetID, "error", err)
		run.Summary.Error = fmt.Sprintf("Model adapter initialization failed, tests ran against fallback client: %v", err)
		return llm.NewFallbackClient(run.TargetID)
	}
	if err := client.ValidateConnection(ctx); err != nil {
		slog.Warn("Model connection check failed, using fallback client",
			"test_run_id", run.ID, "target_id", run.TargetID, "error", err)
		run.Summary.Error = fmt.Sprintf("Model connection check failed, tests ran against fallback client: %v", err)
		return llm.NewFallbackClient(run.TargetID)
	}
	return client
}

// executeTest runs one test id to exactly one result record. Registry
// misses, missing units, crashes, and timeouts all yield synthetic error
// results so the summary arithmetic never loses a test.
func (r *Runner) executeTest(ctx context.Context, run *datatypes.TestRun, testID string, client llm.ModelClient) *datatypes.TestResult {
	info, known := r.catalog.GetTest(testID)

	run.Summary.CurrentTest = testID
	if known {
		run.Summary.CurrentTestName = info.Name
	} else {
		run.Summary.CurrentTestName = testID
	}
	run.Summary.Message = "Running " + run.Summary.CurrentTestName
	run.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateRun(ctx, run); err != nil {
		slog.Error("Failed to persist progress update", "test_run_id", run.ID, "error", err)
	}
	r.publish(run.ID, notify.StatusUpdate(run.ID, run.Status, run.Summary.Message, run.Summary.Clone()))

	if !known {
		slog.Warn("Requested test not in registry", "test_run_id", run.ID, "test_id", testID)
		return errorResult(run.ID, testID, "", "",
			fmt.Sprintf("Test %s not found in registry", testID))
	}
	unit, ok := r.units.Get(testID)
	if !ok {
		slog.Warn("Catalogued test has no executable unit", "test_run_id", run.ID, "test_id", testID)
		return errorResult(run.ID, testID, info.Name, info.Category,
			fmt.Sprintf("Test %s not implemented", testID))
	}

	testParams := mergeParams(info.DefaultConfig, run.TestParameters[testID])

	testCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	started := time.Now()
	raw, err := runUnit(testCtx, unit, client, run.TargetParameters, testParams)
	if r.metrics != nil {
		r.metrics.TestDurationSeconds.WithLabelValues(testID).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		slog.Error("Test execution failed",
			"test_run_id", run.ID, "test_id", testID, "error", err)
		return errorResult(run.ID, testID, info.Name, info.Category, err.Error())
	}
	return normalizeResult(run.ID, info, raw)
}

// runUnit invokes a probe with panic isolation. A panicking unit damages
// only its own result.
func runUnit(
	ctx context.Context,
	unit probes.Probe,
	client llm.ModelClient,
	modelParams map[string]any,
	testParams map[string]any,
) (result *probes.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("test unit panicked: %v", rec)
		}
	}()
	result, err = unit.Run(ctx, client, modelParams, testParams)
	if err == nil && result == nil {
		err = errors.New("test unit returned no result")
	}
	return result, err
}

// mergeParams overlays a run's per-test parameters on the registry default
// config. Neither input is mutated.
func mergeParams(defaults, overrides map[string]any) map[string]any {
	if len(defaults) == 0 && len(overrides) == 0 {
		return nil
	}
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// persistAndNotify stores the run and emits a status frame for a lifecycle
// transition.
func (r *Runner) persistAndNotify(ctx context.Context, run *datatypes.TestRun, message string) error {
	run.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return err
	}
	r.publish(run.ID, notify.StatusUpdate(run.ID, run.Status, message, run.Summary.Clone()))
	return nil
}

// failRun drives a run to the failed terminal state after an infrastructure
// error. Probe-level errors never land here; they become error results.
func (r *Runner) failRun(ctx context.Context, run *datatypes.TestRun, cause error) error {
	slog.Error("Test run failed", "test_run_id", run.ID, "error", cause)
	end := time.Now().UTC()
	run.EndTime = &end
	run.Status = datatypes.RunStatusFailed
	run.Summary.TestingStatus = string(datatypes.RunStatusFailed)
	run.Summary.Error = cause.Error()
	run.Summary.Message = "Test run failed"
	run.UpdatedAt = end
	if err := r.store.UpdateRun(ctx, run); err != nil {
		slog.Error("Failed to persist failed state", "test_run_id", run.ID, "error", err)
	}
	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(string(datatypes.RunStatusFailed)).Inc()
	}
	r.publish(run.ID, notify.RunFailed(run.ID, cause.Error(), run.Summary.Clone()))
	return cause
}

func (r *Runner) publish(runID string, event notify.Event) {
	if r.metrics != nil {
		r.metrics.NotificationsTotal.WithLabelValues(event.Type).Inc()
	}
	r.notifier.Publish(runID, event)
}
