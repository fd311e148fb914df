// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the gauntlet service.
//
// This file contains the run and result records that flow through the
// run store, the runner, and the notification channel.
package datatypes

import (
	"time"
)

// RunStatus is the lifecycle state of a test run.
type RunStatus string

const (
	RunStatusPending      RunStatus = "pending"
	RunStatusInitializing RunStatus = "initializing"
	RunStatusRunning      RunStatus = "running"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusFailed       RunStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ResultStatus is the outcome of a single executed test.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusFailure ResultStatus = "failure"
	ResultStatusError   ResultStatus = "error"
)

// RunSummary is the mutable aggregate rewritten after every test completion.
// It has exactly one writer at a time: the run's own background goroutine.
// Invariant: Completed == Passed + Failed + Errors, Completed <= TotalTests.
type RunSummary struct {
	TotalTests             int    `json:"total_tests"`
	Completed              int    `json:"completed"`
	Passed                 int    `json:"passed"`
	Failed                 int    `json:"failed"`
	Errors                 int    `json:"errors"`
	CurrentTest            string `json:"current_test,omitempty"`
	CurrentTestName        string `json:"current_test_name,omitempty"`
	Message                string `json:"message,omitempty"`
	TestingStatus          string `json:"testing_status,omitempty"`
	InitializationComplete bool   `json:"initialization_complete"`
	Error                  string `json:"error,omitempty"`
}

// Clone returns an independent copy of the summary.
func (s *RunSummary) Clone() *RunSummary {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// TestRun is one request to execute a batch of tests against one model
// configuration. The ID is caller-supplied: it is minted by the websocket
// subscription handshake before the run is created, so that progress
// notifications have a subscriber from the first event on.
type TestRun struct {
	ID               string                    `json:"id"`
	TargetID         string                    `json:"target_id"`
	TestIDs          []string                  `json:"test_ids"`
	TargetParameters map[string]any            `json:"target_parameters"`
	TestParameters   map[string]map[string]any `json:"test_parameters,omitempty"`
	Status           RunStatus                 `json:"status"`
	StartTime        *time.Time                `json:"start_time,omitempty"`
	EndTime          *time.Time                `json:"end_time,omitempty"`
	Summary          *RunSummary               `json:"summary_results,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
// Map values inside the parameter maps are shared; callers treat parameter
// blocks as read-only after run creation.
func (r *TestRun) Clone() *TestRun {
	if r == nil {
		return nil
	}
	out := *r
	out.TestIDs = append([]string(nil), r.TestIDs...)
	if r.TargetParameters != nil {
		out.TargetParameters = make(map[string]any, len(r.TargetParameters))
		for k, v := range r.TargetParameters {
			out.TargetParameters[k] = v
		}
	}
	if r.TestParameters != nil {
		out.TestParameters = make(map[string]map[string]any, len(r.TestParameters))
		for k, v := range r.TestParameters {
			out.TestParameters[k] = v
		}
	}
	if r.StartTime != nil {
		t := *r.StartTime
		out.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	out.Summary = r.Summary.Clone()
	return &out
}

// TestResult is the canonical, immutable record of one executed test.
// Exactly one exists per requested test id per run: registry misses, missing
// units, and unit crashes all still produce a synthetic error result.
type TestResult struct {
	ID           string         `json:"id"`
	TestRunID    string         `json:"test_run_id"`
	TestID       string         `json:"test_id"`
	TestCategory string         `json:"test_category"`
	TestName     string         `json:"test_name"`
	Status       ResultStatus   `json:"status"`
	Score        float64        `json:"score"`
	Metrics      map[string]any `json:"metrics"`
	IssuesFound  int            `json:"issues_found"`
	Analysis     map[string]any `json:"analysis,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Clone returns an independent copy of the result. Metrics and Analysis
// values are shared; results are immutable after creation.
func (r *TestResult) Clone() *TestResult {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// ComplianceScore is a per-category pass/total tally derived on read from a
// run's result set. It is never persisted.
type ComplianceScore struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}
