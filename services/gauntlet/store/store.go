// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists test runs and their results. Two implementations
// exist: an in-process map for tests and ephemeral deployments, and a
// Badger-backed store for durability across restarts. Both return deep
// copies, so callers can mutate what they get back without racing the
// store's own state.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
)

// ErrRunNotFound is returned when a run id has no stored record.
var ErrRunNotFound = errors.New("test run not found")

// RunStore is the persistence contract the runner and handlers share.
type RunStore interface {
	// CreateRun stores a new run record keyed by its id.
	CreateRun(ctx context.Context, run *datatypes.TestRun) error
	// GetRun fetches one run, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*datatypes.TestRun, error)
	// ListRuns pages through runs newest-first.
	ListRuns(ctx context.Context, skip, limit int) ([]*datatypes.TestRun, error)
	// UpdateRun overwrites a stored run, or ErrRunNotFound.
	UpdateRun(ctx context.Context, run *datatypes.TestRun) error
	// AppendResult stores one test result under its run.
	AppendResult(ctx context.Context, result *datatypes.TestResult) error
	// ResultsForRun returns a run's results in execution order.
	ResultsForRun(ctx context.Context, runID string) ([]*datatypes.TestResult, error)
	// Close releases any underlying resources.
	Close() error
}

// ComplianceScores folds a result set into per-category pass counts. A
// result counts as passed only on explicit success; failures and errors both
// count against the category. Computed on read, never stored.
func ComplianceScores(results []*datatypes.TestResult) map[string]datatypes.ComplianceScore {
	scores := make(map[string]datatypes.ComplianceScore)
	for _, r := range results {
		category := r.TestCategory
		if category == "" {
			category = "unknown"
		}
		s := scores[category]
		s.Total++
		if r.Status == datatypes.ResultStatusSuccess {
			s.Passed++
		}
		scores[category] = s
	}
	return scores
}
