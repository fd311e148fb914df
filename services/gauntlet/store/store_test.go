// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
)

// storeUnderTest builds each implementation behind the shared contract.
func storesUnderTest(t *testing.T) map[string]RunStore {
	t.Helper()
	badgerStore, err := NewBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { badgerStore.Close() })
	memStore := NewMemoryStore()
	t.Cleanup(func() { memStore.Close() })
	return map[string]RunStore{
		"memory": memStore,
		"badger": badgerStore,
	}
}

func newRun(id string, createdAt time.Time) *datatypes.TestRun {
	return &datatypes.TestRun{
		ID:               id,
		TargetID:         "llama3.1:8b",
		TestIDs:          []string{"prompt_injection_test"},
		TargetParameters: map[string]any{"model_id": "llama3.1:8b"},
		Status:           datatypes.RunStatusPending,
		Summary:          &datatypes.RunSummary{TotalTests: 1},
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func newResult(runID, testID string) *datatypes.TestResult {
	return &datatypes.TestResult{
		ID:           testID + "-result",
		TestRunID:    runID,
		TestID:       testID,
		TestCategory: "security",
		TestName:     "Some Test",
		Status:       datatypes.ResultStatusSuccess,
		Score:        88,
		Metrics:      map[string]any{},
		CreatedAt:    time.Now().UTC(),
	}
}

func TestRunStore_CreateAndGet(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := newRun("run-create-"+name, time.Now().UTC())
			require.NoError(t, s.CreateRun(ctx, run))

			got, err := s.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, run.ID, got.ID)
			assert.Equal(t, datatypes.RunStatusPending, got.Status)
			assert.Equal(t, 1, got.Summary.TotalTests)

			// Duplicate creation is rejected.
			assert.Error(t, s.CreateRun(ctx, run))
		})
	}
}

func TestRunStore_GetMissing(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetRun(context.Background(), "no-such-run")
			assert.ErrorIs(t, err, ErrRunNotFound)
		})
	}
}

func TestRunStore_Update(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := newRun("run-update-"+name, time.Now().UTC())
			require.NoError(t, s.CreateRun(ctx, run))

			run.Status = datatypes.RunStatusRunning
			run.Summary.Completed = 1
			require.NoError(t, s.UpdateRun(ctx, run))

			got, err := s.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, datatypes.RunStatusRunning, got.Status)
			assert.Equal(t, 1, got.Summary.Completed)

			ghost := newRun("ghost-"+name, time.Now().UTC())
			assert.ErrorIs(t, s.UpdateRun(ctx, ghost), ErrRunNotFound)
		})
	}
}

func TestRunStore_GetReturnsCopy(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := newRun("run-copy-"+name, time.Now().UTC())
			require.NoError(t, s.CreateRun(ctx, run))

			got, err := s.GetRun(ctx, run.ID)
			require.NoError(t, err)
			got.Summary.Completed = 42

			again, err := s.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, again.Summary.Completed,
				"mutating a fetched run must not change stored state")
		})
	}
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC()
			for i := 0; i < 5; i++ {
				run := newRun(fmt.Sprintf("run-list-%s-%d", name, i), base.Add(time.Duration(i)*time.Millisecond))
				require.NoError(t, s.CreateRun(ctx, run))
			}

			runs, err := s.ListRuns(ctx, 0, 3)
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, fmt.Sprintf("run-list-%s-4", name), runs[0].ID)
			assert.Equal(t, fmt.Sprintf("run-list-%s-3", name), runs[1].ID)

			// Paging.
			page2, err := s.ListRuns(ctx, 3, 3)
			require.NoError(t, err)
			require.Len(t, page2, 2)
			assert.Equal(t, fmt.Sprintf("run-list-%s-1", name), page2[0].ID)

			// Skip past the end.
			empty, err := s.ListRuns(ctx, 100, 3)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestRunStore_Results(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := newRun("run-results-"+name, time.Now().UTC())
			require.NoError(t, s.CreateRun(ctx, run))

			for _, testID := range []string{"first_test", "second_test", "third_test"} {
				require.NoError(t, s.AppendResult(ctx, newResult(run.ID, testID)))
			}

			results, err := s.ResultsForRun(ctx, run.ID)
			require.NoError(t, err)
			require.Len(t, results, 3)
			assert.Equal(t, "first_test", results[0].TestID)
			assert.Equal(t, "second_test", results[1].TestID)
			assert.Equal(t, "third_test", results[2].TestID)

			// Appending to a missing run fails.
			assert.ErrorIs(t, s.AppendResult(ctx, newResult("no-such-run", "x_test")), ErrRunNotFound)
			_, err = s.ResultsForRun(ctx, "no-such-run")
			assert.ErrorIs(t, err, ErrRunNotFound)
		})
	}
}

func TestRunStore_ResultsEmptyNotNil(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := newRun("run-noresults-"+name, time.Now().UTC())
			require.NoError(t, s.CreateRun(ctx, run))

			results, err := s.ResultsForRun(ctx, run.ID)
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Empty(t, results)
		})
	}
}

func TestComplianceScores(t *testing.T) {
	results := []*datatypes.TestResult{
		{TestCategory: "security", Status: datatypes.ResultStatusSuccess},
		{TestCategory: "security", Status: datatypes.ResultStatusFailure},
		{TestCategory: "bias", Status: datatypes.ResultStatusSuccess},
		{TestCategory: "bias", Status: datatypes.ResultStatusError},
		{TestCategory: "", Status: datatypes.ResultStatusSuccess},
	}
	scores := ComplianceScores(results)

	assert.Equal(t, datatypes.ComplianceScore{Total: 2, Passed: 1}, scores["security"])
	assert.Equal(t, datatypes.ComplianceScore{Total: 2, Passed: 1}, scores["bias"])
	assert.Equal(t, datatypes.ComplianceScore{Total: 1, Passed: 1}, scores["unknown"])
	assert.Empty(t, ComplianceScores(nil))
}
