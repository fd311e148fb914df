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
	"sync"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
)

// MemoryStore keeps runs and results in process memory. Insertion order is
// tracked separately so listing can page newest-first without sorting.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*datatypes.TestRun
	results map[string][]*datatypes.TestResult
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*datatypes.TestRun),
		results: make(map[string][]*datatypes.TestResult),
	}
}

// CreateRun implements RunStore.
func (s *MemoryStore) CreateRun(_ context.Context, run *datatypes.TestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("test run %s already exists", run.ID)
	}
	s.runs[run.ID] = run.Clone()
	s.order = append(s.order, run.ID)
	return nil
}

// GetRun implements RunStore.
func (s *MemoryStore) GetRun(_ context.Context, runID string) (*datatypes.TestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

// ListRuns implements RunStore.
func (s *MemoryStore) ListRuns(_ context.Context, skip, limit int) ([]*datatypes.TestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*datatypes.TestRun, 0, limit)
	// order is oldest-first; walk it backwards.
	for i := len(s.order) - 1 - skip; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[s.order[i]].Clone())
	}
	return out, nil
}

// UpdateRun implements RunStore.
func (s *MemoryStore) UpdateRun(_ context.Context, run *datatypes.TestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// AppendResult implements RunStore.
func (s *MemoryStore) AppendResult(_ context.Context, result *datatypes.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[result.TestRunID]; !ok {
		return ErrRunNotFound
	}
	s.results[result.TestRunID] = append(s.results[result.TestRunID], result.Clone())
	return nil
}

// ResultsForRun implements RunStore.
func (s *MemoryStore) ResultsForRun(_ context.Context, runID string) ([]*datatypes.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	stored := s.results[runID]
	out := make([]*datatypes.TestResult, 0, len(stored))
	for _, r := range stored {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Close implements RunStore.
func (s *MemoryStore) Close() error {
	return nil
}
