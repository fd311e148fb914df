// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"sync"
	"time"
)

// TaskTracker records which runs are currently executing. The status
// endpoint uses it to distinguish "still going" from "finished but the
// store update hasn't landed yet", and shutdown uses the count to decide
// whether draining is done.
type TaskTracker struct {
	mu    sync.RWMutex
	tasks map[string]time.Time
}

func NewTaskTracker() *TaskTracker {
	return &TaskTracker{tasks: make(map[string]time.Time)}
}

// Register marks a run as executing.
func (t *TaskTracker) Register(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[runID] = time.Now().UTC()
}

// Deregister clears a run. Clearing an unknown id is a no-op.
func (t *TaskTracker) Deregister(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, runID)
}

// Active reports whether a run is currently executing.
func (t *TaskTracker) Active(runID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.tasks[runID]
	return ok
}

// Count returns the number of executing runs.
func (t *TaskTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tasks)
}
