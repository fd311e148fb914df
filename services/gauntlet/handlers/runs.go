// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers wires the HTTP surface to the runner and store.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/runner"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/store"
)

// RunHandler serves the test-run endpoints.
type RunHandler struct {
	runner *runner.Runner
	store  store.RunStore
}

func NewRunHandler(r *runner.Runner, s store.RunStore) *RunHandler {
	return &RunHandler{runner: r, store: s}
}

// CreateRun handles POST /v1/tests/run. The run executes on a background
// goroutine; the response commits before the first test starts.
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req datatypes.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	run, err := h.runner.CreateRun(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, runner.ErrMissingRunID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Detached from the request context: the run outlives this HTTP call.
	go func() {
		if err := h.runner.Execute(context.Background(), run.ID); err != nil {
			slog.Error("Run execution failed", "test_run_id", run.ID, "error", err)
		}
	}()

	c.JSON(http.StatusCreated, datatypes.CreateRunResponse{
		TaskID:  run.ID,
		Status:  string(run.Status),
		Message: "Test run created",
		TestRun: run,
	})
}

// ListRuns handles GET /v1/tests/runs with skip/limit paging, newest first.
func (h *RunHandler) ListRuns(c *gin.Context) {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 20)
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > datatypes.MaxListLimit {
		limit = datatypes.MaxListLimit
	}

	runs, err := h.store.ListRuns(c.Request.Context(), skip, limit)
	if err != nil {
		slog.Error("Failed to list test runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list test runs"})
		return
	}
	c.JSON(http.StatusOK, datatypes.RunListResponse{TestRuns: runs, Count: len(runs)})
}

// GetRun handles GET /v1/tests/runs/:id.
func (h *RunHandler) GetRun(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetResults handles GET /v1/tests/runs/:id/results and its legacy alias
// GET /v1/tests/results/:id. Compliance scores are derived here, on read.
func (h *RunHandler) GetResults(c *gin.Context) {
	runID := c.Param("id")
	results, err := h.store.ResultsForRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "test run not found"})
			return
		}
		slog.Error("Failed to load results", "test_run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load results"})
		return
	}
	c.JSON(http.StatusOK, datatypes.ResultListResponse{
		Results:          results,
		ComplianceScores: store.ComplianceScores(results),
	})
}

// GetStatus handles GET /v1/tests/status/:id, the lightweight polling view
// for clients without a live websocket.
func (h *RunHandler) GetStatus(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	progress := 0
	if run.Summary != nil && run.Summary.TotalTests > 0 {
		progress = 100 * run.Summary.Completed / run.Summary.TotalTests
	}
	resp := datatypes.RunStatusResponse{
		TaskID:   run.ID,
		Status:   string(run.Status),
		Progress: progress,
	}
	if run.Summary != nil {
		resp.Message = run.Summary.Message
		resp.ResultsCount = run.Summary.Completed
		resp.InitializationComplete = run.Summary.InitializationComplete
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RunHandler) loadRun(c *gin.Context) (*datatypes.TestRun, bool) {
	runID := c.Param("id")
	run, err := h.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "test run not found"})
			return nil, false
		}
		slog.Error("Failed to load test run", "test_run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load test run"})
		return nil, false
	}
	return run, true
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
