// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/runner"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	tasks *runner.TaskTracker
}

func NewHealthHandler(tasks *runner.TaskTracker) *HealthHandler {
	return &HealthHandler{tasks: tasks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"active_runs": h.tasks.Count(),
	})
}
