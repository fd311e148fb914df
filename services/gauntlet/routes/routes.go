// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/handlers"
)

// SetupRoutes registers all gauntlet endpoints with the router.
//
// Run Endpoints:
//
//	POST /v1/tests/run - Create and start a test run
//	GET  /v1/tests/runs - List runs (skip/limit, newest first)
//	GET  /v1/tests/runs/:id - Get one run
//	GET  /v1/tests/runs/:id/results - Results with compliance scores
//	GET  /v1/tests/results/:id - Legacy alias for run results
//	GET  /v1/tests/status/:id - Lightweight polling view
//
// Catalog Endpoints:
//
//	GET  /v1/tests - Full catalog with default configs
//	GET  /v1/tests/registry - Filterable catalog view
//	GET  /v1/tests/model-tests - Catalog narrowed by modality/sub-type
//	GET  /v1/tests/categories - Distinct categories
//
// Streaming and Operations:
//
//	GET  /ws/tests - Websocket handshake; mints the test_run_id
//	GET  /health - Liveness
//	GET  /metrics - Prometheus exposition
func SetupRoutes(
	router *gin.Engine,
	runs *handlers.RunHandler,
	catalog *handlers.RegistryHandler,
	ws *handlers.WebSocketHandler,
	health *handlers.HealthHandler,
) {
	router.GET("/health", health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/tests", ws.Subscribe)

	v1 := router.Group("/v1")
	{
		tests := v1.Group("/tests")
		{
			tests.GET("", catalog.ListTests)
			tests.GET("/registry", catalog.GetRegistry)
			tests.GET("/model-tests", catalog.GetModelTests)
			tests.GET("/categories", catalog.GetCategories)

			tests.POST("/run", runs.CreateRun)
			tests.GET("/runs", runs.ListRuns)
			tests.GET("/runs/:id", runs.GetRun)
			tests.GET("/runs/:id/results", runs.GetResults)
			tests.GET("/results/:id", runs.GetResults)
			tests.GET("/status/:id", runs.GetStatus)
		}
	}
}
