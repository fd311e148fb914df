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

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/registry"
)

// RegistryHandler serves the read-only test catalog endpoints.
type RegistryHandler struct {
	catalog *registry.Registry
}

func NewRegistryHandler(catalog *registry.Registry) *RegistryHandler {
	return &RegistryHandler{catalog: catalog}
}

// ListTests handles GET /v1/tests: the whole catalog, configs included.
func (h *RegistryHandler) ListTests(c *gin.Context) {
	tests := h.catalog.AllTests()
	c.JSON(http.StatusOK, gin.H{"tests": tests, "count": len(tests)})
}

// GetRegistry handles GET /v1/tests/registry with optional modality and
// category filters. Default configs are stripped unless include_config=true.
func (h *RegistryHandler) GetRegistry(c *gin.Context) {
	modality := c.DefaultQuery("modality", "NLP")
	category := c.Query("category")
	includeConfig := c.Query("include_config") == "true"

	tests := registry.FilterByCategory(h.catalog.TestsByModality(modality), category)
	if !includeConfig {
		for i, t := range tests {
			tests[i] = t.WithoutConfig()
		}
	}
	c.JSON(http.StatusOK, gin.H{"tests": tests, "count": len(tests)})
}

// GetModelTests handles GET /v1/tests/model-tests: the catalog narrowed to
// what a given modality and model sub-type can run.
func (h *RegistryHandler) GetModelTests(c *gin.Context) {
	modality := c.DefaultQuery("modality", "NLP")
	subType := c.DefaultQuery("sub_type", "Text Generation")
	category := c.Query("category")

	tests := registry.FilterByCategory(h.catalog.TestsBySubType(modality, subType), category)
	for i, t := range tests {
		tests[i] = t.WithoutConfig()
	}
	c.JSON(http.StatusOK, gin.H{"tests": tests, "count": len(tests)})
}

// GetCategories handles GET /v1/tests/categories.
func (h *RegistryHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.catalog.Categories()})
}
