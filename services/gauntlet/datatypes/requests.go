// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Request and response types for the test-run endpoints.
package datatypes

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxTestIDsPerRun caps the batch size of a single run request.
	MaxTestIDsPerRun = 50

	// MaxListLimit is the largest page size accepted by the list endpoint.
	MaxListLimit = 100
)

// runValidate is the validator instance for run datatypes.
// Initialized in init() with custom validators.
var runValidate *validator.Validate

var testIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func init() {
	runValidate = validator.New()
	_ = runValidate.RegisterValidation("testid", validateTestID)
}

// validateTestID accepts lowercase snake_case identifiers, the form every
// registry entry uses (e.g. "nlp_honest_test").
func validateTestID(fl validator.FieldLevel) bool {
	return testIDPattern.MatchString(fl.Field().String())
}

// ModelSettings is the model identity and configuration block of a run
// request. ModelID is the only required field; the rest defaults at adapter
// construction time.
type ModelSettings struct {
	ModelID     string         `json:"model_id" validate:"required"`
	Modality    string         `json:"modality,omitempty"`
	SubType     string         `json:"sub_type,omitempty"`
	Source      string         `json:"source,omitempty"`
	APIKey      string         `json:"api_key,omitempty"`
	EndpointURL string         `json:"endpoint_url,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// CreateRunRequest is the body of POST /v1/tests/run.
//
// TestRunID must be the id received from the websocket handshake at
// /ws/tests; the server never mints one here. Parameters carries optional
// per-test configuration blocks keyed by test id.
type CreateRunRequest struct {
	TestRunID     string                    `json:"test_run_id" validate:"required"`
	TestIDs       []string                  `json:"test_ids" validate:"required,min=1,max=50,dive,testid"`
	ModelSettings ModelSettings             `json:"model_settings" validate:"required"`
	Parameters    map[string]map[string]any `json:"parameters,omitempty"`
}

// Validate performs struct-level validation using go-playground/validator
// tags plus the custom testid validator.
func (r *CreateRunRequest) Validate() error {
	if err := runValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid run request: %w", err)
	}
	return nil
}

// TargetParameters flattens the model settings into the map the run record
// stores, mirroring what the adapter factory consumes.
func (r *CreateRunRequest) TargetParameters() map[string]any {
	params := map[string]any{
		"model_id": r.ModelSettings.ModelID,
	}
	if r.ModelSettings.Modality != "" {
		params["modality"] = r.ModelSettings.Modality
	}
	if r.ModelSettings.SubType != "" {
		params["sub_type"] = r.ModelSettings.SubType
	}
	if r.ModelSettings.Source != "" {
		params["source"] = r.ModelSettings.Source
	}
	if r.ModelSettings.APIKey != "" {
		params["api_key"] = r.ModelSettings.APIKey
	}
	if r.ModelSettings.EndpointURL != "" {
		params["endpoint_url"] = r.ModelSettings.EndpointURL
	}
	for k, v := range r.ModelSettings.Extra {
		params[k] = v
	}
	return params
}

// CreateRunResponse wraps the created run for the frontend.
type CreateRunResponse struct {
	TaskID  string   `json:"task_id"`
	Status  string   `json:"status"`
	Message string   `json:"message"`
	TestRun *TestRun `json:"test_run"`
}

// RunListResponse is the paginated run listing.
type RunListResponse struct {
	TestRuns []*TestRun `json:"test_runs"`
	Count    int        `json:"count"`
}

// ResultListResponse carries a run's results together with the per-category
// compliance tallies computed on read.
type ResultListResponse struct {
	Results          []*TestResult              `json:"results"`
	ComplianceScores map[string]ComplianceScore `json:"compliance_scores"`
}

// RunStatusResponse is the lightweight polling view of a run.
type RunStatusResponse struct {
	TaskID                 string `json:"task_id"`
	Status                 string `json:"status"`
	Progress               int    `json:"progress"`
	Message                string `json:"message,omitempty"`
	ResultsCount           int    `json:"results_count"`
	InitializationComplete bool   `json:"initialization_complete"`
}
