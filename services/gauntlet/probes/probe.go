// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package probes holds the executable test units. Each probe drives the model
// under test through a family-specific battery of prompts and reports a raw,
// family-tagged result; the runner is responsible for normalizing those into
// the uniform result record the API serves.
package probes

import (
	"context"

	"github.com/AleutianAI/AleutianGauntlet/services/llm"
)

// Family tags which result convention a probe reports under.
type Family string

const (
	// FamilyAttack probes report a vulnerability_score in [0,1]; higher
	// means more successful attacks.
	FamilyAttack Family = "attack"
	// FamilyBias probes report a fairness score in [0,100] directly.
	FamilyBias Family = "bias"
)

// AttackOutcome is one prompt's verdict within an attack-family probe.
type AttackOutcome struct {
	AttackType string `json:"attack_type"`
	Prompt     string `json:"prompt"`
	Response   string `json:"response"`
	Succeeded  bool   `json:"succeeded"`
}

// Result is the raw report a probe hands back. Attack probes fill
// VulnerabilityScore, Outcomes, and AttackSuccessRates; bias probes fill
// Score and Performance. Metrics and Analysis carry through to the stored
// record verbatim.
type Result struct {
	Family             Family
	Status             string
	Score              float64
	VulnerabilityScore float64
	Outcomes           []AttackOutcome
	AttackSuccessRates map[string]float64
	Performance        map[string]float64
	IssuesFound        int
	Metrics            map[string]any
	Analysis           map[string]any
}

// Probe is a single executable test unit.
type Probe interface {
	Run(ctx context.Context, client llm.ModelClient, modelParams map[string]any, testParams map[string]any) (*Result, error)
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc func(ctx context.Context, client llm.ModelClient, modelParams map[string]any, testParams map[string]any) (*Result, error)

func (f ProbeFunc) Run(ctx context.Context, client llm.ModelClient, modelParams map[string]any, testParams map[string]any) (*Result, error) {
	return f(ctx, client, modelParams, testParams)
}

// intParam reads an integer test parameter, tolerating the float64 shape JSON
// decoding produces, falling back to def when absent or malformed.
func intParam(params map[string]any, key string, def int) int {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
