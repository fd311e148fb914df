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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/probes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/registry"
)

var securityInfo = registry.TestInfo{
	ID:       "prompt_injection_test",
	Name:     "Prompt Injection Test",
	Category: "security",
}

var biasInfo = registry.TestInfo{
	ID:       "nlp_honest_test",
	Name:     "HONEST Stereotype Test",
	Category: "bias",
}

func TestNormalizeResult_AttackScoreInversion(t *testing.T) {
	cases := []struct {
		name      string
		vuln      float64
		wantScore float64
	}{
		{"no successful attacks", 0.0, 100},
		{"quarter vulnerable", 0.25, 75},
		{"rounds half away from zero", 0.125, 87}, // 100 - round(12.5)
		{"fully vulnerable", 1.0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := &probes.Result{
				Family:             probes.FamilyAttack,
				Status:             "failure",
				VulnerabilityScore: tc.vuln,
			}
			got := normalizeResult("run-1", securityInfo, raw)
			assert.Equal(t, tc.wantScore, got.Score)
		})
	}
}

func TestNormalizeResult_BiasScorePassthrough(t *testing.T) {
	raw := &probes.Result{
		Family: probes.FamilyBias,
		Status: "success",
		Score:  87.5,
	}
	got := normalizeResult("run-1", biasInfo, raw)
	assert.Equal(t, 87.5, got.Score)
	assert.Equal(t, datatypes.ResultStatusSuccess, got.Status)
	assert.Equal(t, "bias", got.TestCategory)
	assert.Equal(t, "HONEST Stereotype Test", got.TestName)
}

func TestNormalizeResult_MetricsNeverNil(t *testing.T) {
	raw := &probes.Result{Family: probes.FamilyAttack, Status: "success"}
	got := normalizeResult("run-1", securityInfo, raw)
	require.NotNil(t, got.Metrics)
}

func TestNormalizeResult_UnknownStatusBecomesError(t *testing.T) {
	raw := &probes.Result{Family: probes.FamilyBias, Status: "weird"}
	got := normalizeResult("run-1", biasInfo, raw)
	assert.Equal(t, datatypes.ResultStatusError, got.Status)
}

func TestNormalizeResult_AttackMetricsSubset(t *testing.T) {
	raw := &probes.Result{
		Family:             probes.FamilyAttack,
		Status:             "failure",
		VulnerabilityScore: 0.5,
		Outcomes: []probes.AttackOutcome{
			{AttackType: "direct_injection", Succeeded: true},
		},
		AttackSuccessRates: map[string]float64{"direct_injection": 1.0},
		Performance:        map[string]float64{"avg_response_len": 120},
		Metrics:            map[string]any{"total_attempts": 8},
		Analysis:           map[string]any{"note": "kept"},
	}
	got := normalizeResult("run-1", securityInfo, raw)

	assert.Equal(t, 0.5, got.Metrics["vulnerability_score"])
	assert.Equal(t, raw.AttackSuccessRates, got.Metrics["attack_success_rates"])
	assert.Equal(t, raw.Performance, got.Metrics["performance"])
	assert.Equal(t, 8, got.Metrics["total_attempts"], "probe metrics survive")

	assert.Equal(t, "kept", got.Analysis["note"])
	assert.Contains(t, got.Analysis, "attack_outcomes")
}

func TestNormalizeResult_BiasMetricsUntouched(t *testing.T) {
	raw := &probes.Result{
		Family:      probes.FamilyBias,
		Status:      "success",
		Score:       92,
		Performance: map[string]float64{"group:a man": 0.1},
		Metrics:     map[string]any{"fairness_score": 92.0},
	}
	got := normalizeResult("run-1", biasInfo, raw)
	assert.NotContains(t, got.Metrics, "vulnerability_score")
	assert.Equal(t, 92.0, got.Metrics["fairness_score"])
	assert.Equal(t, raw.Performance, got.Metrics["performance"])
}

func TestNormalizeResult_UniqueIDs(t *testing.T) {
	raw := &probes.Result{Family: probes.FamilyAttack, Status: "success"}
	a := normalizeResult("run-1", securityInfo, raw)
	b := normalizeResult("run-1", securityInfo, raw)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "run-1", a.TestRunID)
}

func TestErrorResult(t *testing.T) {
	got := errorResult("run-1", "mystery_test", "", "", "Test mystery_test not found in registry")
	assert.Equal(t, datatypes.ResultStatusError, got.Status)
	assert.Equal(t, "mystery_test", got.TestName, "name falls back to the id")
	assert.Zero(t, got.Score)
	assert.Equal(t, 1, got.IssuesFound)
	require.NotNil(t, got.Metrics)
	assert.Equal(t, "Test mystery_test not found in registry", got.Analysis["error"])

	named := errorResult("run-1", "nlp_cda_test", "Counterfactual Data Augmentation Test", "bias", "Test nlp_cda_test not implemented")
	assert.Equal(t, "Counterfactual Data Augmentation Test", named.TestName)
	assert.Equal(t, "bias", named.TestCategory)
}
