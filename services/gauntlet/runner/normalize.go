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
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/probes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/registry"
)

// normalizeResult lifts a raw probe report into the uniform result record
// the API serves. Attack families report vulnerability in [0,1] with higher
// meaning worse; that inverts to a 0-100 score where higher is better. Bias
// families already score on the 0-100 scale and pass through.
func normalizeResult(runID string, info registry.TestInfo, raw *probes.Result) *datatypes.TestResult {
	var score float64
	switch raw.Family {
	case probes.FamilyAttack:
		score = 100 - math.Round(raw.VulnerabilityScore*100)
	default:
		score = raw.Score
	}

	status := datatypes.ResultStatus(raw.Status)
	switch status {
	case datatypes.ResultStatusSuccess, datatypes.ResultStatusFailure, datatypes.ResultStatusError:
	default:
		status = datatypes.ResultStatusError
	}

	metrics := make(map[string]any, len(raw.Metrics)+3)
	for k, v := range raw.Metrics {
		metrics[k] = v
	}
	if raw.Family == probes.FamilyAttack {
		metrics["vulnerability_score"] = raw.VulnerabilityScore
		if len(raw.AttackSuccessRates) > 0 {
			metrics["attack_success_rates"] = raw.AttackSuccessRates
		}
	}
	if len(raw.Performance) > 0 {
		metrics["performance"] = raw.Performance
	}

	analysis := make(map[string]any, len(raw.Analysis)+1)
	for k, v := range raw.Analysis {
		analysis[k] = v
	}
	if len(raw.Outcomes) > 0 {
		analysis["attack_outcomes"] = raw.Outcomes
	}

	return &datatypes.TestResult{
		ID:           uuid.NewString(),
		TestRunID:    runID,
		TestID:       info.ID,
		TestCategory: info.Category,
		TestName:     info.Name,
		Status:       status,
		Score:        score,
		Metrics:      metrics,
		IssuesFound:  raw.IssuesFound,
		Analysis:     analysis,
		CreatedAt:    time.Now().UTC(),
	}
}

// errorResult synthesizes the record for a test that never produced a probe
// report: unknown ids, unimplemented units, crashes, timeouts. Each
// requested test id yields exactly one stored result either way, so run
// counters always reconcile.
func errorResult(runID, testID, name, category, message string) *datatypes.TestResult {
	if name == "" {
		name = testID
	}
	return &datatypes.TestResult{
		ID:           uuid.NewString(),
		TestRunID:    runID,
		TestID:       testID,
		TestCategory: category,
		TestName:     name,
		Status:       datatypes.ResultStatusError,
		Score:        0,
		IssuesFound:  1,
		Metrics:      map[string]any{},
		Analysis:     map[string]any{"error": message},
		CreatedAt:    time.Now().UTC(),
	}
}
