// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify streams run progress to websocket subscribers. Delivery is
// best effort: a failed or absent subscriber never stalls or fails a run.
package notify

import "github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"

// Event types, in the order a healthy run emits them: connection_established
// on handshake, test_status_update at each state change, test_result after
// each test, then test_complete or test_failed exactly once.
const (
	EventConnectionEstablished = "connection_established"
	EventStatusUpdate          = "test_status_update"
	EventTestResult            = "test_result"
	EventRunComplete           = "test_complete"
	EventRunFailed             = "test_failed"
)

// Event is one websocket frame.
type Event struct {
	Type             string                 `json:"type"`
	Status           string                 `json:"status,omitempty"`
	TestRunID        string                 `json:"test_run_id"`
	Message          string                 `json:"message,omitempty"`
	Summary          *datatypes.RunSummary  `json:"summary,omitempty"`
	Result           *datatypes.TestResult  `json:"result,omitempty"`
	ResultsAvailable bool                   `json:"results_available,omitempty"`
}

// StatusUpdate builds the per-transition progress frame.
func StatusUpdate(runID string, status datatypes.RunStatus, message string, summary *datatypes.RunSummary) Event {
	return Event{
		Type:      EventStatusUpdate,
		Status:    string(status),
		TestRunID: runID,
		Message:   message,
		Summary:   summary,
	}
}

// TestResult builds the per-test result frame.
func TestResult(runID string, result *datatypes.TestResult, summary *datatypes.RunSummary) Event {
	return Event{
		Type:      EventTestResult,
		TestRunID: runID,
		Result:    result,
		Summary:   summary,
	}
}

// RunComplete builds the terminal success frame.
func RunComplete(runID string, summary *datatypes.RunSummary) Event {
	return Event{
		Type:             EventRunComplete,
		Status:           string(datatypes.RunStatusCompleted),
		TestRunID:        runID,
		Message:          "All tests completed",
		Summary:          summary,
		ResultsAvailable: true,
	}
}

// RunFailed builds the terminal failure frame.
func RunFailed(runID, message string, summary *datatypes.RunSummary) Event {
	return Event{
		Type:      EventRunFailed,
		Status:    string(datatypes.RunStatusFailed),
		TestRunID: runID,
		Message:   message,
		Summary:   summary,
	}
}
