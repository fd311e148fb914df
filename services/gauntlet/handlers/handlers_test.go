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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/datatypes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/notify"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/observability"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/probes"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/registry"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/runner"
	"github.com/AleutianAI/AleutianGauntlet/services/gauntlet/store"
	"github.com/AleutianAI/AleutianGauntlet/services/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testHarness struct {
	router *gin.Engine
	store  store.RunStore
	runner *runner.Runner
	hub    *notify.Hub
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	catalog, err := registry.New()
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	memStore := store.NewMemoryStore()
	hub := notify.NewHub()
	units := probes.NewUnitRegistry()
	units.Register("prompt_injection_test", probes.ProbeFunc(
		func(_ context.Context, _ llm.ModelClient, _, _ map[string]any) (*probes.Result, error) {
			return &probes.Result{Family: probes.FamilyAttack, Status: "success",
				Metrics: map[string]any{}}, nil
		}))
	metrics := observability.NewRunMetrics(prometheus.NewRegistry())
	engine := runner.New(memStore, catalog, units, hub, metrics, runner.Config{})

	router := gin.New()
	router.GET("/ws/tests", NewWebSocketHandler(hub).Subscribe)
	router.GET("/health", NewHealthHandler(engine.Tasks()).Health)

	runHandler := NewRunHandler(engine, memStore)
	catalogHandler := NewRegistryHandler(catalog)
	v1 := router.Group("/v1")
	tests := v1.Group("/tests")
	tests.GET("", catalogHandler.ListTests)
	tests.GET("/registry", catalogHandler.GetRegistry)
	tests.GET("/model-tests", catalogHandler.GetModelTests)
	tests.GET("/categories", catalogHandler.GetCategories)
	tests.POST("/run", runHandler.CreateRun)
	tests.GET("/runs", runHandler.ListRuns)
	tests.GET("/runs/:id", runHandler.GetRun)
	tests.GET("/runs/:id/results", runHandler.GetResults)
	tests.GET("/results/:id", runHandler.GetResults)
	tests.GET("/status/:id", runHandler.GetStatus)

	return &testHarness{router: router, store: memStore, runner: engine, hub: hub}
}

func (h *testHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func createRunBody(runID string) map[string]any {
	return map[string]any{
		"test_run_id":    runID,
		"test_ids":       []string{"prompt_injection_test"},
		"model_settings": map[string]any{"model_id": "test-model", "source": "ollama"},
	}
}

func waitForTerminal(t *testing.T, s store.RunStore, runID string) *datatypes.TestRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := s.GetRun(context.Background(), runID)
		if err == nil && run.Status.Terminal() {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal state in time")
	return nil
}

func TestCreateRun_Returns201AndExecutes(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/v1/tests/run", createRunBody("run-e2e-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}

	var resp datatypes.CreateRunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TaskID != "run-e2e-1" {
		t.Errorf("TaskID = %q, want run-e2e-1", resp.TaskID)
	}
	if resp.TestRun == nil || resp.TestRun.Status != datatypes.RunStatusPending {
		t.Errorf("TestRun = %+v, want pending", resp.TestRun)
	}

	run := waitForTerminal(t, h.store, "run-e2e-1")
	if run.Status != datatypes.RunStatusCompleted {
		t.Errorf("terminal status = %s, want completed", run.Status)
	}
}

func TestCreateRun_Rejections(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing run id", map[string]any{
			"test_ids":       []string{"prompt_injection_test"},
			"model_settings": map[string]any{"model_id": "m"},
		}},
		{"no test ids", map[string]any{
			"test_run_id":    "r1",
			"model_settings": map[string]any{"model_id": "m"},
		}},
		{"bad test id", map[string]any{
			"test_run_id":    "r2",
			"test_ids":       []string{"Bad Test!"},
			"model_settings": map[string]any{"model_id": "m"},
		}},
		{"missing model id", map[string]any{
			"test_run_id": "r3",
			"test_ids":    []string{"prompt_injection_test"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/v1/tests/run", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateRun_MalformedJSON(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/tests/run", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetRunAndResults(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/v1/tests/run", createRunBody("run-e2e-2"))
	waitForTerminal(t, h.store, "run-e2e-2")

	rec := h.do(t, http.MethodGet, "/v1/tests/runs/run-e2e-2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status = %d", rec.Code)
	}
	var run datatypes.TestRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Summary == nil || run.Summary.Completed != 1 {
		t.Errorf("Summary = %+v, want Completed 1", run.Summary)
	}

	for _, path := range []string{
		"/v1/tests/runs/run-e2e-2/results",
		"/v1/tests/results/run-e2e-2",
	} {
		rec = h.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		var results datatypes.ResultListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
			t.Fatalf("decode results: %v", err)
		}
		if len(results.Results) != 1 {
			t.Errorf("%s results = %d, want 1", path, len(results.Results))
		}
		if score, ok := results.ComplianceScores["security"]; !ok || score.Total != 1 || score.Passed != 1 {
			t.Errorf("%s compliance = %+v", path, results.ComplianceScores)
		}
	}
}

func TestGetRun_NotFound(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{
		"/v1/tests/runs/ghost",
		"/v1/tests/runs/ghost/results",
		"/v1/tests/status/ghost",
	} {
		rec := h.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestListRuns(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		h.do(t, http.MethodPost, "/v1/tests/run", createRunBody(id))
		waitForTerminal(t, h.store, id)
	}

	rec := h.do(t, http.MethodGet, "/v1/tests/runs?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list datatypes.RunListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 2 {
		t.Errorf("Count = %d, want 2", list.Count)
	}
	if list.TestRuns[0].ID != "run-c" {
		t.Errorf("first run = %s, want run-c (newest first)", list.TestRuns[0].ID)
	}
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/v1/tests/run", createRunBody("run-status-1"))
	waitForTerminal(t, h.store, "run-status-1")

	rec := h.do(t, http.MethodGet, "/v1/tests/status/run-status-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status datatypes.RunStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != string(datatypes.RunStatusCompleted) {
		t.Errorf("Status = %q, want completed", status.Status)
	}
	if status.Progress != 100 {
		t.Errorf("Progress = %d, want 100", status.Progress)
	}
	if !status.InitializationComplete {
		t.Error("InitializationComplete = false, want true")
	}
}

func TestCatalogEndpoints(t *testing.T) {
	h := newHarness(t)

	t.Run("list all", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/tests", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body struct {
			Tests []registry.TestInfo `json:"tests"`
			Count int                 `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Count != 13 {
			t.Errorf("Count = %d, want 13", body.Count)
		}
	})

	t.Run("registry strips config by default", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/tests/registry", nil)
		var body struct {
			Tests []registry.TestInfo `json:"tests"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		for _, info := range body.Tests {
			if info.DefaultConfig != nil {
				t.Errorf("test %s leaked default_config", info.ID)
			}
		}
	})

	t.Run("registry category filter", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/tests/registry?category=security", nil)
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Count != 3 {
			t.Errorf("security tests = %d, want 3", body.Count)
		}
	})

	t.Run("model-tests narrows by sub type", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/tests/model-tests?modality=NLP&sub_type=Question+Answering", nil)
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Count == 0 || body.Count == 13 {
			t.Errorf("Count = %d, want a strict subset", body.Count)
		}
	})

	t.Run("categories", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/v1/tests/categories", nil)
		var body struct {
			Categories []string `json:"categories"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := []string{"bias", "robustness", "security"}
		if len(body.Categories) != len(want) {
			t.Fatalf("Categories = %v, want %v", body.Categories, want)
		}
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWebSocketHandshake_MintsRunID(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tests"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event notify.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if event.Type != notify.EventConnectionEstablished {
		t.Errorf("Type = %q, want %q", event.Type, notify.EventConnectionEstablished)
	}
	if event.TestRunID == "" {
		t.Fatal("handshake did not mint a test_run_id")
	}

	// The minted id is immediately usable for run creation and streams the
	// run's events over this same connection.
	rec := h.do(t, http.MethodPost, "/v1/tests/run", createRunBody(event.TestRunID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create with minted id status = %d", rec.Code)
	}

	sawComplete := false
	for !sawComplete {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame notify.Event
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("ReadJSON while streaming: %v", err)
		}
		if frame.TestRunID != event.TestRunID {
			t.Errorf("frame for %q, want %q", frame.TestRunID, event.TestRunID)
		}
		if frame.Type == notify.EventRunComplete {
			sawComplete = true
			if frame.Summary == nil || frame.Summary.Completed != 1 {
				t.Errorf("final summary = %+v", frame.Summary)
			}
		}
	}
}
