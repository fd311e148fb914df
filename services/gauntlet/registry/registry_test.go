// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"testing"
)

func TestNew_LoadsEmbeddedCatalog(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tests := reg.AllTests()
	if len(tests) != 13 {
		t.Errorf("AllTests() len = %d, want 13", len(tests))
	}
	for _, tc := range tests {
		if tc.ID == "" || tc.Name == "" || tc.Category == "" {
			t.Errorf("catalog entry incomplete: %+v", tc)
		}
	}
}

func TestParse_RejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", "tests: []"},
		{"duplicate id", `
tests:
  - id: alpha_test
    name: Alpha
    category: security
  - id: alpha_test
    name: Alpha Again
    category: security
`},
		{"missing name", `
tests:
  - id: alpha_test
    category: security
`},
		{"not yaml", "{{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parse([]byte(tc.raw)); err == nil {
				t.Error("parse() error = nil, want non-nil")
			}
		})
	}
}

func TestGetTest(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, ok := reg.GetTest("prompt_injection_test")
	if !ok {
		t.Fatal("GetTest(prompt_injection_test) not found")
	}
	if got.Category != "security" {
		t.Errorf("Category = %q, want %q", got.Category, "security")
	}

	if _, ok := reg.GetTest("no_such_test"); ok {
		t.Error("GetTest(no_such_test) found = true, want false")
	}
}

func TestTestsByModality(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	nlp := reg.TestsByModality("NLP")
	if len(nlp) != 13 {
		t.Errorf("TestsByModality(NLP) len = %d, want 13", len(nlp))
	}
	if got := reg.TestsByModality("Vision"); len(got) != 0 {
		t.Errorf("TestsByModality(Vision) len = %d, want 0", len(got))
	}
}

func TestTestsBySubType(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	gen := reg.TestsBySubType("NLP", "Text Generation")
	if len(gen) == 0 {
		t.Fatal("TestsBySubType(NLP, Text Generation) is empty")
	}
	if got := reg.TestsBySubType("NLP", "Tokenizer"); len(got) != 0 {
		t.Errorf("TestsBySubType(NLP, Tokenizer) len = %d, want 0", len(got))
	}
}

func TestFilterByCategory(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	all := reg.AllTests()

	security := FilterByCategory(all, "security")
	if len(security) != 3 {
		t.Errorf("FilterByCategory(security) len = %d, want 3", len(security))
	}
	if got := FilterByCategory(all, ""); len(got) != len(all) {
		t.Errorf("FilterByCategory(\"\") len = %d, want %d", len(got), len(all))
	}
}

func TestCategories(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := reg.Categories()
	want := []string{"bias", "robustness", "security"}
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWithoutConfig(t *testing.T) {
	reg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	info, _ := reg.GetTest("nlp_character_attack_test")
	stripped := info.WithoutConfig()
	if stripped.DefaultConfig != nil {
		t.Error("WithoutConfig() kept DefaultConfig")
	}
	// Original must be untouched.
	again, _ := reg.GetTest("nlp_character_attack_test")
	if again.DefaultConfig == nil {
		t.Error("WithoutConfig() mutated the registry entry")
	}
}
