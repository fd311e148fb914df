// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry provides the static test catalog. The catalog is loaded
// once from an embedded YAML file and queried, never mutated, by the rest of
// the service. Result records copy name and category out of the registry at
// execution time, so later catalog edits do not rewrite history.
package registry

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// TestInfo is one registry entry.
type TestInfo struct {
	ID                   string         `yaml:"id" json:"id"`
	Name                 string         `yaml:"name" json:"name"`
	Category             string         `yaml:"category" json:"category"`
	Description          string         `yaml:"description" json:"description,omitempty"`
	CompatibleModalities []string       `yaml:"compatible_modalities" json:"compatible_modalities"`
	CompatibleSubTypes   []string       `yaml:"compatible_sub_types" json:"compatible_sub_types"`
	DefaultConfig        map[string]any `yaml:"default_config" json:"default_config,omitempty"`
}

// WithoutConfig returns a copy of the entry with DefaultConfig stripped,
// for registry endpoints called with include_config=false.
func (t TestInfo) WithoutConfig() TestInfo {
	t.DefaultConfig = nil
	return t
}

type catalogFile struct {
	Tests []TestInfo `yaml:"tests"`
}

// Registry is the immutable test catalog.
type Registry struct {
	byID  map[string]TestInfo
	order []string
}

// New parses the embedded catalog. Duplicate ids are a packaging defect and
// fail loudly.
func New() (*Registry, error) {
	return parse(catalogYAML)
}

func parse(raw []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse test catalog: %w", err)
	}
	if len(file.Tests) == 0 {
		return nil, fmt.Errorf("test catalog is empty")
	}

	reg := &Registry{byID: make(map[string]TestInfo, len(file.Tests))}
	for _, t := range file.Tests {
		if t.ID == "" || t.Name == "" || t.Category == "" {
			return nil, fmt.Errorf("catalog entry missing id, name or category: %+v", t)
		}
		if _, dup := reg.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate test id in catalog: %s", t.ID)
		}
		reg.byID[t.ID] = t
		reg.order = append(reg.order, t.ID)
	}
	return reg, nil
}

// GetTest returns the entry for id, or false when the id is not catalogued.
func (r *Registry) GetTest(id string) (TestInfo, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// AllTests returns every entry in catalog order.
func (r *Registry) AllTests() []TestInfo {
	out := make([]TestInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// TestsByModality returns the entries compatible with the given modality.
func (r *Registry) TestsByModality(modality string) []TestInfo {
	var out []TestInfo
	for _, id := range r.order {
		t := r.byID[id]
		if slices.Contains(t.CompatibleModalities, modality) {
			out = append(out, t)
		}
	}
	return out
}

// TestsBySubType returns the entries compatible with both the modality and
// the model sub-type.
func (r *Registry) TestsBySubType(modality, subType string) []TestInfo {
	var out []TestInfo
	for _, t := range r.TestsByModality(modality) {
		if slices.Contains(t.CompatibleSubTypes, subType) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByCategory narrows a test slice to one category. An empty category
// is a no-op filter.
func FilterByCategory(tests []TestInfo, category string) []TestInfo {
	if category == "" {
		return tests
	}
	var out []TestInfo
	for _, t := range tests {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the sorted set of distinct categories in the catalog.
func (r *Registry) Categories() []string {
	seen := make(map[string]struct{})
	for _, t := range r.byID {
		seen[t.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
