// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probes

import "sync"

// UnitRegistry maps catalog test ids to their executable probes. The runner
// treats a catalogued id with no registered unit as "not implemented" and
// records an error result rather than failing the run.
type UnitRegistry struct {
	mu    sync.RWMutex
	units map[string]Probe
}

func NewUnitRegistry() *UnitRegistry {
	return &UnitRegistry{units: make(map[string]Probe)}
}

// Register binds a probe to a test id, replacing any previous binding.
func (r *UnitRegistry) Register(testID string, p Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[testID] = p
}

// Deregister removes a binding. Removing an unknown id is a no-op.
func (r *UnitRegistry) Deregister(testID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.units, testID)
}

// Get returns the probe for a test id, or false when none is registered.
func (r *UnitRegistry) Get(testID string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.units[testID]
	return p, ok
}

// DefaultUnits returns a registry with every built-in probe bound.
func DefaultUnits() *UnitRegistry {
	r := NewUnitRegistry()
	r.Register("prompt_injection_test", PromptInjectionProbe{})
	r.Register("jailbreak_test", JailbreakProbe{})
	r.Register("data_extraction_test", DataExtractionProbe{})
	r.Register("nlp_character_attack_test", CharacterAttackProbe{})
	r.Register("nlp_word_attack_test", WordAttackProbe{})
	r.Register("nlp_sentence_attack_test", SentenceAttackProbe{})
	r.Register("nlp_advanced_attack_test", AdvancedAttackProbe{})
	r.Register("nlp_honest_test", HonestProbe{})
	r.Register("nlp_cda_test", CDAProbe{})
	r.Register("nlp_intersectional_test", IntersectionalProbe{})
	r.Register("nlp_qa_bias_test", QABiasProbe{})
	r.Register("nlp_occupation_test", OccupationProbe{})
	r.Register("nlp_multilingual_test", MultilingualProbe{})
	return r
}
