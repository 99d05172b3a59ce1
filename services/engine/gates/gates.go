// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gates evaluates named quality gates against the
// post-calibration artifact.
//
// Gates are pure: evaluation never mutates the artifact, and the same
// artifact always yields the same result list in the same order. The
// aggregate passes exactly when no blocker gate fails; warning gates
// are collected separately and never block.
package gates

import (
	"fmt"

	"github.com/AleutianAI/veracity/services/engine/claim"
)

// Gate evaluates one quality dimension of an artifact.
type Gate interface {
	// Name is the stable gate identifier (e.g. "CITATION_COVERAGE").
	Name() string

	// Blocker reports whether a failure blocks the artifact.
	Blocker() bool

	// Evaluate inspects the artifact. Must not mutate it.
	Evaluate(artifact *claim.Artifact) Result
}

// Result is one gate's verdict.
type Result struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Blocker   bool    `json:"blocker"`
	Details   string  `json:"details,omitempty"`
}

// Aggregate is the combined outcome over all gates.
type Aggregate struct {
	Passed   bool     `json:"passed"`
	Results  []Result `json:"results"`
	Failures []Result `json:"failures,omitempty"`
	Warnings []Result `json:"warnings,omitempty"`
	Summary  string   `json:"summary"`
}

// Config tunes the default gates.
type Config struct {
	// CitationCoverageThreshold is the minimum fraction of explicit
	// claims carrying a citation.
	CitationCoverageThreshold float64

	// MinConfidence is the floor every calibrated confidence must meet.
	MinConfidence float64

	// ProvenanceThreshold is the minimum mean audit score (0..100).
	ProvenanceThreshold float64
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{
		CitationCoverageThreshold: 0.75,
		MinConfidence:             0.50,
		ProvenanceThreshold:       70,
	}
}

// Manager holds an ordered gate list. Default gates come first in a
// fixed order; custom gates follow in registration order, so the
// failure list is reproducible.
type Manager struct {
	gates []Gate
}

// NewManager creates a Manager with the six default gates.
func NewManager(config Config) (*Manager, error) {
	def := DefaultConfig()
	if config.CitationCoverageThreshold <= 0 {
		config.CitationCoverageThreshold = def.CitationCoverageThreshold
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = def.MinConfidence
	}
	if config.ProvenanceThreshold <= 0 {
		config.ProvenanceThreshold = def.ProvenanceThreshold
	}

	schemaGate, err := newSchemaGate()
	if err != nil {
		return nil, fmt.Errorf("gates: compile schema: %w", err)
	}

	return &Manager{
		gates: []Gate{
			&citationCoverageGate{threshold: config.CitationCoverageThreshold},
			&contradictionSeverityGate{},
			&confidenceMinimumGate{threshold: config.MinConfidence},
			schemaGate,
			&regulatoryFlagsGate{},
			&provenanceQualityGate{threshold: config.ProvenanceThreshold},
		},
	}, nil
}

// Register appends a custom gate. Registration order is evaluation
// order for custom gates.
func (m *Manager) Register(g Gate) {
	m.gates = append(m.gates, g)
}

// Gates returns the gates in evaluation order.
func (m *Manager) Gates() []Gate {
	return m.gates
}

// Evaluate runs every gate in order and aggregates. The artifact
// passes iff no blocker failed.
func (m *Manager) Evaluate(artifact *claim.Artifact) *Aggregate {
	agg := &Aggregate{Passed: true}
	for _, g := range m.gates {
		result := g.Evaluate(artifact)
		result.Name = g.Name()
		result.Blocker = g.Blocker()
		agg.Results = append(agg.Results, result)

		if result.Passed {
			continue
		}
		if result.Blocker {
			agg.Failures = append(agg.Failures, result)
			agg.Passed = false
		} else {
			agg.Warnings = append(agg.Warnings, result)
		}
	}

	agg.Summary = fmt.Sprintf("%d/%d gates passed, %d blocker failures, %d warnings",
		len(agg.Results)-len(agg.Failures)-len(agg.Warnings), len(agg.Results),
		len(agg.Failures), len(agg.Warnings))
	return agg
}
