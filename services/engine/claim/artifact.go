// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package claim

import "time"

// CitationCheck is the verifier verdict summary carried on the
// artifact, keyed by claim id. The full verdict (corrected ranges,
// reasons) stays in the verifier's own report; gates and repair only
// need validity and score.
type CitationCheck struct {
	Valid     bool    `json:"valid"`
	MatchType string  `json:"matchType"`
	Score     float64 `json:"score"`
}

// AuditCheck is the provenance auditor's per-claim summary. Score is
// on the 0..100 scale; Valid is Score >= the auditor's threshold.
type AuditCheck struct {
	Score float64 `json:"score"`
	Valid bool    `json:"valid"`
}

// Artifact is the validated output of one pipeline run: the working
// timeline (when present), the claim ledger, and the per-claim stage
// results the gates and the repair engine evaluate.
//
// The orchestrator owns the artifact for the request's lifetime.
// Stage results are keyed by claim id so the artifact stays flat and
// serializable; nothing here points back into stage internals.
type Artifact struct {
	SessionID string `json:"sessionId,omitempty"`

	// Tasks is the working timeline. Nil for the document flow.
	Tasks []*TimelineTask `json:"tasks,omitempty"`

	// Ledger holds every claim and contradiction for the request.
	Ledger *Ledger `json:"-"`

	// Sources are the ingested primary documents, keyed by name.
	Sources SourceSet `json:"-"`

	// CitationChecks holds the verifier verdict per claim id. Claims
	// without a citation have no entry.
	CitationChecks map[string]CitationCheck `json:"citationChecks,omitempty"`

	// AuditChecks holds the provenance audit summary per claim id.
	AuditChecks map[string]AuditCheck `json:"auditChecks,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewArtifact creates an artifact around a ledger and source set.
func NewArtifact(ledger *Ledger, sources SourceSet) *Artifact {
	return &Artifact{
		Ledger:         ledger,
		Sources:        sources,
		CitationChecks: make(map[string]CitationCheck),
		AuditChecks:    make(map[string]AuditCheck),
		CreatedAt:      time.Now().UTC(),
	}
}

// TaskByID returns the timeline task with the given id, or nil.
func (a *Artifact) TaskByID(id string) *TimelineTask {
	for _, t := range a.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// CitationCoverage returns the fraction of explicit claims that carry
// a citation record. Inferred claims are excluded from the denominator;
// coverage measures citation presence, not validity.
func (a *Artifact) CitationCoverage() float64 {
	var explicit, covered int
	for _, c := range a.Ledger.Claims() {
		if c.Origin != OriginExplicit {
			continue
		}
		explicit++
		if c.HasCitation() {
			covered++
		}
	}
	if explicit == 0 {
		return 1.0
	}
	return float64(covered) / float64(explicit)
}

// AverageAuditScore returns the mean provenance score across audited
// claims on the 0..100 scale, or 100 when nothing was audited.
func (a *Artifact) AverageAuditScore() float64 {
	if len(a.AuditChecks) == 0 {
		return 100
	}
	var sum float64
	for _, chk := range a.AuditChecks {
		sum += chk.Score
	}
	return sum / float64(len(a.AuditChecks))
}

// ProvenanceFor returns the claim's audit score on the 0..1 scale the
// calibrator consumes. Unaudited claims get the neutral 1.0.
func (a *Artifact) ProvenanceFor(claimID string) float64 {
	if chk, ok := a.AuditChecks[claimID]; ok {
		return chk.Score / 100
	}
	return 1.0
}
