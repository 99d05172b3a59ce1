// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package claim defines the data model shared by every validation stage:
// sources, citations, claims, contradictions, timeline tasks, and the
// request-scoped Ledger that indexes them.
//
// The model is deliberately closed. Upstream reasoners return open
// dictionaries; projecting them into these tagged records at the boundary
// eliminates the "unknown field silently discarded" failure mode and lets
// every later stage dispatch on the Type enum instead of shape-sniffing.
package claim

import (
	"time"
)

// Provider identifies the upstream reasoning provider a source or claim
// came from. The set is closed; anything unrecognized maps to
// ProviderUnknown.
type Provider string

const (
	ProviderInternal Provider = "INTERNAL"
	ProviderGemini   Provider = "GEMINI"
	ProviderClaude   Provider = "CLAUDE"
	ProviderGPT      Provider = "GPT"
	ProviderGrok     Provider = "GROK"
	ProviderUnknown  Provider = "UNKNOWN"
)

// llmProviders are the providers whose output is itself generated text.
// A claim from one of these citing another generated document is a
// circular reference (see the provenance auditor).
var llmProviders = map[Provider]bool{
	ProviderGemini: true,
	ProviderClaude: true,
	ProviderGPT:    true,
	ProviderGrok:   true,
}

// IsLLM reports whether the provider is a generative reasoner.
func (p Provider) IsLLM() bool { return llmProviders[p] }

// ParseProvider maps a raw provider string onto the closed enum.
func ParseProvider(s string) Provider {
	switch Provider(s) {
	case ProviderInternal, ProviderGemini, ProviderClaude, ProviderGPT, ProviderGrok:
		return Provider(s)
	default:
		return ProviderUnknown
	}
}

// Source is a primary artifact uploaded for one session. Immutable
// after ingestion; every stage receives it read-only.
type Source struct {
	// Name is the document name cited by claims (e.g. "doc.pdf").
	Name string `json:"name"`

	// Provider identifies who produced the document.
	Provider Provider `json:"provider"`

	// Content is the UTF-8 text extracted upstream. The engine never
	// parses binary formats.
	Content string `json:"content"`

	// Size is the byte length of Content at ingestion.
	Size int `json:"size"`

	// MimeType is the original media type, informational only.
	MimeType string `json:"mimeType,omitempty"`
}

// SourceSet indexes sources by document name.
type SourceSet map[string]*Source

// NewSourceSet builds a SourceSet from a slice, keyed by Name.
func NewSourceSet(sources []*Source) SourceSet {
	set := make(SourceSet, len(sources))
	for _, s := range sources {
		set[s.Name] = s
	}
	return set
}

// InferredDocument is the reserved document name for claims derived by
// reasoning rather than quotation. The citation verifier short-circuits
// it; the calibrator and gates apply the inferred-origin penalty instead.
const InferredDocument = "inferred"

// Citation is a primary-source reference with character offsets and the
// exact quoted text. StartChar/EndChar follow half-open [start, end)
// semantics over the document content.
type Citation struct {
	DocumentName string    `json:"documentName"`
	StartChar    int       `json:"startChar"`
	EndChar      int       `json:"endChar"`
	ExactQuote   string    `json:"exactQuote"`
	RetrievedAt  time.Time `json:"retrievedAt,omitempty"`
}

// Type is the closed claim-type enum. Contradiction detection only
// compares claims of the same type.
type Type string

const (
	TypeDuration    Type = "duration"
	TypeStartDate   Type = "startDate"
	TypeEndDate     Type = "endDate"
	TypeDeadline    Type = "deadline"
	TypeDependency  Type = "dependency"
	TypeRequirement Type = "requirement"
	TypeResource    Type = "resource"
	TypeFinancial   Type = "financial"
	TypeGeneric     Type = "generic"
)

// Types lists every claim type in declaration order.
func Types() []Type {
	return []Type{
		TypeDuration, TypeStartDate, TypeEndDate, TypeDeadline,
		TypeDependency, TypeRequirement, TypeResource, TypeFinancial,
		TypeGeneric,
	}
}

// ValidType reports whether t is a member of the closed enum.
func ValidType(t Type) bool {
	switch t {
	case TypeDuration, TypeStartDate, TypeEndDate, TypeDeadline,
		TypeDependency, TypeRequirement, TypeResource, TypeFinancial,
		TypeGeneric:
		return true
	default:
		return false
	}
}

// Origin records how a claim was produced. Explicit claims quote a
// source and must carry a citation; inferred claims carry a rationale.
type Origin string

const (
	OriginExplicit Origin = "explicit"
	OriginInferred Origin = "inferred"
)

// SourceRef ties a claim back to the document (and provider) it came
// from. Citation is nil for inferred claims.
type SourceRef struct {
	DocumentName string    `json:"documentName"`
	Provider     Provider  `json:"provider"`
	Citation     *Citation `json:"citation,omitempty"`
}

// CalibrationFactor is one multiplicative term applied by the
// confidence calibrator, kept for explainability.
type CalibrationFactor struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// CalibrationMetadata preserves the pre-calibration confidence and the
// factor chain that produced the calibrated value.
type CalibrationMetadata struct {
	OriginalConfidence float64             `json:"originalConfidence"`
	Factors            []CalibrationFactor `json:"factors"`
	CalibratedAt       time.Time           `json:"calibratedAt"`
}

// ReviewFlagType enumerates reasons an item was flagged for a human.
type ReviewFlagType string

const (
	ReviewLowConfidence  ReviewFlagType = "LOW_CONFIDENCE"
	ReviewManualConflict ReviewFlagType = "MANUAL_CONFLICT_REVIEW"
)

// ReviewFlag marks an item for manual review without removing it.
type ReviewFlag struct {
	Type   ReviewFlagType `json:"type"`
	Reason string         `json:"reason"`
}

// Claim is an atomic assertion with provenance, type, confidence, and
// an optional citation.
//
// Lifecycle: created by the extractor; mutated only by appending
// contradiction ids (detector), replacing Confidence (calibrator, old
// value preserved in CalibrationMetadata), and the repair engine's
// documented downgrades. Claims are never deleted.
type Claim struct {
	// ID is the deterministic hash of (document, index, text prefix).
	// See ComputeID.
	ID string `json:"id"`

	// TaskID groups claims belonging to one timeline task. Empty for
	// the document-synthesis flow.
	TaskID string `json:"taskId,omitempty"`

	// Text is the natural-language statement.
	Text string `json:"text"`

	// Type is the claim type; contradiction rules only compare equal types.
	Type Type `json:"claimType"`

	// Origin is explicit or inferred. Explicit requires a citation.
	Origin Origin `json:"origin"`

	// Confidence starts as the reasoner-reported value in [0,1] and is
	// replaced by the calibrator with a value in [0.30, 0.99].
	Confidence float64 `json:"confidence"`

	// Source ties the claim to its document, provider, and citation.
	Source SourceRef `json:"source"`

	// ContradictionIDs references Contradiction records in the ledger.
	// Back-edges are lookups, not ownership.
	ContradictionIDs []string `json:"contradictions,omitempty"`

	// InferenceRationale explains an inferred claim. Required for
	// high-confidence inferred claims; synthesized by repair when an
	// uncited explicit claim is downgraded.
	InferenceRationale string `json:"inferenceRationale,omitempty"`

	// SupportingFacts list evidence for an inferred claim.
	SupportingFacts []string `json:"supportingFacts,omitempty"`

	// ReviewFlags mark the claim for manual attention; never blocking.
	ReviewFlags []ReviewFlag `json:"reviewFlags,omitempty"`

	// CalibrationMetadata is set once the calibrator has run.
	CalibrationMetadata *CalibrationMetadata `json:"calibrationMetadata,omitempty"`

	// ValidatedAt is set at creation time.
	ValidatedAt time.Time `json:"validatedAt"`
}

// HasCitation reports whether the claim carries a citation record.
// Coverage gates count citation presence, not validity; the provenance
// auditor penalizes invalid citations separately.
func (c *Claim) HasCitation() bool {
	return c.Source.Citation != nil
}

// ContradictionType classifies the incompatibility between two claims.
type ContradictionType string

const (
	ContradictionNumerical    ContradictionType = "numerical"
	ContradictionPolarity     ContradictionType = "polarity"
	ContradictionTemporal     ContradictionType = "temporal"
	ContradictionDefinitional ContradictionType = "definitional"
	ContradictionLogical      ContradictionType = "logical"
)

// Severity grades a contradiction. Severity is a pure function of the
// contradiction type and the extracted values.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank orders severities for max comparisons.
var severityRank = map[Severity]int{SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// ResolutionAction names the arbitration outcome chosen by the
// resolution matrix.
type ResolutionAction string

const (
	ActionAcceptExplicit     ResolutionAction = "accept-explicit-reduce-other-confidence"
	ActionAcceptHigher       ResolutionAction = "accept-higher-flag-lower"
	ActionAcceptRegulatory   ResolutionAction = "accept-regulatory-reject-other"
	ActionFlagBothForReview  ResolutionAction = "flag-both-for-manual-review"
	ActionAverageOrFlag      ResolutionAction = "average-or-flag"
)

// Resolution records the matrix outcome for one contradiction.
// PreferredClaim is empty when no winner could be chosen.
type Resolution struct {
	PreferredClaim string           `json:"preferredClaim,omitempty"`
	Action         ResolutionAction `json:"action"`
	Strategy       string           `json:"strategy,omitempty"`
	Rationale      string           `json:"rationale,omitempty"`
}

// Contradiction is a pairwise incompatibility record. Invariants: the
// two claim ids differ, both claims share the same Type, and Severity
// is derived from Type and Values alone.
type Contradiction struct {
	ID         string            `json:"id"`
	Type       ContradictionType `json:"type"`
	Severity   Severity          `json:"severity"`
	ClaimA     string            `json:"claimA"`
	ClaimB     string            `json:"claimB"`
	ValueA     string            `json:"valueA,omitempty"`
	ValueB     string            `json:"valueB,omitempty"`
	Resolution *Resolution       `json:"resolution,omitempty"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty"`
	DetectedAt time.Time         `json:"detectedAt"`
}

// Resolved reports whether the contradiction has been arbitrated.
// Gates only count unresolved high-severity contradictions.
func (c *Contradiction) Resolved() bool { return c.ResolvedAt != nil }
