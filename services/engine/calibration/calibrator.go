// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package calibration replaces reasoner-reported confidence with a
// value derived from evidence.
//
// The calibrated value is a multiplicative chain over fixed factors:
// origin baseline, citation quality, worst contradiction, ledger
// consensus, provenance, and two situational boosts. Every applied
// factor is recorded on the claim so a reviewer can reconstruct the
// number. Reasoner-reported confidence is preserved in the metadata
// but deliberately does not enter the chain: reasoners systematically
// overstate it, which is the reason this package exists.
package calibration

import (
	"math"
	"strings"
	"time"

	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/contradiction"
)

// CitationType grades the quality of a claim's citation.
type CitationType string

const (
	CitationRegulatory   CitationType = "regulatory_doc"
	CitationPeerReviewed CitationType = "peer_reviewed"
	CitationInternal     CitationType = "internal_doc"
	CitationLLMOutput    CitationType = "llm_output"
	CitationUncited      CitationType = "uncited"
)

// Origin baselines the chain starts from.
const (
	baselineExplicit = 0.85
	baselineInferred = 0.60
)

// citationMultipliers by citation type.
var citationMultipliers = map[CitationType]float64{
	CitationRegulatory:   1.20,
	CitationPeerReviewed: 1.15,
	CitationInternal:     1.00,
	CitationLLMOutput:    0.85,
	CitationUncited:      0.60,
}

// contradictionMultipliers by worst contradiction severity.
var contradictionMultipliers = map[claim.Severity]float64{
	"":                   1.00,
	claim.SeverityLow:    0.95,
	claim.SeverityMedium: 0.85,
	claim.SeverityHigh:   0.70,
}

// Boost factors.
const (
	regulatoryBoost = 1.10
	financialBoost  = 1.05
)

// Calibrated confidence bounds.
const (
	MinConfidence = 0.30
	MaxConfidence = 0.99
)

// peerReviewMarkers in a document name indicate published research.
var peerReviewMarkers = []string{"journal", "study", "peer", "arxiv", "doi"}

// ClassifyCitation grades a claim's citation. A citation that failed
// verification supports nothing and grades as uncited regardless of
// what it names; citationValid should be true when the verifier could
// not be consulted.
func ClassifyCitation(c *claim.Claim, citationValid bool) CitationType {
	if !c.HasCitation() || !citationValid {
		return CitationUncited
	}
	name := strings.ToLower(c.Source.Citation.DocumentName)
	if contradiction.IsRegulatorySource(name) {
		return CitationRegulatory
	}
	for _, marker := range peerReviewMarkers {
		if strings.Contains(name, marker) {
			return CitationPeerReviewed
		}
	}
	if c.Source.Provider.IsLLM() {
		return CitationLLMOutput
	}
	return CitationInternal
}

// Input is everything the chain needs for one claim or task.
type Input struct {
	Origin        claim.Origin
	CitationType  CitationType
	Contradiction claim.Severity // "" when uncontradicted
	Consensus     float64        // fraction in [0,1]
	Provenance    float64        // audit score in [0,1]

	RegulatoryRequired bool
	DetailedFinancials bool
}

// consensusMultiplier buckets the consensus percentage.
func consensusMultiplier(consensus float64) float64 {
	pct := consensus * 100
	switch {
	case pct > 90:
		return 1.10
	case pct >= 70:
		return 1.05
	case pct >= 50:
		return 1.00
	default:
		return 0.90
	}
}

// Calibrate runs the chain and returns the calibrated confidence with
// the factor trail that produced it.
func Calibrate(in Input) (float64, []claim.CalibrationFactor) {
	value := baselineExplicit
	if in.Origin == claim.OriginInferred {
		value = baselineInferred
	}
	factors := []claim.CalibrationFactor{{Name: "origin_baseline", Multiplier: value}}

	apply := func(name string, m float64) {
		value *= m
		factors = append(factors, claim.CalibrationFactor{Name: name, Multiplier: m})
	}

	apply("citation_type", citationMultipliers[in.CitationType])
	apply("contradiction", contradictionMultipliers[in.Contradiction])
	apply("consensus", consensusMultiplier(in.Consensus))
	apply("provenance", 0.80+0.20*in.Provenance)
	if in.RegulatoryRequired {
		apply("regulatory_boost", regulatoryBoost)
	}
	if in.DetailedFinancials {
		apply("financial_boost", financialBoost)
	}

	if value < MinConfidence {
		value = MinConfidence
	}
	if value > MaxConfidence {
		value = MaxConfidence
	}
	return math.Round(value*100) / 100, factors
}

// Calibrator applies the chain to claims and tasks, preserving the
// original confidence in calibration metadata.
//
// Thread Safety: stateless and safe to share; the Calibrate* methods
// mutate their arguments and must not race on the same claim.
type Calibrator struct {
	now func() time.Time
}

// NewCalibrator creates a Calibrator.
func NewCalibrator() *Calibrator {
	return &Calibrator{now: func() time.Time { return time.Now().UTC() }}
}

// CalibrateClaim replaces the claim's confidence. The artifact supplies
// the citation verdict and provenance score; the ledger supplies the
// worst contradiction and the consensus level.
func (cal *Calibrator) CalibrateClaim(c *claim.Claim, ledger *claim.Ledger, artifact *claim.Artifact) {
	citationValid := true
	if chk, ok := artifact.CitationChecks[c.ID]; ok {
		citationValid = chk.Valid
	}

	task := artifact.TaskByID(c.TaskID)
	in := Input{
		Origin:             c.Origin,
		CitationType:       ClassifyCitation(c, citationValid),
		Contradiction:      ledger.HighestSeverityFor(c.ID),
		Consensus:          ledger.ConsensusFor(c.ID),
		Provenance:         artifact.ProvenanceFor(c.ID),
		RegulatoryRequired: task != nil && task.RequiresRegulatory(),
		DetailedFinancials: task != nil && task.HasDetailedFinancials(),
	}

	calibrated, factors := Calibrate(in)
	c.CalibrationMetadata = &claim.CalibrationMetadata{
		OriginalConfidence: c.Confidence,
		Factors:            factors,
		CalibratedAt:       cal.now(),
	}
	c.Confidence = calibrated
}

// CalibrateArtifact calibrates every claim in the ledger, then rolls
// task confidence up as the mean of the task's calibrated claims.
// Tasks without claims keep their reported confidence, clamped into
// calibration bounds.
func (cal *Calibrator) CalibrateArtifact(artifact *claim.Artifact) {
	for _, c := range artifact.Ledger.Claims() {
		cal.CalibrateClaim(c, artifact.Ledger, artifact)
	}

	for _, task := range artifact.Tasks {
		claims := artifact.Ledger.ByTask(task.ID)
		if len(claims) == 0 {
			task.Confidence = clamp(task.Confidence)
			continue
		}
		var sum float64
		for _, c := range claims {
			sum += c.Confidence
		}
		task.Confidence = math.Round(sum/float64(len(claims))*100) / 100
	}
}

func clamp(v float64) float64 {
	if v < MinConfidence {
		return MinConfidence
	}
	if v > MaxConfidence {
		return MaxConfidence
	}
	return v
}
