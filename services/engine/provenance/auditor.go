// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provenance scores the integrity of each claim independently
// of whether it contradicts anything.
//
// Scoring starts from 100 and subtracts a fixed penalty per failed
// sub-audit, then scales by provider trust. Structural oddities that
// suggest tampering are reported alongside but never scored, so a
// malformed-but-honest claim is distinguishable from a fabricated one.
package provenance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/veracity/services/engine/citation"
	"github.com/AleutianAI/veracity/services/engine/claim"
)

// Penalty weights per sub-audit.
const (
	PenaltyHallucination    = 50
	PenaltyMisattribution   = 20
	PenaltyMissingCitation  = 30
	PenaltyCircularRef      = 25
	PenaltyWeakInference    = 10
)

// validThreshold is the minimum final score for a claim to count as
// having valid provenance.
const validThreshold = 50

// highConfidence is the bar above which an inferred claim must carry a
// rationale.
const highConfidence = 0.9

// circularMarkers in a cited document name indicate a reasoner citing
// another reasoner's output.
var circularMarkers = []string{"output", "generated", "response"}

// Check names used in findings.
const (
	CheckHallucination   = "hallucination"
	CheckMisattribution  = "incorrect_attribution"
	CheckMissingCitation = "missing_citation"
	CheckCircularRef     = "circular_reference"
	CheckWeakInference   = "weak_inference"
)

// Finding is one failed sub-audit.
type Finding struct {
	Check   string  `json:"check"`
	Penalty float64 `json:"penalty"`
	Detail  string  `json:"detail"`
}

// Audit is the integrity result for one claim. Score is on the 0..100
// scale; Normalized converts to 0..1 for the calibrator.
type Audit struct {
	ClaimID          string    `json:"claimId"`
	Score            float64   `json:"score"`
	Valid            bool      `json:"valid"`
	Findings         []Finding `json:"findings,omitempty"`
	TamperIndicators []string  `json:"tamperIndicators,omitempty"`
	ProviderWeight   float64   `json:"providerWeight"`
}

// Normalized returns the score on the 0..1 scale.
func (a *Audit) Normalized() float64 {
	n := a.Score / 100
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Report aggregates a batch audit.
type Report struct {
	Audits       []*Audit `json:"audits"`
	AverageScore float64  `json:"averageScore"`
	PassRate     float64  `json:"passRate"`
}

// Config tunes the auditor.
type Config struct {
	// ProviderWeights maps providers to trust weights in [0,1]. The
	// final score is multiplied by (0.75 + 0.25 × weight).
	ProviderWeights map[claim.Provider]float64

	// Parallelism caps concurrent audits in BatchAudit.
	Parallelism int
}

// DefaultConfig returns the standard provider trust weights.
func DefaultConfig() Config {
	return Config{
		ProviderWeights: map[claim.Provider]float64{
			claim.ProviderInternal: 1.0,
			claim.ProviderClaude:   0.95,
			claim.ProviderGemini:   0.9,
			claim.ProviderGPT:      0.9,
			claim.ProviderGrok:     0.85,
			claim.ProviderUnknown:  0.5,
		},
		Parallelism: 8,
	}
}

// Auditor assigns integrity scores to claims.
//
// Thread Safety: safe for concurrent use; the auditor holds only
// immutable configuration.
type Auditor struct {
	config Config
}

// NewAuditor creates an Auditor. Missing provider weights fall back to
// the defaults, so callers can override a single provider without
// restating the table.
func NewAuditor(config Config) *Auditor {
	def := DefaultConfig()
	if config.ProviderWeights == nil {
		config.ProviderWeights = def.ProviderWeights
	} else {
		for p, w := range def.ProviderWeights {
			if _, ok := config.ProviderWeights[p]; !ok {
				config.ProviderWeights[p] = w
			}
		}
	}
	if config.Parallelism <= 0 {
		config.Parallelism = def.Parallelism
	}
	return &Auditor{config: config}
}

// AuditClaim scores one claim. verdict is the citation verifier's
// outcome for the claim's citation, or nil when the claim is uncited.
func (a *Auditor) AuditClaim(c *claim.Claim, sources claim.SourceSet, verdict *citation.Verdict) *Audit {
	audit := &Audit{ClaimID: c.ID}

	a.checkCitationIntegrity(c, sources, verdict, audit)
	a.checkMissingCitation(c, audit)
	a.checkCircularReference(c, audit)
	a.checkWeakInference(c, audit)
	a.collectTamperIndicators(c, verdict, audit)

	score := 100.0
	for _, f := range audit.Findings {
		score -= f.Penalty
	}
	if score < 0 {
		score = 0
	}

	weight, ok := a.config.ProviderWeights[c.Source.Provider]
	if !ok {
		weight = a.config.ProviderWeights[claim.ProviderUnknown]
	}
	audit.ProviderWeight = weight
	audit.Score = score * (0.75 + 0.25*weight)
	audit.Valid = audit.Score >= validThreshold
	return audit
}

// checkCitationIntegrity covers the hallucination and misattribution
// audits. The two are exclusive: a quote located in a different source
// than the named one is misattributed, not fabricated.
func (a *Auditor) checkCitationIntegrity(c *claim.Claim, sources claim.SourceSet, verdict *citation.Verdict, audit *Audit) {
	if c.Origin != claim.OriginExplicit || !c.HasCitation() {
		return
	}
	cit := c.Source.Citation
	_, docPresent := sources[cit.DocumentName]
	if docPresent && (verdict == nil || verdict.Valid) {
		return
	}

	if other := findQuoteElsewhere(cit, sources); other != "" {
		audit.Findings = append(audit.Findings, Finding{
			Check:   CheckMisattribution,
			Penalty: PenaltyMisattribution,
			Detail:  fmt.Sprintf("quote attributed to %s but found in %s", cit.DocumentName, other),
		})
		return
	}

	detail := "cited quote not found in any source"
	if !docPresent {
		detail = fmt.Sprintf("cited document %s not in sources", cit.DocumentName)
	}
	audit.Findings = append(audit.Findings, Finding{
		Check:   CheckHallucination,
		Penalty: PenaltyHallucination,
		Detail:  detail,
	})
}

func (a *Auditor) checkMissingCitation(c *claim.Claim, audit *Audit) {
	explicitUncited := c.Origin == claim.OriginExplicit && !c.HasCitation()
	inferredUnexplained := c.Origin == claim.OriginInferred &&
		c.Confidence >= highConfidence && c.InferenceRationale == ""
	if !explicitUncited && !inferredUnexplained {
		return
	}

	detail := "explicit claim carries no citation"
	if inferredUnexplained {
		detail = "high-confidence inferred claim carries no rationale"
	}
	audit.Findings = append(audit.Findings, Finding{
		Check:   CheckMissingCitation,
		Penalty: PenaltyMissingCitation,
		Detail:  detail,
	})
}

func (a *Auditor) checkCircularReference(c *claim.Claim, audit *Audit) {
	if !c.Source.Provider.IsLLM() {
		return
	}
	lower := strings.ToLower(c.Source.DocumentName)
	for _, marker := range circularMarkers {
		if strings.Contains(lower, marker) {
			audit.Findings = append(audit.Findings, Finding{
				Check:   CheckCircularRef,
				Penalty: PenaltyCircularRef,
				Detail:  fmt.Sprintf("reasoner %s cites generated document %s", c.Source.Provider, c.Source.DocumentName),
			})
			return
		}
	}
}

func (a *Auditor) checkWeakInference(c *claim.Claim, audit *Audit) {
	if c.Origin != claim.OriginInferred {
		return
	}
	if len(c.SupportingFacts) > 0 && c.InferenceRationale != "" {
		return
	}
	audit.Findings = append(audit.Findings, Finding{
		Check:   CheckWeakInference,
		Penalty: PenaltyWeakInference,
		Detail:  "inferred claim lacks supporting facts or rationale",
	})
}

// collectTamperIndicators records structural oddities. None of these
// affect the score.
func (a *Auditor) collectTamperIndicators(c *claim.Claim, verdict *citation.Verdict, audit *Audit) {
	add := func(s string) { audit.TamperIndicators = append(audit.TamperIndicators, s) }

	if c.Text == "" || c.ID == "" || !claim.ValidType(c.Type) {
		add("missing required fields")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		add("confidence outside [0,1]")
	}
	if cit := c.Source.Citation; cit != nil {
		if cit.StartChar < 0 {
			add("negative citation offset")
		}
		if cit.EndChar < cit.StartChar {
			add("citation range end before start")
		}
	}
	if verdict != nil && verdict.LengthMismatch {
		add("quote length disagrees with cited range")
	}
}

// findQuoteElsewhere looks for the cited quote in every source other
// than the named one. Returns the first (name-sorted) document that
// contains it, or "".
func findQuoteElsewhere(cit *claim.Citation, sources claim.SourceSet) string {
	quote := citation.Fold(cit.ExactQuote)
	if quote == "" {
		return ""
	}
	for _, name := range sortedNames(sources) {
		if name == cit.DocumentName {
			continue
		}
		if strings.Contains(citation.Fold(sources[name].Content), quote) {
			return name
		}
	}
	return ""
}

func sortedNames(sources claim.SourceSet) []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BatchAudit audits claims concurrently and aggregates. Results align
// with the input slice; verdicts may be nil or sparse (nil entries for
// uncited claims).
func (a *Auditor) BatchAudit(ctx context.Context, claims []*claim.Claim, sources claim.SourceSet, verdicts map[string]*citation.Verdict) (*Report, error) {
	report := &Report{Audits: make([]*Audit, len(claims))}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Parallelism)
	for i, c := range claims {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Audits[i] = a.AuditClaim(c, sources, verdicts[c.ID])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch audit: %w", err)
	}

	var sum float64
	var passed int
	for _, audit := range report.Audits {
		sum += audit.Score
		if audit.Valid {
			passed++
		}
	}
	if len(report.Audits) > 0 {
		report.AverageScore = sum / float64(len(report.Audits))
		report.PassRate = float64(passed) / float64(len(report.Audits))
	}
	return report, nil
}
