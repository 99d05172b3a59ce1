// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repair applies deterministic, bounded fixes for failed
// quality gates.
//
// Each default gate has exactly one strategy. Strategies run once, in
// gate-declaration order, followed by a single gate re-evaluation:
// there is no retry loop. Every mutation lands in the repair log so a
// caller can audit what changed. All strategies are idempotent, so a
// second pass over an already-repaired artifact changes nothing.
package repair

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/contradiction"
	"github.com/AleutianAI/veracity/services/engine/gates"
)

// Action names recorded in the repair log.
const (
	ActionAddedInferenceRationale = "added_inference_rationale"
	ActionAppliedResolution       = "applied_resolution"
	ActionAutoResolved            = "AUTO_RESOLVED"
	ActionBoostedConfidence       = "boosted_confidence"
	ActionFlaggedLowConfidence    = "flagged_low_confidence"
	ActionRemovedLowConfidence    = "removed_low_confidence_task"
	ActionNormalizedSchema        = "normalized_schema_fields"
	ActionSynthesizedRegulatory   = "synthesized_regulatory_requirement"
)

// Status tracks one repair attempt.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRepairing    Status = "repairing"
	StatusRepaired     Status = "repaired"
	StatusUnrepairable Status = "unrepairable"
)

// Entry is one logged mutation.
type Entry struct {
	Gate    string   `json:"gate"`
	Action  string   `json:"action"`
	Targets []string `json:"targets"`
	Changes []string `json:"changes,omitempty"`
}

// Outcome is the result of one repair attempt.
type Outcome struct {
	Status Status  `json:"status"`
	Log    []Entry `json:"log,omitempty"`

	// Before and After are the gate aggregates around the repair pass.
	// After equals Before when nothing needed repair.
	Before *gates.Aggregate `json:"before"`
	After  *gates.Aggregate `json:"after"`
}

// Config tunes the repair engine.
type Config struct {
	// MinConfidence mirrors the CONFIDENCE_MINIMUM gate threshold.
	MinConfidence float64

	// ConfidenceCap bounds the confidence of downgraded items.
	ConfidenceCap float64

	// RemoveLowConfidenceTasks selects the alternative strategy that
	// drops tasks below the floor instead of flagging them. Claims are
	// never removed.
	RemoveLowConfidenceTasks bool
}

// DefaultConfig returns the standard repair settings.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.50,
		ConfidenceCap: 0.85,
	}
}

// Engine runs the repair pass.
//
// Thread Safety: NOT safe for concurrent use on one artifact. Repairs
// are applied strictly sequentially on the orchestrator's working copy.
type Engine struct {
	config  Config
	manager *gates.Manager
	now     func() time.Time
}

// NewEngine creates an Engine bound to a gate manager.
func NewEngine(config Config, manager *gates.Manager) *Engine {
	def := DefaultConfig()
	if config.MinConfidence <= 0 {
		config.MinConfidence = def.MinConfidence
	}
	if config.ConfidenceCap <= 0 {
		config.ConfidenceCap = def.ConfidenceCap
	}
	return &Engine{
		config:  config,
		manager: manager,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Repair evaluates gates, applies one strategy per failed gate (and
// per repairable warning), then re-evaluates once. The artifact is
// mutated in place; callers that need the pre-repair state must copy
// before calling.
func (e *Engine) Repair(artifact *claim.Artifact) *Outcome {
	outcome := &Outcome{Status: StatusPending}
	outcome.Before = e.manager.Evaluate(artifact)

	needsWork := len(outcome.Before.Failures) > 0 || e.hasRepairableWarning(outcome.Before)
	if !needsWork {
		outcome.Status = StatusRepaired
		outcome.After = outcome.Before
		return outcome
	}

	outcome.Status = StatusRepairing
	for _, result := range outcome.Before.Results {
		if result.Passed {
			continue
		}
		if entries := e.applyStrategy(result.Name, artifact); len(entries) > 0 {
			outcome.Log = append(outcome.Log, entries...)
		}
	}

	outcome.After = e.manager.Evaluate(artifact)
	if len(outcome.After.Failures) == 0 {
		outcome.Status = StatusRepaired
	} else {
		outcome.Status = StatusUnrepairable
	}
	return outcome
}

// hasRepairableWarning reports whether a non-blocking failure has a
// strategy. Only REGULATORY_FLAGS does; provenance cannot be repaired
// after the fact.
func (e *Engine) hasRepairableWarning(agg *gates.Aggregate) bool {
	for _, w := range agg.Warnings {
		if w.Name == gates.GateRegulatoryFlags {
			return true
		}
	}
	return false
}

func (e *Engine) applyStrategy(gate string, artifact *claim.Artifact) []Entry {
	switch gate {
	case gates.GateCitationCoverage:
		return e.repairCitationCoverage(artifact)
	case gates.GateContradictionSeverity:
		return e.repairContradictions(artifact)
	case gates.GateConfidenceMinimum:
		return e.repairConfidence(artifact)
	case gates.GateSchemaCompliance:
		return e.repairSchema(artifact)
	case gates.GateRegulatoryFlags:
		return e.repairRegulatoryFlags(artifact)
	default:
		return nil
	}
}

// repairCitationCoverage downgrades every uncited explicit item to
// inferred, caps its confidence, and attaches a rationale stub.
func (e *Engine) repairCitationCoverage(artifact *claim.Artifact) []Entry {
	var entries []Entry
	for _, c := range artifact.Ledger.Claims() {
		if c.Origin != claim.OriginExplicit || c.HasCitation() {
			continue
		}
		changes := []string{"origin explicit→inferred"}
		c.Origin = claim.OriginInferred
		if c.Confidence > e.config.ConfidenceCap {
			changes = append(changes, fmt.Sprintf("confidence capped at %.2f", e.config.ConfidenceCap))
			c.Confidence = e.config.ConfidenceCap
		}
		if c.InferenceRationale == "" {
			c.InferenceRationale = "downgraded from explicit: no citation supplied"
			changes = append(changes, "rationale stub attached")
		}
		entries = append(entries, Entry{
			Gate:    gates.GateCitationCoverage,
			Action:  ActionAddedInferenceRationale,
			Targets: []string{c.ID},
			Changes: changes,
		})
	}

	for _, t := range artifact.Tasks {
		if t.Origin != claim.OriginExplicit || len(t.SourceCitations) > 0 {
			continue
		}
		changes := []string{"origin explicit→inferred"}
		t.Origin = claim.OriginInferred
		if t.Confidence > e.config.ConfidenceCap {
			changes = append(changes, fmt.Sprintf("confidence capped at %.2f", e.config.ConfidenceCap))
			t.Confidence = e.config.ConfidenceCap
		}
		if t.InferenceRationale == "" {
			t.InferenceRationale = "downgraded from explicit: no citation supplied"
			changes = append(changes, "rationale stub attached")
		}
		entries = append(entries, Entry{
			Gate:    gates.GateCitationCoverage,
			Action:  ActionAddedInferenceRationale,
			Targets: []string{t.ID},
			Changes: changes,
		})
	}
	return entries
}

// repairContradictions applies each high-severity contradiction's
// resolution recommendation. A preferred claim wins: the loser's
// confidence is multiplied by 0.85 and it is flagged. Without a
// preferred claim both sides are flagged for manual review and the
// contradiction is auto-resolved so it stops blocking.
func (e *Engine) repairContradictions(artifact *claim.Artifact) []Entry {
	var entries []Entry
	for _, contra := range artifact.Ledger.Contradictions() {
		if contra.Severity != claim.SeverityHigh || contra.Resolved() {
			continue
		}
		res := contra.Resolution
		if res == nil {
			a := artifact.Ledger.ByID(contra.ClaimA)
			b := artifact.Ledger.ByID(contra.ClaimB)
			res = contradiction.Resolve(a, b, contra.Severity)
			contra.Resolution = res
		}

		now := e.now()
		if res.PreferredClaim != "" {
			loserID := contra.ClaimA
			if loserID == res.PreferredClaim {
				loserID = contra.ClaimB
			}
			loser := artifact.Ledger.ByID(loserID)
			loser.Confidence = loser.Confidence * 0.85
			flagClaim(loser, claim.ReviewManualConflict, "overridden by "+res.PreferredClaim)
			contra.ResolvedAt = &now
			entries = append(entries, Entry{
				Gate:    gates.GateContradictionSeverity,
				Action:  ActionAppliedResolution,
				Targets: []string{contra.ID},
				Changes: []string{
					fmt.Sprintf("preferred %s (%s)", res.PreferredClaim, res.Strategy),
					fmt.Sprintf("reduced %s confidence to %.2f", loserID, loser.Confidence),
				},
			})
			continue
		}

		for _, id := range []string{contra.ClaimA, contra.ClaimB} {
			flagClaim(artifact.Ledger.ByID(id), claim.ReviewManualConflict, "unresolvable contradiction "+contra.ID)
		}
		contra.ResolvedAt = &now
		entries = append(entries, Entry{
			Gate:    gates.GateContradictionSeverity,
			Action:  ActionAutoResolved,
			Targets: []string{contra.ID},
			Changes: []string{"both claims flagged for manual review"},
		})
	}
	return entries
}

// repairConfidence handles items below the confidence floor. Items
// with strong citation support are lifted to the floor; the rest are
// flagged, or dropped when the alternative strategy is selected.
func (e *Engine) repairConfidence(artifact *claim.Artifact) []Entry {
	var entries []Entry
	for _, c := range artifact.Ledger.Claims() {
		if c.Confidence >= e.config.MinConfidence {
			continue
		}
		if chk, ok := artifact.CitationChecks[c.ID]; ok && chk.Valid && chk.Score >= 0.9 {
			c.Confidence = e.config.MinConfidence
			entries = append(entries, Entry{
				Gate:    gates.GateConfidenceMinimum,
				Action:  ActionBoostedConfidence,
				Targets: []string{c.ID},
				Changes: []string{fmt.Sprintf("boosted to %.2f on citation support", e.config.MinConfidence)},
			})
			continue
		}
		if flagClaim(c, claim.ReviewLowConfidence, fmt.Sprintf("calibrated confidence %.2f below %.2f", c.Confidence, e.config.MinConfidence)) {
			entries = append(entries, Entry{
				Gate:    gates.GateConfidenceMinimum,
				Action:  ActionFlaggedLowConfidence,
				Targets: []string{c.ID},
			})
		}
	}

	if e.config.RemoveLowConfidenceTasks {
		kept := artifact.Tasks[:0]
		for _, t := range artifact.Tasks {
			if t.Confidence < e.config.MinConfidence {
				entries = append(entries, Entry{
					Gate:    gates.GateConfidenceMinimum,
					Action:  ActionRemovedLowConfidence,
					Targets: []string{t.ID},
				})
				continue
			}
			kept = append(kept, t)
		}
		artifact.Tasks = kept
		return entries
	}

	for _, t := range artifact.Tasks {
		if t.Confidence >= e.config.MinConfidence {
			continue
		}
		before := len(t.ReviewFlags)
		t.Flag(claim.ReviewLowConfidence, fmt.Sprintf("confidence %.2f below %.2f", t.Confidence, e.config.MinConfidence))
		if len(t.ReviewFlags) > before {
			entries = append(entries, Entry{
				Gate:    gates.GateConfidenceMinimum,
				Action:  ActionFlaggedLowConfidence,
				Targets: []string{t.ID},
			})
		}
	}
	return entries
}

// repairSchema normalizes structurally malformed fields: regenerated
// ids, defaulted origins, clamped confidences, and unknown claim types
// collapsed to generic.
func (e *Engine) repairSchema(artifact *claim.Artifact) []Entry {
	var entries []Entry
	for i, c := range artifact.Ledger.Claims() {
		var changes []string
		if c.ID == "" {
			c.ID = claim.ComputeID(c.Source.DocumentName, i, c.Text)
			changes = append(changes, "regenerated id")
		}
		if c.Origin != claim.OriginExplicit && c.Origin != claim.OriginInferred {
			c.Origin = claim.OriginInferred
			changes = append(changes, "origin defaulted to inferred")
		}
		if !claim.ValidType(c.Type) {
			c.Type = claim.TypeGeneric
			changes = append(changes, "claim type collapsed to generic")
		}
		if c.Confidence < 0 {
			c.Confidence = 0
			changes = append(changes, "confidence clamped to 0")
		}
		if c.Confidence > 1 {
			c.Confidence = 1
			changes = append(changes, "confidence clamped to 1")
		}
		if len(changes) > 0 {
			entries = append(entries, Entry{
				Gate:    gates.GateSchemaCompliance,
				Action:  ActionNormalizedSchema,
				Targets: []string{c.ID},
				Changes: changes,
			})
		}
	}

	for _, t := range artifact.Tasks {
		var changes []string
		if t.Origin != claim.OriginExplicit && t.Origin != claim.OriginInferred {
			t.Origin = claim.OriginInferred
			changes = append(changes, "origin defaulted to inferred")
		}
		if t.Confidence < 0 {
			t.Confidence = 0
			changes = append(changes, "confidence clamped to 0")
		}
		if t.Confidence > 1 {
			t.Confidence = 1
			changes = append(changes, "confidence clamped to 1")
		}
		if len(changes) > 0 {
			entries = append(entries, Entry{
				Gate:    gates.GateSchemaCompliance,
				Action:  ActionNormalizedSchema,
				Targets: []string{t.ID},
				Changes: changes,
			})
		}
	}
	return entries
}

// repairRegulatoryFlags synthesizes a required regulatory requirement
// on every task that mentions a regulatory keyword but lacks one.
func (e *Engine) repairRegulatoryFlags(artifact *claim.Artifact) []Entry {
	var entries []Entry
	for _, t := range artifact.Tasks {
		if t.RequiresRegulatory() {
			continue
		}
		detected := detectRegulation(t.Name)
		if detected == "" {
			detected = detectRegulation(t.Description)
		}
		if detected == "" {
			continue
		}
		t.RegulatoryRequirement = &claim.RegulatoryRequirement{
			IsRequired: true,
			Regulation: detected,
			Confidence: 0.9,
			Origin:     claim.OriginExplicit,
		}
		entries = append(entries, Entry{
			Gate:    gates.GateRegulatoryFlags,
			Action:  ActionSynthesizedRegulatory,
			Targets: []string{t.ID},
			Changes: []string{"regulation " + detected},
		})
	}
	return entries
}

// flagClaim appends a review flag unless an identical one exists.
// Returns true when a flag was added.
func flagClaim(c *claim.Claim, ft claim.ReviewFlagType, reason string) bool {
	if c == nil {
		return false
	}
	for _, f := range c.ReviewFlags {
		if f.Type == ft && f.Reason == reason {
			return false
		}
	}
	c.ReviewFlags = append(c.ReviewFlags, claim.ReviewFlag{Type: ft, Reason: reason})
	return true
}

// regulationNames maps detected keywords to the canonical regulation
// label recorded on synthesized requirements.
var regulationNames = []struct{ keyword, label string }{
	{"hipaa", "HIPAA"},
	{"gdpr", "GDPR"},
	{"sox", "SOX"},
	{"pci", "PCI-DSS"},
	{"fda", "FDA"},
	{"fdic", "FDIC"},
	{"occ", "OCC"},
	{"federal reserve", "Federal Reserve"},
	{"compliance", "compliance"},
	{"regulation", "regulation"},
}

func detectRegulation(text string) string {
	if !contradiction.IsRegulatorySource(text) {
		return ""
	}
	lower := strings.ToLower(text)
	for _, r := range regulationNames {
		if strings.Contains(lower, r.keyword) {
			return r.label
		}
	}
	return ""
}
