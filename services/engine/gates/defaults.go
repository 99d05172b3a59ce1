// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gates

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/contradiction"
)

// Default gate names.
const (
	GateCitationCoverage      = "CITATION_COVERAGE"
	GateContradictionSeverity = "CONTRADICTION_SEVERITY"
	GateConfidenceMinimum     = "CONFIDENCE_MINIMUM"
	GateSchemaCompliance      = "SCHEMA_COMPLIANCE"
	GateRegulatoryFlags       = "REGULATORY_FLAGS"
	GateProvenanceQuality     = "PROVENANCE_QUALITY"
)

// citationCoverageGate requires that enough explicit claims carry a
// citation. Coverage counts citation presence, not validity; invalid
// citations are the auditor's concern.
type citationCoverageGate struct {
	threshold float64
}

func (g *citationCoverageGate) Name() string  { return GateCitationCoverage }
func (g *citationCoverageGate) Blocker() bool { return true }

func (g *citationCoverageGate) Evaluate(artifact *claim.Artifact) Result {
	coverage := artifact.CitationCoverage()
	return Result{
		Passed:    coverage >= g.threshold,
		Score:     coverage,
		Threshold: g.threshold,
		Details:   fmt.Sprintf("%.0f%% of explicit claims cited", coverage*100),
	}
}

// contradictionSeverityGate blocks on any unresolved high-severity
// contradiction.
type contradictionSeverityGate struct{}

func (g *contradictionSeverityGate) Name() string  { return GateContradictionSeverity }
func (g *contradictionSeverityGate) Blocker() bool { return true }

func (g *contradictionSeverityGate) Evaluate(artifact *claim.Artifact) Result {
	var unresolved int
	for _, c := range artifact.Ledger.Contradictions() {
		if c.Severity == claim.SeverityHigh && !c.Resolved() {
			unresolved++
		}
	}
	return Result{
		Passed:    unresolved == 0,
		Score:     float64(unresolved),
		Threshold: 0,
		Details:   fmt.Sprintf("%d unresolved high-severity contradictions", unresolved),
	}
}

// confidenceMinimumGate requires every claim and task to clear the
// calibrated confidence floor.
type confidenceMinimumGate struct {
	threshold float64
}

func (g *confidenceMinimumGate) Name() string  { return GateConfidenceMinimum }
func (g *confidenceMinimumGate) Blocker() bool { return true }

func (g *confidenceMinimumGate) Evaluate(artifact *claim.Artifact) Result {
	lowest := 1.0
	var offenders []string
	for _, c := range artifact.Ledger.Claims() {
		if c.Confidence < lowest {
			lowest = c.Confidence
		}
		if c.Confidence < g.threshold {
			offenders = append(offenders, c.ID)
		}
	}
	for _, t := range artifact.Tasks {
		if t.Confidence < lowest {
			lowest = t.Confidence
		}
		if t.Confidence < g.threshold {
			offenders = append(offenders, t.ID)
		}
	}
	sort.Strings(offenders)

	details := "all items clear the confidence floor"
	if len(offenders) > 0 {
		details = fmt.Sprintf("below floor: %s", strings.Join(offenders, ", "))
	}
	return Result{
		Passed:    len(offenders) == 0,
		Score:     lowest,
		Threshold: g.threshold,
		Details:   details,
	}
}

//go:embed schema.json
var artifactSchema []byte

// schemaGate validates the artifact's claims and tasks against the
// embedded JSON Schema.
type schemaGate struct {
	schema *jsonschema.Schema
}

func newSchemaGate() (*schemaGate, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("artifact.json", bytes.NewReader(artifactSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("artifact.json")
	if err != nil {
		return nil, err
	}
	return &schemaGate{schema: schema}, nil
}

func (g *schemaGate) Name() string  { return GateSchemaCompliance }
func (g *schemaGate) Blocker() bool { return true }

func (g *schemaGate) Evaluate(artifact *claim.Artifact) Result {
	doc := map[string]any{
		"claims": artifact.Ledger.Claims(),
	}
	if artifact.Tasks != nil {
		doc["tasks"] = artifact.Tasks
	}

	// Round-trip through JSON so the schema sees what a consumer
	// would: tagged field names, omitted empties.
	raw, err := json.Marshal(doc)
	if err != nil {
		return Result{Passed: false, Details: fmt.Sprintf("marshal: %v", err)}
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return Result{Passed: false, Details: fmt.Sprintf("unmarshal: %v", err)}
	}

	if err := g.schema.Validate(inst); err != nil {
		return Result{Passed: false, Score: 0, Details: schemaErrorSummary(err)}
	}
	return Result{Passed: true, Score: 1, Details: "artifact conforms to schema"}
}

// schemaErrorSummary flattens a jsonschema validation error to its
// leaf causes, which are the lines a caller can act on.
func schemaErrorSummary(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var leaves []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			leaves = append(leaves, fmt.Sprintf("%s: %s", e.InstanceLocation, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(leaves)
	if len(leaves) > 5 {
		leaves = append(leaves[:5], fmt.Sprintf("and %d more", len(leaves)-5))
	}
	return strings.Join(leaves, "; ")
}

// regulatoryFlagsGate warns when a task that mentions a regulatory
// keyword does not carry a required regulatory requirement.
type regulatoryFlagsGate struct{}

func (g *regulatoryFlagsGate) Name() string  { return GateRegulatoryFlags }
func (g *regulatoryFlagsGate) Blocker() bool { return false }

func (g *regulatoryFlagsGate) Evaluate(artifact *claim.Artifact) Result {
	var hits, flagged int
	var missing []string
	for _, t := range artifact.Tasks {
		if !contradiction.IsRegulatorySource(t.Name) && !contradiction.IsRegulatorySource(t.Description) {
			continue
		}
		hits++
		if t.RequiresRegulatory() {
			flagged++
		} else {
			missing = append(missing, t.ID)
		}
	}
	sort.Strings(missing)

	score := 1.0
	if hits > 0 {
		score = float64(flagged) / float64(hits)
	}
	details := fmt.Sprintf("%d/%d regulatory tasks flagged", flagged, hits)
	if len(missing) > 0 {
		details += ": missing " + strings.Join(missing, ", ")
	}
	return Result{
		Passed:    len(missing) == 0,
		Score:     score,
		Threshold: 1.0,
		Details:   details,
	}
}

// provenanceQualityGate warns when the mean audit score falls below
// threshold.
type provenanceQualityGate struct {
	threshold float64
}

func (g *provenanceQualityGate) Name() string  { return GateProvenanceQuality }
func (g *provenanceQualityGate) Blocker() bool { return false }

func (g *provenanceQualityGate) Evaluate(artifact *claim.Artifact) Result {
	avg := artifact.AverageAuditScore()
	return Result{
		Passed:    avg >= g.threshold,
		Score:     avg,
		Threshold: g.threshold,
		Details:   fmt.Sprintf("mean audit score %.1f", avg),
	}
}
