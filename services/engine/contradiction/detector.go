// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contradiction detects incompatibilities between claims of
// the same type and recommends an arbitration for each one.
//
// Detection is a pairwise O(n²) scan over the ledger, where n is the
// per-request claim count.
package contradiction

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AleutianAI/veracity/services/engine/claim"
)

// Config tunes the detector.
type Config struct {
	// NumericalTolerance is the relative difference above which two
	// numeric values contradict.
	NumericalTolerance float64

	// TemporalToleranceDays is the date gap, in days, above which two
	// dates contradict.
	TemporalToleranceDays float64
}

// DefaultConfig returns the standard detector settings.
func DefaultConfig() Config {
	return Config{
		NumericalTolerance:    0.20,
		TemporalToleranceDays: 7,
	}
}

// Detector finds pairwise contradictions in a ledger.
//
// Thread Safety: the detector itself is stateless and safe to share,
// but Detect mutates the ledger and must not run concurrently with
// other ledger writers.
type Detector struct {
	config Config
	now    func() time.Time
}

// NewDetector creates a Detector. Zero config fields fall back to the
// defaults.
func NewDetector(config Config) *Detector {
	def := DefaultConfig()
	if config.NumericalTolerance <= 0 {
		config.NumericalTolerance = def.NumericalTolerance
	}
	if config.TemporalToleranceDays <= 0 {
		config.TemporalToleranceDays = def.TemporalToleranceDays
	}
	return &Detector{config: config, now: func() time.Time { return time.Now().UTC() }}
}

// Detect scans every claim pair and records contradictions in the
// ledger, each carrying a resolution recommendation from the matrix.
// Returns the contradictions added by this pass.
//
// Pairs are enumerated over the id-sorted claim list, so the result
// set and every contradiction id are independent of extraction order.
// Re-running over the same ledger adds nothing: ids are deterministic
// and duplicate inserts collapse.
func (d *Detector) Detect(ledger *claim.Ledger) ([]*claim.Contradiction, error) {
	sorted := ledger.SortedClaims()
	var added []*claim.Contradiction

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			if a.Type != b.Type {
				continue
			}
			if a.TaskID != "" && a.TaskID == b.TaskID {
				continue
			}

			found, ok := d.compare(a, b)
			if !ok {
				continue
			}
			found.Resolution = Resolve(a, b, found.Severity)
			found.DetectedAt = d.now()

			if ledger.ContradictionByID(found.ID) != nil {
				continue
			}
			if err := ledger.AddContradiction(found); err != nil {
				return added, fmt.Errorf("detect: %w", err)
			}
			added = append(added, found)
		}
	}
	return added, nil
}

// compare applies the pairwise rules in priority order. A rule that
// can judge the pair decides it: two comparable numbers within
// tolerance are consistent, not a candidate for the later text rules.
func (d *Detector) compare(a, b *claim.Claim) (*claim.Contradiction, bool) {
	// Dates are matched up front and masked out of the numeric scan,
	// otherwise the bare-number pattern reads "2025-01-15" as 2025.
	dateA, rawA, hasDateA := extractDate(a.Text)
	dateB, rawB, hasDateB := extractDate(b.Text)

	numA, okA := extractNumeric(maskDate(a.Text, rawA))
	numB, okB := extractNumeric(maskDate(b.Text, rawB))
	if okA && okB && numA.unit == numB.unit {
		return d.compareNumeric(a, b, numA, numB)
	}

	if hasDateA && hasDateB {
		return d.compareTemporal(a, b, dateA, dateB, rawA, rawB)
	}

	if hasPolarityConflict(a.Text, b.Text) {
		return d.build(claim.ContradictionPolarity, claim.SeverityHigh, a, b, "", ""), true
	}

	if wordA, wordB, ok := hasLogicalOpposites(a.Text, b.Text); ok {
		return d.build(claim.ContradictionLogical, claim.SeverityHigh, a, b, wordA, wordB), true
	}

	if jaccard(keywords(a.Text), keywords(b.Text)) < 0.3 {
		return d.build(claim.ContradictionDefinitional, claim.SeverityMedium, a, b, "", ""), true
	}

	return nil, false
}

// maskDate removes a matched date substring so its digits cannot be
// re-read as a bare number.
func maskDate(text, rawDate string) string {
	if rawDate == "" {
		return text
	}
	return strings.Replace(text, rawDate, " ", 1)
}

func (d *Detector) compareNumeric(a, b *claim.Claim, numA, numB numericValue) (*claim.Contradiction, bool) {
	max := math.Max(math.Abs(numA.value), math.Abs(numB.value))
	if max == 0 {
		return nil, false
	}
	relDiff := math.Abs(numA.value-numB.value) / max
	if relDiff <= d.config.NumericalTolerance {
		return nil, false
	}

	severity := claim.SeverityLow
	switch {
	case relDiff > 0.50:
		severity = claim.SeverityHigh
	case relDiff > 0.30:
		severity = claim.SeverityMedium
	}
	return d.build(claim.ContradictionNumerical, severity, a, b, numA.raw, numB.raw), true
}

func (d *Detector) compareTemporal(a, b *claim.Claim, dateA, dateB time.Time, rawA, rawB string) (*claim.Contradiction, bool) {
	deltaDays := math.Abs(dateA.Sub(dateB).Hours() / 24)
	if deltaDays <= d.config.TemporalToleranceDays {
		return nil, false
	}

	severity := claim.SeverityLow
	switch {
	case deltaDays > 90:
		severity = claim.SeverityHigh
	case deltaDays > 30:
		severity = claim.SeverityMedium
	}
	return d.build(claim.ContradictionTemporal, severity, a, b, rawA, rawB), true
}

func (d *Detector) build(ctype claim.ContradictionType, severity claim.Severity, a, b *claim.Claim, valueA, valueB string) *claim.Contradiction {
	return &claim.Contradiction{
		ID:       claim.ComputeContradictionID(ctype, a.ID, b.ID),
		Type:     ctype,
		Severity: severity,
		ClaimA:   a.ID,
		ClaimB:   b.ID,
		ValueA:   valueA,
		ValueB:   valueB,
	}
}
