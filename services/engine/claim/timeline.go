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

// FieldValue is a task field that carries its own confidence and
// citation trail. Every populated TimelineTask field is one of these,
// so the extractor can emit a per-field claim with its own provenance.
type FieldValue struct {
	// Value is the field content as reported by the reasoner
	// (e.g. "90 days", "2025-01-15", "task-3").
	Value string `json:"value"`

	// Confidence is the reasoner-reported confidence for this field.
	Confidence float64 `json:"confidence"`

	// Origin records whether the field was quoted or inferred.
	Origin Origin `json:"origin,omitempty"`

	// Citations back the field value. Empty for inferred fields.
	Citations []Citation `json:"citations,omitempty"`
}

// RegulatoryRequirement records a compliance obligation on a task.
type RegulatoryRequirement struct {
	IsRequired bool       `json:"isRequired"`
	Regulation string     `json:"regulation,omitempty"`
	Confidence float64    `json:"confidence"`
	Origin     Origin     `json:"origin,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
}

// FinancialImpact records the monetary dimension of a task. Breakdown
// maps metric names (e.g. "capex", "opex") to amounts; a populated
// breakdown is what the calibrator's detailed-financial boost keys on.
type FinancialImpact struct {
	Amount     float64            `json:"amount"`
	Currency   string             `json:"currency,omitempty"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	Confidence float64            `json:"confidence"`
	Origin     Origin             `json:"origin,omitempty"`
	Citations  []Citation         `json:"citations,omitempty"`
}

// TimelineTask is one unit of a proposed project timeline. The engine
// never reorders tasks; mutations are restricted to Confidence, an
// Origin downgrade from explicit to inferred, review flags, and the
// repair engine's documented field synthesis.
type TimelineTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Origin     Origin  `json:"origin"`
	Confidence float64 `json:"confidence"`

	Duration  *FieldValue `json:"duration,omitempty"`
	StartDate *FieldValue `json:"startDate,omitempty"`
	EndDate   *FieldValue `json:"endDate,omitempty"`

	// Dependencies are ids of tasks this one depends on. Each entry
	// becomes its own dependency claim.
	Dependencies []FieldValue `json:"dependencies,omitempty"`

	RegulatoryRequirement *RegulatoryRequirement `json:"regulatoryRequirement,omitempty"`
	FinancialImpact       *FinancialImpact       `json:"financialImpact,omitempty"`

	// SourceCitations back the task as a whole, independent of the
	// per-field citation lists.
	SourceCitations []Citation `json:"sourceCitations,omitempty"`

	ReviewFlags []ReviewFlag `json:"reviewFlags,omitempty"`

	// InferenceRationale is required when an explicit task is
	// downgraded to inferred.
	InferenceRationale string `json:"inferenceRationale,omitempty"`

	ValidatedAt time.Time `json:"validatedAt,omitempty"`
}

// HasDetailedFinancials reports whether the task carries a financial
// impact with a non-empty breakdown.
func (t *TimelineTask) HasDetailedFinancials() bool {
	return t.FinancialImpact != nil && len(t.FinancialImpact.Breakdown) > 0
}

// RequiresRegulatory reports whether the task carries a required
// regulatory requirement.
func (t *TimelineTask) RequiresRegulatory() bool {
	return t.RegulatoryRequirement != nil && t.RegulatoryRequirement.IsRequired
}

// Flag appends a review flag unless an identical one is already
// present. Flagging twice with the same type and reason is a no-op so
// repair strategies stay idempotent.
func (t *TimelineTask) Flag(ft ReviewFlagType, reason string) {
	for _, f := range t.ReviewFlags {
		if f.Type == ft && f.Reason == reason {
			return
		}
	}
	t.ReviewFlags = append(t.ReviewFlags, ReviewFlag{Type: ft, Reason: reason})
}
