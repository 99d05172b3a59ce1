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

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

// RawClaim is the boundary DTO for reasoner output. The extractor
// projects these open records into the closed Claim model; it never
// calls reasoners or reads primary sources itself.
type RawClaim struct {
	Text       string  `json:"text" validate:"required"`
	ClaimType  string  `json:"claimType" validate:"required"`
	Origin     string  `json:"origin,omitempty"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`

	// Citation hints. When Quote is non-empty a citation record is
	// attached; offsets are passed through unchecked and left to the
	// citation verifier.
	Quote     string `json:"exactQuote,omitempty"`
	StartChar int    `json:"startChar,omitempty"`
	EndChar   int    `json:"endChar,omitempty"`

	Rationale       string   `json:"inferenceRationale,omitempty"`
	SupportingFacts []string `json:"supportingFacts,omitempty"`
}

// Extractor projects reasoner output and timeline tasks into Claims
// with deterministic ids.
//
// Thread Safety: safe for concurrent use. The validator instance
// caches struct metadata behind its own lock.
type Extractor struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ExtractFromDocument converts a reasoner's raw claim list for one
// source document into Claims. Raw items are processed in slice order;
// the item's position is the within-source index hashed into its id,
// so re-extracting the same input reproduces the same ids.
//
// Returns ErrInvalidInput when any item has empty text, a claim type
// outside the enum, or an explicit origin with no quote.
func (e *Extractor) ExtractFromDocument(source *Source, raw []RawClaim) ([]*Claim, error) {
	if source == nil || source.Name == "" {
		return nil, fmt.Errorf("extract: source document required: %w", ErrInvalidInput)
	}

	claims := make([]*Claim, 0, len(raw))
	for i, rc := range raw {
		if err := e.validate.Struct(rc); err != nil {
			return nil, fmt.Errorf("extract: raw claim %d: %v: %w", i, err, ErrInvalidInput)
		}
		if !ValidType(Type(rc.ClaimType)) {
			return nil, fmt.Errorf("extract: raw claim %d: unknown claim type %q: %w", i, rc.ClaimType, ErrInvalidInput)
		}

		origin := OriginExplicit
		if rc.Origin == string(OriginInferred) {
			origin = OriginInferred
		}
		if origin == OriginExplicit && rc.Quote == "" {
			return nil, fmt.Errorf("extract: raw claim %d: explicit claim without citation: %w", i, ErrInvalidInput)
		}

		c := &Claim{
			ID:         ComputeID(source.Name, i, rc.Text),
			Text:       rc.Text,
			Type:       Type(rc.ClaimType),
			Origin:     origin,
			Confidence: rc.Confidence,
			Source: SourceRef{
				DocumentName: source.Name,
				Provider:     source.Provider,
			},
			InferenceRationale: rc.Rationale,
			SupportingFacts:    rc.SupportingFacts,
			ValidatedAt:        e.now(),
		}
		if origin == OriginInferred {
			c.Source.DocumentName = InferredDocument
		}
		if rc.Quote != "" {
			c.Source.Citation = &Citation{
				DocumentName: source.Name,
				StartChar:    rc.StartChar,
				EndChar:      rc.EndChar,
				ExactQuote:   rc.Quote,
				RetrievedAt:  e.now(),
			}
		}
		claims = append(claims, c)
	}
	return claims, nil
}

// ExtractFromTask emits one Claim per populated task field: duration,
// startDate, endDate, one per dependency, the regulatory requirement
// when it is required, and one per financial metric present. Field
// order is fixed so the within-task index, and therefore each claim
// id, is stable across runs.
func (e *Extractor) ExtractFromTask(task *TimelineTask) ([]*Claim, error) {
	if task == nil || task.ID == "" {
		return nil, fmt.Errorf("extract: task id required: %w", ErrInvalidInput)
	}

	var claims []*Claim
	index := 0
	emit := func(t Type, text string, fv FieldValue) error {
		if text == "" {
			return fmt.Errorf("extract: task %s: empty %s claim text: %w", task.ID, t, ErrInvalidInput)
		}
		origin := fv.Origin
		if origin == "" {
			origin = task.Origin
		}
		c := &Claim{
			ID:         ComputeID(task.ID, index, text),
			TaskID:     task.ID,
			Text:       text,
			Type:       t,
			Origin:     origin,
			Confidence: fv.Confidence,
			Source: SourceRef{
				DocumentName: InferredDocument,
			},
			ValidatedAt: e.now(),
		}
		if len(fv.Citations) > 0 {
			cit := fv.Citations[0]
			c.Origin = origin
			c.Source.DocumentName = cit.DocumentName
			c.Source.Citation = &cit
		} else if origin == OriginExplicit && len(task.SourceCitations) > 0 {
			cit := task.SourceCitations[0]
			c.Source.DocumentName = cit.DocumentName
			c.Source.Citation = &cit
		}
		index++
		claims = append(claims, c)
		return nil
	}

	if task.Duration != nil {
		if err := emit(TypeDuration, fmt.Sprintf("Task %q duration is %s", task.Name, task.Duration.Value), *task.Duration); err != nil {
			return nil, err
		}
	}
	if task.StartDate != nil {
		if err := emit(TypeStartDate, fmt.Sprintf("Task %q starts %s", task.Name, task.StartDate.Value), *task.StartDate); err != nil {
			return nil, err
		}
	}
	if task.EndDate != nil {
		if err := emit(TypeEndDate, fmt.Sprintf("Task %q ends %s", task.Name, task.EndDate.Value), *task.EndDate); err != nil {
			return nil, err
		}
	}
	for _, dep := range task.Dependencies {
		if err := emit(TypeDependency, fmt.Sprintf("Task %q depends on %s", task.Name, dep.Value), dep); err != nil {
			return nil, err
		}
	}
	if task.RequiresRegulatory() {
		rr := task.RegulatoryRequirement
		text := fmt.Sprintf("Task %q is subject to %s", task.Name, rr.Regulation)
		if rr.Regulation == "" {
			text = fmt.Sprintf("Task %q carries a regulatory requirement", task.Name)
		}
		fv := FieldValue{Confidence: rr.Confidence, Origin: rr.Origin, Citations: rr.Citations}
		if err := emit(TypeRequirement, text, fv); err != nil {
			return nil, err
		}
	}
	if task.FinancialImpact != nil {
		fi := task.FinancialImpact
		fv := FieldValue{Confidence: fi.Confidence, Origin: fi.Origin, Citations: fi.Citations}
		if fi.Amount != 0 {
			text := fmt.Sprintf("Task %q financial impact is %.2f %s", task.Name, fi.Amount, fi.Currency)
			if err := emit(TypeFinancial, text, fv); err != nil {
				return nil, err
			}
		}
		for _, metric := range sortedKeys(fi.Breakdown) {
			text := fmt.Sprintf("Task %q %s is %.2f %s", task.Name, metric, fi.Breakdown[metric], fi.Currency)
			if err := emit(TypeFinancial, text, fv); err != nil {
				return nil, err
			}
		}
	}

	return claims, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExtractFromTimeline runs ExtractFromTask over every task and fills
// the ledger.
func (e *Extractor) ExtractFromTimeline(tasks []*TimelineTask, ledger *Ledger) error {
	for _, task := range tasks {
		claims, err := e.ExtractFromTask(task)
		if err != nil {
			return err
		}
		for _, c := range claims {
			if err := ledger.Add(c); err != nil {
				return err
			}
		}
	}
	return nil
}
