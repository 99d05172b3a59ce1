// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contradiction

import (
	"math"
	"testing"
	"time"
)

func TestExtractNumericPriorityAndUnits(t *testing.T) {
	cases := []struct {
		text     string
		value    float64
		unit     numericUnit
	}{
		{"takes 90 days", 90, unitDays},
		{"lasts 2 weeks", 14, unitDays},
		{"spans 3 months", 90, unitDays},
		{"one quarter means 1 quarter", 91, unitDays},
		{"about 2 years", 730, unitDays},
		{"costs $2 million", 2e6, unitUSD},
		{"budget of $1.5b", 1.5e9, unitUSD},
		{"fee is $250,000", 250000, unitUSD},
		{"roughly $40k", 40000, unitUSD},
		{"uptime of 99.9%", 0.999, unitRatio},
		{"needs 12 engineers", 12, unitBare},
		// duration wins over money when both appear
		{"90 days at $200", 90, unitDays},
	}
	for _, tc := range cases {
		got, ok := extractNumeric(tc.text)
		if !ok {
			t.Errorf("extractNumeric(%q): no match", tc.text)
			continue
		}
		if math.Abs(got.value-tc.value) > 1e-9 || got.unit != tc.unit {
			t.Errorf("extractNumeric(%q) = %v %s, want %v %s", tc.text, got.value, got.unit, tc.value, tc.unit)
		}
	}

	if _, ok := extractNumeric("no numbers here"); ok {
		t.Errorf("extractNumeric matched text without numbers")
	}
}

func TestExtractDateForms(t *testing.T) {
	cases := []struct {
		text string
		want time.Time
	}{
		{"due 2025-01-15", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"due January 15, 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"due on March 3rd 2026", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"due 6/1/2025", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"ships in Q3 2025", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"ships in q1 2026", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, _, ok := extractDate(tc.text)
		if !ok {
			t.Errorf("extractDate(%q): no match", tc.text)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("extractDate(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}

	if _, _, ok := extractDate("sometime soon"); ok {
		t.Errorf("extractDate matched text without a date")
	}
}

func TestPolarityConflict(t *testing.T) {
	if !hasPolarityConflict("approval is required", "approval is not required") {
		t.Errorf("required / not required not detected")
	}
	if !hasPolarityConflict("report includes appendix", "report excludes appendix") {
		t.Errorf("includes / excludes not detected")
	}
	if hasPolarityConflict("approval is required", "approval is required") {
		t.Errorf("identical assertions flagged as polarity conflict")
	}
	// "is not" must not also count as a bare "is" on the same side.
	if hasPolarityConflict("access is not allowed", "entry is not allowed") {
		t.Errorf("two negated texts flagged against each other")
	}
}

func TestJaccardKeywords(t *testing.T) {
	a := keywords("The review board must approve the final budget")
	if a["the"] || a["must"] {
		t.Errorf("stopwords leaked into keyword set: %v", a)
	}

	same := jaccard(a, a)
	if same != 1.0 {
		t.Errorf("jaccard(a, a) = %v, want 1.0", same)
	}
	disjoint := jaccard(keywords("alpha bravo charlie"), keywords("delta echo foxtrot"))
	if disjoint != 0.0 {
		t.Errorf("jaccard of disjoint sets = %v, want 0.0", disjoint)
	}
}

func TestIsRegulatorySource(t *testing.T) {
	positives := []string{"FDA_Guidelines.pdf", "gdpr-notes.md", "OCC bulletin", "sox_controls.xlsx"}
	for _, name := range positives {
		if !IsRegulatorySource(name) {
			t.Errorf("IsRegulatorySource(%q) = false, want true", name)
		}
	}
	if IsRegulatorySource("internal_memo.md") {
		t.Errorf("internal memo classified as regulatory")
	}
}
