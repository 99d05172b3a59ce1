// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package citation

import (
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/veracity/services/engine/claim"
)

func testSources(content string) claim.SourceSet {
	return claim.NewSourceSet([]*claim.Source{
		{Name: "doc.pdf", Provider: claim.ProviderInternal, Content: content, Size: len(content)},
	})
}

func TestVerifyExactMatch(t *testing.T) {
	content := strings.Repeat("x", 100) + "Standard review time is 90 days" + strings.Repeat("y", 50)
	cit := &claim.Citation{
		DocumentName: "doc.pdf", StartChar: 100, EndChar: 131,
		ExactQuote: "Standard review time is 90 days",
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources(content))
	if !verdict.Valid || verdict.MatchType != MatchExact || verdict.Score != 1.0 {
		t.Errorf("verdict = %+v, want valid exact 1.0", verdict)
	}
}

func TestVerifyExactMatchIgnoresPunctuationAndCase(t *testing.T) {
	content := "The Review Time, per policy, is NINETY (90) days."
	cit := &claim.Citation{
		DocumentName: "doc.pdf", StartChar: 0, EndChar: len([]rune(content)),
		ExactQuote: "the review time per policy is ninety 90 days",
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources(content))
	if !verdict.Valid || verdict.MatchType != MatchExact {
		t.Errorf("verdict = %+v, want exact after normalization", verdict)
	}
}

func TestVerifyFuzzyAtRange(t *testing.T) {
	content := "Standard review time is 90 days"
	cit := &claim.Citation{
		DocumentName: "doc.pdf", StartChar: 0, EndChar: len([]rune(content)),
		ExactQuote: "Standard review time was 90 days", // one-word drift
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources(content))
	if !verdict.Valid || verdict.MatchType != MatchFuzzy {
		t.Fatalf("verdict = %+v, want fuzzy", verdict)
	}
	if verdict.Score < 0.85 || verdict.Score >= 1.0 {
		t.Errorf("fuzzy score = %v, want [0.85, 1.0)", verdict.Score)
	}
}

func TestVerifyContextSearchCorrectsOffsets(t *testing.T) {
	// Quote exists 40 chars after the stated range.
	content := strings.Repeat("a ", 50) + "the approval deadline is June first" + strings.Repeat(" b", 50)
	quoteStart := 100
	cit := &claim.Citation{
		DocumentName: "doc.pdf", StartChar: 60, EndChar: 95,
		ExactQuote: "the approval deadline is June first",
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources(content))
	if !verdict.Valid || verdict.MatchType != MatchContext {
		t.Fatalf("verdict = %+v, want context match", verdict)
	}
	if verdict.Score != 0.9 {
		t.Errorf("score = %v, want 0.9 for exact-in-context", verdict.Score)
	}
	if verdict.CorrectedRange == nil {
		t.Fatalf("context match missing corrected range")
	}
	if verdict.CorrectedRange.StartChar != quoteStart {
		t.Errorf("corrected start = %d, want %d", verdict.CorrectedRange.StartChar, quoteStart)
	}
}

func TestVerifyWholeDocumentFallback(t *testing.T) {
	// Quote is far outside the context window of the stated range.
	content := "intro. " + strings.Repeat("filler text ", 100) + "budget approval requires board sign off"
	cit := &claim.Citation{
		DocumentName: "doc.pdf", StartChar: 0, EndChar: 6,
		ExactQuote: "budget approval requires board sign off",
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources(content))
	if !verdict.Valid || verdict.MatchType != MatchContext {
		t.Fatalf("verdict = %+v, want context match from document search", verdict)
	}
	if verdict.CorrectedRange == nil {
		t.Errorf("corrected range missing")
	}
}

func TestVerifyNoMatch(t *testing.T) {
	cit := &claim.Citation{
		DocumentName: "doc.pdf", StartChar: 0, EndChar: 10,
		ExactQuote: "entirely fabricated quotation about nothing",
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources("short unrelated content"))
	if verdict.Valid || verdict.MatchType != MatchNone || verdict.Score != 0 {
		t.Errorf("verdict = %+v, want invalid none 0", verdict)
	}
}

func TestVerifyDocumentNotFound(t *testing.T) {
	cit := &claim.Citation{DocumentName: "missing.pdf", StartChar: 0, EndChar: 5, ExactQuote: "hello"}
	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources("content"))
	if verdict.Valid || verdict.Reason != "document not found" {
		t.Errorf("verdict = %+v, want document-not-found rejection", verdict)
	}
}

func TestVerifyInferredShortCircuit(t *testing.T) {
	cit := &claim.Citation{DocumentName: claim.InferredDocument, ExactQuote: "anything"}
	verdict := NewVerifier(DefaultConfig()).Verify(cit, claim.SourceSet{})
	if !verdict.Valid || verdict.MatchType != MatchContext || verdict.Score != 0.9 {
		t.Errorf("verdict = %+v, want {valid, context, 0.9}", verdict)
	}
}

func TestVerifyInvalidRangeFallsThroughToContext(t *testing.T) {
	content := "the project starts in March"
	cit := &claim.Citation{
		DocumentName: "doc.pdf", StartChar: 500, EndChar: 900,
		ExactQuote: "the project starts in March",
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources(content))
	if !verdict.Valid || verdict.MatchType != MatchContext {
		t.Errorf("verdict = %+v, want context recovery from bad offsets", verdict)
	}
}

func TestVerifyLengthMismatchFlag(t *testing.T) {
	content := "Standard review time is 90 days padding padding"
	cit := &claim.Citation{
		// Range covers 10 chars but the quote is much longer.
		DocumentName: "doc.pdf", StartChar: 0, EndChar: 10,
		ExactQuote: "Standard review time is 90 days",
	}

	verdict := NewVerifier(DefaultConfig()).Verify(cit, testSources(content))
	if !verdict.LengthMismatch {
		t.Errorf("length mismatch not flagged: %+v", verdict)
	}
	// The flag alone must not reject the citation.
	if !verdict.Valid {
		t.Errorf("length mismatch caused rejection: %+v", verdict)
	}
}

func TestBatchVerify(t *testing.T) {
	content := "Standard review time is 90 days. Budget is $2 million."
	sources := testSources(content)
	citations := []*claim.Citation{
		{DocumentName: "doc.pdf", StartChar: 0, EndChar: 31, ExactQuote: "Standard review time is 90 days"},
		{DocumentName: "doc.pdf", StartChar: 33, EndChar: 54, ExactQuote: "Budget is $2 million"},
		{DocumentName: "missing.pdf", StartChar: 0, EndChar: 5, ExactQuote: "nope"},
	}

	report, err := NewVerifier(DefaultConfig()).BatchVerify(context.Background(), citations, sources)
	if err != nil {
		t.Fatalf("BatchVerify: %v", err)
	}
	if report.Total != 3 || report.Valid != 2 || report.Invalid != 1 {
		t.Errorf("report = %+v, want total 3 valid 2 invalid 1", report)
	}
	if !report.Results[0].Valid || report.Results[2].Valid {
		t.Errorf("results misaligned with input order: %+v", report.Results)
	}
	if report.AverageScore <= 0 || report.AverageScore > 1 {
		t.Errorf("average score = %v", report.AverageScore)
	}
}

func TestBatchVerifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	citations := []*claim.Citation{
		{DocumentName: "doc.pdf", StartChar: 0, EndChar: 5, ExactQuote: "hello"},
	}
	_, err := NewVerifier(DefaultConfig()).BatchVerify(ctx, citations, testSources("hello world"))
	if err == nil {
		t.Errorf("cancelled batch returned no error")
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"kitten", "kitten", 1.0},
		{"", "", 1.0},
		{"abc", "", 0.0},
	}
	for _, tc := range cases {
		if got := similarity(tc.a, tc.b); got != tc.want {
			t.Errorf("similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
	if got := similarity("kitten", "sitting"); got <= 0.5 || got >= 1.0 {
		t.Errorf("similarity(kitten, sitting) = %v, want (0.5, 1.0)", got)
	}
}
