// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package citation verifies that cited quotes genuinely exist in their
// named source documents.
//
// The verifier deliberately degrades instead of failing: an exact match
// at the stated offsets scores 1.0, a near-match scores its similarity,
// a quote found elsewhere in the document yields a corrected range, and
// only a quote found nowhere is rejected. Reasoners routinely report
// offsets against a slightly different rendering of the document than
// the one ingested, so offset drift alone is never grounds to call a
// citation fabricated.
package citation

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/veracity/services/engine/claim"
)

// MatchType classifies how a quote was located.
type MatchType string

const (
	// MatchExact means the quote matched at the stated offsets.
	MatchExact MatchType = "exact"

	// MatchFuzzy means the stated range held a near-match.
	MatchFuzzy MatchType = "fuzzy"

	// MatchContext means the quote was found away from the stated
	// offsets, or the claim is inferred and carries no real offsets.
	MatchContext MatchType = "context"

	// MatchNone means the quote was not found anywhere.
	MatchNone MatchType = "none"
)

// Scores assigned by the context-search tier.
const (
	contextExactScore   = 0.9
	contextPartialScore = 0.75
)

// Range is a half-open [start, end) character range.
type Range struct {
	StartChar int `json:"startChar"`
	EndChar   int `json:"endChar"`
}

// Verdict is the outcome of verifying one citation.
type Verdict struct {
	Valid     bool      `json:"valid"`
	MatchType MatchType `json:"matchType"`
	Score     float64   `json:"score"`

	// CorrectedRange is set when the quote was found at offsets other
	// than the stated ones.
	CorrectedRange *Range `json:"correctedRange,omitempty"`

	Reason string `json:"reason,omitempty"`

	// LengthMismatch marks quotes whose normalized length disagrees
	// with the stated range. A tampering indicator for the provenance
	// auditor, never an automatic rejection here.
	LengthMismatch bool `json:"lengthMismatch,omitempty"`
}

// BatchReport aggregates verdicts for one batch, aligned with the
// input order.
type BatchReport struct {
	Results      []Verdict `json:"results"`
	Total        int       `json:"total"`
	Valid        int       `json:"valid"`
	Invalid      int       `json:"invalid"`
	AverageScore float64   `json:"averageScore"`
}

// Config tunes the verifier.
type Config struct {
	// SimilarityThreshold is the minimum normalized similarity for a
	// fuzzy match to count.
	SimilarityThreshold float64

	// ContextWindow is how many characters around the stated range the
	// context search scans before falling back to a whole-document
	// sliding-window search.
	ContextWindow int

	// Parallelism caps concurrent verifications in BatchVerify.
	// Defaults to the number of CPUs.
	Parallelism int
}

// DefaultConfig returns the standard verifier settings.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.85,
		ContextWindow:       200,
		Parallelism:         runtime.NumCPU(),
	}
}

// Verifier checks citations against ingested sources.
//
// Thread Safety: safe for concurrent use. Verdicts are memoized per
// (document, range, quote) under an internal lock, so repeated claims
// quoting the same passage are verified once.
type Verifier struct {
	config Config

	mu   sync.Mutex
	memo map[string]Verdict
}

// NewVerifier creates a Verifier. Zero config fields fall back to the
// defaults.
func NewVerifier(config Config) *Verifier {
	def := DefaultConfig()
	if config.SimilarityThreshold <= 0 {
		config.SimilarityThreshold = def.SimilarityThreshold
	}
	if config.ContextWindow <= 0 {
		config.ContextWindow = def.ContextWindow
	}
	if config.Parallelism <= 0 {
		config.Parallelism = def.Parallelism
	}
	return &Verifier{config: config, memo: make(map[string]Verdict)}
}

// Verify checks one citation against the source set.
func (v *Verifier) Verify(cit *claim.Citation, sources claim.SourceSet) Verdict {
	if cit == nil {
		return Verdict{Valid: false, MatchType: MatchNone, Reason: "no citation"}
	}

	// Inferred claims have no real offsets to check. The origin
	// penalty lives in the calibrator and the gates, not here.
	if cit.DocumentName == claim.InferredDocument {
		return Verdict{Valid: true, MatchType: MatchContext, Score: contextExactScore, Reason: "inferred claim"}
	}

	key := memoKey(cit)
	v.mu.Lock()
	if verdict, ok := v.memo[key]; ok {
		v.mu.Unlock()
		return verdict
	}
	v.mu.Unlock()

	verdict := v.verify(cit, sources)

	v.mu.Lock()
	v.memo[key] = verdict
	v.mu.Unlock()
	return verdict
}

func memoKey(cit *claim.Citation) string {
	return fmt.Sprintf("%s\x00%d\x00%d\x00%s", cit.DocumentName, cit.StartChar, cit.EndChar, cit.ExactQuote)
}

func (v *Verifier) verify(cit *claim.Citation, sources claim.SourceSet) Verdict {
	source, ok := sources[cit.DocumentName]
	if !ok {
		return Verdict{Valid: false, MatchType: MatchNone, Reason: "document not found"}
	}

	content := []rune(source.Content)
	normQuote := normalize(cit.ExactQuote)
	if normQuote == "" {
		return Verdict{Valid: false, MatchType: MatchNone, Reason: "empty quote"}
	}

	rangeOK := cit.StartChar >= 0 && cit.StartChar < cit.EndChar && cit.EndChar <= len(content)
	lengthMismatch := rangeOK && len([]rune(normQuote)) != cit.EndChar-cit.StartChar

	if rangeOK {
		normAtRange := normalize(string(content[cit.StartChar:cit.EndChar]))
		if normAtRange == normQuote {
			return Verdict{Valid: true, MatchType: MatchExact, Score: 1.0, LengthMismatch: lengthMismatch}
		}
		if sim := similarity(normAtRange, normQuote); sim >= v.config.SimilarityThreshold {
			return Verdict{
				Valid: true, MatchType: MatchFuzzy, Score: sim,
				Reason:         fmt.Sprintf("fuzzy match at stated range (similarity %.2f)", sim),
				LengthMismatch: lengthMismatch,
			}
		}
	}

	if verdict, found := v.contextSearch(content, cit, normQuote); found {
		verdict.LengthMismatch = lengthMismatch
		return verdict
	}

	return Verdict{Valid: false, MatchType: MatchNone, Score: 0, Reason: "quote not found in document", LengthMismatch: lengthMismatch}
}

// contextSearch looks for the quote away from its stated offsets:
// first an exact normalized search within ContextWindow characters of
// the range, then a word-boundary sliding-window fuzzy search across
// the whole document.
func (v *Verifier) contextSearch(content []rune, cit *claim.Citation, normQuote string) (Verdict, bool) {
	lo := cit.StartChar - v.config.ContextWindow
	if lo < 0 {
		lo = 0
	}
	hi := cit.EndChar + v.config.ContextWindow
	if hi > len(content) || hi <= lo {
		hi = len(content)
	}
	if lo > len(content) {
		lo = 0
	}

	normWindow, windowMap := normalizeMapped(string(content[lo:hi]))
	if idx := strings.Index(normWindow, normQuote); idx >= 0 {
		return Verdict{
			Valid: true, MatchType: MatchContext, Score: contextExactScore,
			CorrectedRange: correctedRange(windowMap, lo, idx, len([]rune(normQuote))),
			Reason:         "quote found near stated range",
		}, true
	}

	normDoc, docMap := normalizeMapped(string(content))
	if idx := runeIndex(normDoc, normQuote); idx >= 0 {
		return Verdict{
			Valid: true, MatchType: MatchContext, Score: contextExactScore,
			CorrectedRange: correctedRange(docMap, 0, idx, len([]rune(normQuote))),
			Reason:         "quote found elsewhere in document",
		}, true
	}

	if verdict, found := v.slidingWindowSearch(normDoc, docMap, normQuote); found {
		return verdict, true
	}
	return Verdict{}, false
}

// slidingWindowSearch scans word windows of the quote's length across
// the normalized document, accepting the best window whose similarity
// clears the threshold as a partial-phrase match.
func (v *Verifier) slidingWindowSearch(normDoc string, docMap []int, normQuote string) (Verdict, bool) {
	docWords := splitWords(normDoc)
	quoteWords := strings.Fields(normQuote)
	if len(quoteWords) == 0 || len(docWords) < len(quoteWords) {
		return Verdict{}, false
	}

	bestSim := 0.0
	bestStart := -1
	for i := 0; i+len(quoteWords) <= len(docWords); i++ {
		first := docWords[i]
		last := docWords[i+len(quoteWords)-1]
		window := normDoc[first.start : last.start+len(last.text)]
		if sim := similarity(window, normQuote); sim > bestSim {
			bestSim = sim
			bestStart = i
		}
	}

	if bestStart < 0 || bestSim < v.config.SimilarityThreshold {
		return Verdict{}, false
	}

	first := docWords[bestStart]
	last := docWords[bestStart+len(quoteWords)-1]
	normLen := len([]rune(normDoc[first.start : last.start+len(last.text)]))
	startNorm := len([]rune(normDoc[:first.start]))
	return Verdict{
		Valid: true, MatchType: MatchContext, Score: contextPartialScore,
		CorrectedRange: correctedRange(docMap, 0, startNorm, normLen),
		Reason:         fmt.Sprintf("partial phrase match (similarity %.2f)", bestSim),
	}, true
}

type word struct {
	start int // byte offset into the normalized string
	text  string
}

// splitWords tokenizes a normalized string, keeping byte offsets.
// Normalized text is single-space separated, so offsets are exact.
func splitWords(s string) []word {
	var words []word
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				words = append(words, word{start: start, text: s[start:i]})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{start: start, text: s[start:]})
	}
	return words
}

// runeIndex is strings.Index with the result converted from a byte
// offset to a rune offset, which is what the normalize index map is
// keyed by.
func runeIndex(haystack, needle string) int {
	byteIdx := strings.Index(haystack, needle)
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(haystack[:byteIdx]))
}

// correctedRange maps a match in normalized coordinates back to a
// half-open range in original document coordinates. base is the
// original-rune offset the normalization started from.
func correctedRange(offsets []int, base, normStart, normLen int) *Range {
	if normStart >= len(offsets) || normLen == 0 {
		return nil
	}
	end := normStart + normLen - 1
	if end >= len(offsets) {
		end = len(offsets) - 1
	}
	return &Range{
		StartChar: base + offsets[normStart],
		EndChar:   base + offsets[end] + 1,
	}
}

// BatchVerify verifies citations concurrently and aggregates the
// verdicts. Results align with the input slice. The context cancels
// outstanding work; a cancellation surfaces as an error.
func (v *Verifier) BatchVerify(ctx context.Context, citations []*claim.Citation, sources claim.SourceSet) (*BatchReport, error) {
	report := &BatchReport{
		Results: make([]Verdict, len(citations)),
		Total:   len(citations),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.config.Parallelism)
	for i, cit := range citations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report.Results[i] = v.Verify(cit, sources)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch verify: %w", err)
	}

	var scoreSum float64
	for _, verdict := range report.Results {
		if verdict.Valid {
			report.Valid++
		} else {
			report.Invalid++
		}
		scoreSum += verdict.Score
	}
	if report.Total > 0 {
		report.AverageScore = scoreSum / float64(report.Total)
	}
	return report, nil
}
