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
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extraction patterns are priority-ordered: durations first, then
// money, then percentages, then bare numbers. The first pattern that
// matches a text decides its value and unit; a duration claim saying
// "90 days at $200" compares as 90 days, not 200 dollars.
var (
	durationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(day|week|month|quarter|year)s?\b`)
	moneyPattern    = regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*(million|billion|thousand|k|m|b)?\b`)
	percentPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	barePattern     = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)
)

// durationDays converts duration units to days.
var durationDays = map[string]float64{
	"day":     1,
	"week":    7,
	"month":   30,
	"quarter": 91,
	"year":    365,
}

// moneyScale converts money suffixes to USD.
var moneyScale = map[string]float64{
	"thousand": 1e3,
	"k":        1e3,
	"million":  1e6,
	"m":        1e6,
	"billion":  1e9,
	"b":        1e9,
}

// numericUnit labels the base unit a numeric value was normalized to.
// Values in different units are never compared.
type numericUnit string

const (
	unitDays  numericUnit = "days"
	unitUSD   numericUnit = "usd"
	unitRatio numericUnit = "ratio"
	unitBare  numericUnit = "bare"
)

// numericValue is a number extracted from claim text, normalized to
// its base unit.
type numericValue struct {
	value float64
	unit  numericUnit
	raw   string
}

// extractNumeric pulls the highest-priority numeric value from a text.
// Returns false when the text carries no extractable number.
func extractNumeric(text string) (numericValue, bool) {
	if m := durationPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return numericValue{value: n * durationDays[strings.ToLower(m[2])], unit: unitDays, raw: m[0]}, true
	}
	if m := moneyPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if scale, ok := moneyScale[strings.ToLower(m[2])]; ok {
			n *= scale
		}
		return numericValue{value: n, unit: unitUSD, raw: m[0]}, true
	}
	if m := percentPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return numericValue{value: n / 100, unit: unitRatio, raw: m[0]}, true
	}
	if m := barePattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return numericValue{value: n, unit: unitBare, raw: m[0]}, true
	}
	return numericValue{}, false
}

// Date patterns, tried in order: ISO, English month-day-year, slash
// form, quarter-year.
var (
	isoDatePattern     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	englishDatePattern = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	slashDatePattern   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	quarterPattern     = regexp.MustCompile(`(?i)\bQ([1-4])\s+(\d{4})\b`)
)

var monthIndex = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// extractDate pulls the first recognizable date from a text. Quarter
// references resolve to the first day of the quarter. Slash dates are
// read as month/day/year.
func extractDate(text string) (time.Time, string, bool) {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		t, err := time.Parse("2006-01-02", m[0])
		if err == nil {
			return t, m[0], true
		}
	}
	if m := englishDatePattern.FindStringSubmatch(text); m != nil {
		month := monthIndex[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 {
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), m[0], true
		}
	}
	if m := slashDatePattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), m[0], true
		}
	}
	if m := quarterPattern.FindStringSubmatch(text); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), m[0], true
	}
	return time.Time{}, "", false
}

// Polarity vocabulary. A positive assertion in one text paired with
// its negated form in the other is a polarity contradiction.
var polarityPairs = []struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
}{
	{regexp.MustCompile(`(?i)\brequired\b`), regexp.MustCompile(`(?i)\bnot\s+required\b`)},
	{regexp.MustCompile(`(?i)\bmust\b`), regexp.MustCompile(`(?i)\bmust\s+not\b`)},
	{regexp.MustCompile(`(?i)\bwill\b`), regexp.MustCompile(`(?i)\bwill\s+not\b`)},
	{regexp.MustCompile(`(?i)\bis\b`), regexp.MustCompile(`(?i)\bis\s+not\b`)},
	{regexp.MustCompile(`(?i)\bhas\b`), regexp.MustCompile(`(?i)\bhas\s+no\b`)},
	{regexp.MustCompile(`(?i)\bincludes\b`), regexp.MustCompile(`(?i)\bexcludes\b`)},
}

// hasPolarityConflict reports whether one text asserts what the other
// negates. The negated form is checked first on both sides so "is not"
// in a text does not also count as a bare "is".
func hasPolarityConflict(a, b string) bool {
	for _, p := range polarityPairs {
		aNeg, bNeg := p.negative.MatchString(a), p.negative.MatchString(b)
		aPos := p.positive.MatchString(a) && !aNeg
		bPos := p.positive.MatchString(b) && !bNeg
		if (aPos && bNeg) || (bPos && aNeg) {
			return true
		}
	}
	return false
}

// logicalOpposites is the fixed antonym list for the logical rule.
var logicalOpposites = [][2]string{
	{"required", "optional"},
	{"mandatory", "voluntary"},
	{"must", "may"},
	{"will", "might"},
	{"always", "never"},
	{"true", "false"},
	{"yes", "no"},
}

// hasLogicalOpposites reports whether one text contains a term and the
// other its fixed opposite. Matches are whole-word and case-insensitive.
func hasLogicalOpposites(a, b string) (string, string, bool) {
	aWords := wordSet(a)
	bWords := wordSet(b)
	for _, pair := range logicalOpposites {
		if aWords[pair[0]] && bWords[pair[1]] {
			return pair[0], pair[1], true
		}
		if aWords[pair[1]] && bWords[pair[0]] {
			return pair[1], pair[0], true
		}
	}
	return "", "", false
}

// stopwords excluded from definitional keyword comparison.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "with": true, "this": true, "that": true, "from": true,
	"has": true, "have": true, "was": true, "were": true, "will": true,
	"been": true, "each": true, "which": true, "their": true, "them": true,
	"these": true, "than": true, "then": true, "its": true, "into": true,
	"also": true, "can": true, "may": true, "must": true, "should": true,
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		set[w] = true
	}
	return set
}

// keywords returns the stop-word-filtered keyword set (length > 2) for
// definitional comparison.
func keywords(text string) map[string]bool {
	set := make(map[string]bool)
	for w := range wordSet(text) {
		if len(w) > 2 && !stopwords[w] {
			set[w] = true
		}
	}
	return set
}

// jaccard computes |a ∩ b| / |a ∪ b|. Two empty sets are identical.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	var intersection int
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// regulatoryKeywords identify authoritative source documents for the
// resolution matrix and the regulatory gate.
var regulatoryKeywords = []string{
	"regulation", "compliance", "occ", "fdic", "federal reserve",
	"fda", "hipaa", "sox", "gdpr", "pci",
}

// IsRegulatorySource reports whether a document name (or task text)
// mentions a regulatory keyword.
func IsRegulatorySource(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range regulatoryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
