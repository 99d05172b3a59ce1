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
	"strings"
	"unicode"
)

// Fold returns the canonical comparison form of a text: lowercased,
// whitespace-collapsed, punctuation stripped. Exported for callers
// that need to compare quotes the same way the verifier does.
func Fold(s string) string { return normalize(s) }

// normalize lowercases, collapses whitespace runs to single spaces,
// and strips everything outside word characters and whitespace. All
// quote comparisons happen on this canonical form so punctuation and
// formatting drift cannot break an otherwise faithful quote.
func normalize(s string) string {
	norm, _ := normalizeMapped(s)
	return norm
}

// normalizeMapped is normalize plus an index map: offsets[i] is the
// rune index in the original string that produced normalized rune i.
// The map lets the context search report corrected ranges in original
// document coordinates.
func normalizeMapped(s string) (string, []int) {
	var b strings.Builder
	offsets := make([]int, 0, len(s))
	pendingSpace := false
	wroteAny := false

	for i, r := range []rune(s) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if pendingSpace && wroteAny {
				b.WriteRune(' ')
				offsets = append(offsets, i)
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
			offsets = append(offsets, i)
			wroteAny = true
		default:
			// punctuation and symbols are dropped
		}
	}

	return b.String(), offsets
}
