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
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
)

// idTextPrefix is how many characters of claim text participate in the
// identity hash. Long enough to distinguish real-world claims, short
// enough that trailing edits don't change identity.
const idTextPrefix = 100

// idHexLen is the truncated length of the hex digest used as an id.
const idHexLen = 16

// ComputeID produces the deterministic claim id from the source
// document name, the claim's index within that source, and the first
// idTextPrefix characters of its text. Two extractions of the same
// input yield byte-identical ids.
//
// Fields are length-prefixed before hashing so freeform text containing
// the separator cannot collide with a different field split.
func ComputeID(documentName string, index int, text string) string {
	runes := []rune(text)
	if len(runes) > idTextPrefix {
		text = string(runes[:idTextPrefix])
	}

	h := sha256.New()
	writeField := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}
	writeField(documentName)
	writeField(strconv.Itoa(index))
	writeField(text)

	return hex.EncodeToString(h.Sum(nil))[:idHexLen]
}

// ComputeContradictionID derives a deterministic id for a contradiction
// from its type and the unordered claim pair. Re-running the detector
// over the same ledger reproduces the same ids, which is what makes
// detection idempotent: duplicates collapse on insert.
func ComputeContradictionID(ctype ContradictionType, claimA, claimB string) string {
	pair := []string{claimA, claimB}
	sort.Strings(pair)

	h := sha256.New()
	h.Write([]byte(ctype))
	h.Write([]byte{0})
	h.Write([]byte(pair[0]))
	h.Write([]byte{0})
	h.Write([]byte(pair[1]))

	return hex.EncodeToString(h.Sum(nil))[:idHexLen]
}
