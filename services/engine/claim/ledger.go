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
)

// Ledger is the request-scoped collection of claims and contradictions.
//
// The ledger is an arena: it owns every Claim and Contradiction for one
// request, and all cross-references between them are by id through the
// lookup methods, never by pointer ownership. Stages that are documented
// as mutators (detector, calibrator, repair) receive the ledger itself;
// everything else works from the read-only accessors.
//
// Thread Safety: NOT safe for concurrent mutation. The orchestrator owns
// the ledger for the request's lifetime and serializes all writes;
// parallel stages only read.
type Ledger struct {
	claims         []*Claim
	byID           map[string]*Claim
	byTask         map[string][]*Claim
	byTypeDoc      map[string][]*Claim
	contradictions []*Contradiction
	contraByID     map[string]*Contradiction
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		byID:       make(map[string]*Claim),
		byTask:     make(map[string][]*Claim),
		byTypeDoc:  make(map[string][]*Claim),
		contraByID: make(map[string]*Contradiction),
	}
}

func typeDocKey(t Type, doc string) string {
	return string(t) + "\x00" + doc
}

// Add inserts a claim. Duplicate ids are rejected: the id is a
// deterministic function of the claim's identity, so a collision means
// the same claim was extracted twice.
func (l *Ledger) Add(c *Claim) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("ledger: claim must have an id")
	}
	if _, exists := l.byID[c.ID]; exists {
		return fmt.Errorf("ledger: duplicate claim id %s", c.ID)
	}
	l.claims = append(l.claims, c)
	l.byID[c.ID] = c
	if c.TaskID != "" {
		l.byTask[c.TaskID] = append(l.byTask[c.TaskID], c)
	}
	key := typeDocKey(c.Type, c.Source.DocumentName)
	l.byTypeDoc[key] = append(l.byTypeDoc[key], c)
	return nil
}

// ByID returns the claim with the given id, or nil.
func (l *Ledger) ByID(id string) *Claim {
	return l.byID[id]
}

// ByTask returns all claims grouped under one task id.
func (l *Ledger) ByTask(taskID string) []*Claim {
	return l.byTask[taskID]
}

// ByTypeAndDocument returns claims of one type from one document.
func (l *Ledger) ByTypeAndDocument(t Type, doc string) []*Claim {
	return l.byTypeDoc[typeDocKey(t, doc)]
}

// Len returns the number of claims.
func (l *Ledger) Len() int { return len(l.claims) }

// Claims returns the claims in insertion order. Callers must not
// reorder or remove elements.
func (l *Ledger) Claims() []*Claim { return l.claims }

// SortedClaims returns the claims ordered by id. The detector iterates
// this ordering so that pair enumeration, and therefore contradiction
// ids and resolution outcomes, are independent of extraction order.
func (l *Ledger) SortedClaims() []*Claim {
	out := make([]*Claim, len(l.claims))
	copy(out, l.claims)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddContradiction inserts a contradiction and appends its id to both
// referenced claims. Inserting an id that already exists is a no-op,
// which is what makes re-running the detector idempotent.
func (l *Ledger) AddContradiction(c *Contradiction) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("ledger: contradiction must have an id")
	}
	if c.ClaimA == c.ClaimB {
		return fmt.Errorf("ledger: contradiction %s references a single claim", c.ID)
	}
	a, b := l.byID[c.ClaimA], l.byID[c.ClaimB]
	if a == nil || b == nil {
		return fmt.Errorf("ledger: contradiction %s references unknown claims", c.ID)
	}
	if a.Type != b.Type {
		return fmt.Errorf("ledger: contradiction %s spans claim types %s and %s", c.ID, a.Type, b.Type)
	}
	if _, exists := l.contraByID[c.ID]; exists {
		return nil
	}
	l.contradictions = append(l.contradictions, c)
	l.contraByID[c.ID] = c
	a.ContradictionIDs = append(a.ContradictionIDs, c.ID)
	b.ContradictionIDs = append(b.ContradictionIDs, c.ID)
	return nil
}

// ContradictionByID returns the contradiction with the given id, or nil.
func (l *Ledger) ContradictionByID(id string) *Contradiction {
	return l.contraByID[id]
}

// Contradictions returns all contradictions in insertion order.
func (l *Ledger) Contradictions() []*Contradiction { return l.contradictions }

// HighestSeverityFor returns the most severe contradiction the claim is
// party to, or "" when the claim is uncontradicted. Used by the
// calibrator's contradiction multiplier.
func (l *Ledger) HighestSeverityFor(claimID string) Severity {
	c := l.byID[claimID]
	if c == nil {
		return ""
	}
	var max Severity
	for _, cid := range c.ContradictionIDs {
		if contra := l.contraByID[cid]; contra != nil {
			if max == "" {
				max = contra.Severity
			} else {
				max = MaxSeverity(max, contra.Severity)
			}
		}
	}
	return max
}

// ConsensusFor computes the consensus level for a claim: the fraction
// of its comparable same-type peers that do NOT contradict it. The peer
// set mirrors the detector's pair enumeration, so claims grouped under
// the claim's own task are excluded; contradiction partners always
// count as peers. A claim with no peers has full consensus.
func (l *Ledger) ConsensusFor(claimID string) float64 {
	c := l.byID[claimID]
	if c == nil {
		return 1.0
	}

	var peers, contradicting int
	contradicted := make(map[string]bool)
	for _, cid := range c.ContradictionIDs {
		if contra := l.contraByID[cid]; contra != nil {
			other := contra.ClaimA
			if other == claimID {
				other = contra.ClaimB
			}
			contradicted[other] = true
		}
	}

	for _, peer := range l.claims {
		if peer.ID == claimID || peer.Type != c.Type {
			continue
		}
		if c.TaskID != "" && peer.TaskID == c.TaskID {
			continue
		}
		peers++
		if contradicted[peer.ID] {
			contradicting++
		}
	}

	if peers == 0 {
		return 1.0
	}
	return float64(peers-contradicting) / float64(peers)
}
