// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export serializes validation artifacts to RFC 8785 canonical
// JSON so equal ledgers produce byte-equal exports and stable digests.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/AleutianAI/veracity/services/engine/claim"
)

// LedgerExport is the serializable projection of one artifact. Claims
// and contradictions are sorted by id; map keys canonicalize on their
// own under JCS.
type LedgerExport struct {
	SessionID      string                         `json:"sessionId,omitempty"`
	Claims         []*claim.Claim                 `json:"claims"`
	Contradictions []*claim.Contradiction         `json:"contradictions,omitempty"`
	Tasks          []*claim.TimelineTask          `json:"tasks,omitempty"`
	CitationChecks map[string]claim.CitationCheck `json:"citationChecks,omitempty"`
	AuditChecks    map[string]claim.AuditCheck    `json:"auditChecks,omitempty"`
	CreatedAt      time.Time                      `json:"createdAt"`
}

// BuildLedgerExport projects an artifact into its export form.
func BuildLedgerExport(artifact *claim.Artifact) *LedgerExport {
	contras := make([]*claim.Contradiction, len(artifact.Ledger.Contradictions()))
	copy(contras, artifact.Ledger.Contradictions())
	sort.Slice(contras, func(i, j int) bool { return contras[i].ID < contras[j].ID })

	return &LedgerExport{
		SessionID:      artifact.SessionID,
		Claims:         artifact.Ledger.SortedClaims(),
		Contradictions: contras,
		Tasks:          artifact.Tasks,
		CitationChecks: artifact.CitationChecks,
		AuditChecks:    artifact.AuditChecks,
		CreatedAt:      artifact.CreatedAt,
	}
}

// Canonical marshals v and transforms it to RFC 8785 canonical form.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("export: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("export: canonicalize: %w", err)
	}
	return canonical, nil
}

// Digest returns the SHA-256 hex digest of the canonical form of v.
// Two artifacts with equal content digest identically regardless of
// map iteration or field order.
func Digest(v any) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ExportArtifact returns the canonical JSON of the artifact's ledger
// projection together with its digest.
func ExportArtifact(artifact *claim.Artifact) ([]byte, string, error) {
	exp := BuildLedgerExport(artifact)
	canonical, err := Canonical(exp)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}
