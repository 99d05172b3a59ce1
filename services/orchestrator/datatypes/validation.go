// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the request and response DTOs for the
// validation HTTP surface. Handlers bind these and translate them to
// engine types; engine types never bind directly to requests.
package datatypes

import (
	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
)

// SourceUpload is one primary document submitted inline.
type SourceUpload struct {
	Name     string `json:"name" binding:"required"`
	Provider string `json:"provider,omitempty"`
	Content  string `json:"content" binding:"required"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToSource converts an upload to the engine's source type. An empty
// provider maps to UNKNOWN.
func (u *SourceUpload) ToSource() *claim.Source {
	provider := claim.Provider(u.Provider)
	if provider == "" {
		provider = claim.ProviderUnknown
	}
	return &claim.Source{
		Name:     u.Name,
		Provider: provider,
		Content:  u.Content,
		Size:     len(u.Content),
		MimeType: u.MimeType,
	}
}

// ExtractRequest submits reasoner claim sets for validation. Sources
// may be inline, carried by an existing session, or both; inline
// sources are added to the session.
type ExtractRequest struct {
	SessionID string                    `json:"sessionId,omitempty"`
	Sources   []SourceUpload            `json:"sources,omitempty"`
	Documents []pipeline.DocumentClaims `json:"documents" binding:"required,min=1"`
}

// ExtractResponse returns the validated result for a claim set.
type ExtractResponse struct {
	SessionID string           `json:"sessionId"`
	Result    *pipeline.Result `json:"result"`
}

// DetectRequest runs contradiction detection alone over a claim set,
// without gates or repair.
type DetectRequest struct {
	SessionID string                    `json:"sessionId,omitempty"`
	Sources   []SourceUpload            `json:"sources,omitempty"`
	Documents []pipeline.DocumentClaims `json:"documents" binding:"required,min=1"`
}

// DetectResponse lists the contradictions found.
type DetectResponse struct {
	SessionID      string                 `json:"sessionId"`
	Claims         int                    `json:"claims"`
	Contradictions []*claim.Contradiction `json:"contradictions"`
}

// TimelineRequest is the JSON part of the validate-timeline multipart
// form. Source documents travel as the remaining file parts.
type TimelineRequest struct {
	Tasks []*claim.TimelineTask `json:"tasks" binding:"required,min=1"`
}

// JobAccepted is returned when an asynchronous validation is queued.
type JobAccepted struct {
	JobID     string `json:"jobId"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// VerifiedClaimsResponse partitions a session's claims.
type VerifiedClaimsResponse struct {
	SessionID string         `json:"sessionId"`
	Verified  []*claim.Claim `json:"verified"`
	Disputed  []*claim.Claim `json:"disputed"`
}

// DashboardResponse summarizes a session's latest run together with
// the engine-wide quality window.
type DashboardResponse struct {
	SessionID         string             `json:"sessionId"`
	Success           bool               `json:"success"`
	Claims            int                `json:"claims"`
	Contradictions    int                `json:"contradictions"`
	CitationCoverage  float64            `json:"citationCoverage"`
	AverageAuditScore float64            `json:"averageAuditScore"`
	HealthScore       float64            `json:"healthScore"`
	Series            map[string]float64 `json:"series,omitempty"`
}

// ReportResponse is the full validation report for a session.
type ReportResponse struct {
	SessionID string           `json:"sessionId"`
	Result    *pipeline.Result `json:"result"`
	Digest    string           `json:"digest,omitempty"`
}
