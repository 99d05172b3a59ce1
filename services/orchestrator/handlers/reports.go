// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/veracity/services/engine/export"
	"github.com/AleutianAI/veracity/services/orchestrator/datatypes"
	"github.com/AleutianAI/veracity/services/orchestrator/sessions"
)

// sessionWithResult fetches a session that has completed at least one
// validation run.
func sessionWithResult(deps *Deps, c *gin.Context) (*sessions.Session, bool) {
	id := c.Param("sessionId")
	session, err := deps.Sessions.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired session", "sessionId": id})
		return nil, false
	}
	if session.Result == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "session has no completed validation", "sessionId": id})
		return nil, false
	}
	return session, true
}

// GetLedger streams the canonical JSON export of a session's ledger.
func GetLedger(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionWithResult(deps, c)
		if !ok {
			return
		}
		canonical, digest, err := export.ExportArtifact(session.Result.Artifact)
		if err != nil {
			deps.Log.Error("ledger export failed", "session", session.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger export failed"})
			return
		}
		c.Header("X-Ledger-Digest", digest)
		c.Data(http.StatusOK, "application/json", canonical)
	}
}

// GetVerifiedClaims returns the verified/disputed partition of a
// session's claims.
func GetVerifiedClaims(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionWithResult(deps, c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, datatypes.VerifiedClaimsResponse{
			SessionID: session.ID,
			Verified:  session.Result.Verified,
			Disputed:  session.Result.Disputed,
		})
	}
}

// GetDashboard summarizes a session's latest run and the engine-wide
// quality window.
func GetDashboard(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionWithResult(deps, c)
		if !ok {
			return
		}
		artifact := session.Result.Artifact

		resp := datatypes.DashboardResponse{
			SessionID:         session.ID,
			Success:           session.Result.Success,
			Claims:            artifact.Ledger.Len(),
			Contradictions:    len(artifact.Ledger.Contradictions()),
			CitationCoverage:  artifact.CitationCoverage(),
			AverageAuditScore: artifact.AverageAuditScore(),
		}
		if deps.Collector != nil {
			snap := deps.Collector.Snapshot()
			resp.HealthScore = snap.HealthScore
			resp.Series = snap.Averages
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetReport returns the full validation result with its canonical
// digest.
func GetReport(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionWithResult(deps, c)
		if !ok {
			return
		}
		digest, err := export.Digest(export.BuildLedgerExport(session.Result.Artifact))
		if err != nil {
			deps.Log.Warn("digest failed", "session", session.ID, "error", err)
		}
		c.JSON(http.StatusOK, datatypes.ReportResponse{
			SessionID: session.ID,
			Result:    session.Result,
			Digest:    digest,
		})
	}
}

// DeleteSession drops a session and its persisted artifact.
func DeleteSession(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		deps.Sessions.Delete(id)
		deps.touchSessionGauge()
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": id})
	}
}
