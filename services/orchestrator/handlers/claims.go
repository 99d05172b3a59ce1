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
)

// ExtractClaims validates reasoner claim sets synchronously and binds
// the result to a session.
func ExtractClaims(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		session, sources, ok := deps.sessionSources(c, req.SessionID, req.Sources)
		if !ok {
			return
		}

		result, err := deps.Engine.ValidateDocuments(c.Request.Context(), session.ID, req.Documents, sources)
		if err != nil {
			deps.respondPipelineError(c, err)
			return
		}

		canonical, _, err := export.ExportArtifact(result.Artifact)
		if err != nil {
			deps.Log.Warn("artifact export failed", "session", session.ID, "error", err)
			canonical = nil
		}
		if err := deps.Sessions.SetResult(session.ID, result, canonical); err != nil {
			deps.Log.Warn("result attach failed", "session", session.ID, "error", err)
		}

		c.JSON(http.StatusOK, datatypes.ExtractResponse{
			SessionID: session.ID,
			Result:    result,
		})
	}
}

// DetectContradictions runs extraction and detection only, returning
// the contradiction list without gating or repair.
func DetectContradictions(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DetectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		session, sources, ok := deps.sessionSources(c, req.SessionID, req.Sources)
		if !ok {
			return
		}

		ledger, err := deps.Engine.ExtractAndDetect(c.Request.Context(), req.Documents, sources)
		if err != nil {
			deps.respondPipelineError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.DetectResponse{
			SessionID:      session.ID,
			Claims:         ledger.Len(),
			Contradictions: ledger.Contradictions(),
		})
	}
}
