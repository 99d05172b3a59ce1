// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the validation HTTP surface.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/veracity/pkg/logging"
	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/metrics"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
	"github.com/AleutianAI/veracity/services/orchestrator/datatypes"
	"github.com/AleutianAI/veracity/services/orchestrator/jobs"
	"github.com/AleutianAI/veracity/services/orchestrator/observability"
	"github.com/AleutianAI/veracity/services/orchestrator/sessions"
)

// Deps carries the shared services handlers close over. Built once at
// startup and treated as read-only afterwards. Metrics may be nil.
type Deps struct {
	Engine    *pipeline.Engine
	Sessions  *sessions.Manager
	Jobs      *jobs.Store
	Collector *metrics.Collector
	Metrics   *observability.HTTPMetrics
	Log       *logging.Logger
}

// touchSessionGauge refreshes the live-session gauge after any change
// to the session set.
func (d *Deps) touchSessionGauge() {
	if d.Metrics != nil {
		d.Metrics.LiveSessions.Set(float64(d.Sessions.Len()))
	}
}

// sessionSources resolves the session and merges any inline uploads
// into its source set. A missing session id creates a fresh session.
// The returned set is a snapshot taken under the session lock; the
// validation run reads it without racing later uploads.
func (d *Deps) sessionSources(c *gin.Context, sessionID string, uploads []datatypes.SourceUpload) (*sessions.Session, claim.SourceSet, bool) {
	var session *sessions.Session
	if sessionID == "" {
		session = d.Sessions.Create(claim.SourceSet{})
	} else {
		var err error
		session, err = d.Sessions.Get(sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired session", "sessionId": sessionID})
			return nil, nil, false
		}
	}
	added := make([]*claim.Source, 0, len(uploads))
	for i := range uploads {
		added = append(added, uploads[i].ToSource())
	}
	snapshot, err := d.Sessions.AddSources(session.ID, added...)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired session", "sessionId": session.ID})
		return nil, nil, false
	}
	d.touchSessionGauge()
	return session, snapshot, true
}

// respondPipelineError maps pipeline failures onto HTTP status codes.
// Rejected input is the caller's fault; everything else is ours.
func (d *Deps) respondPipelineError(c *gin.Context, err error) {
	if pipeline.IsInvalidInput(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "validation timed out"})
		return
	}
	d.Log.Error("validation failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
}
