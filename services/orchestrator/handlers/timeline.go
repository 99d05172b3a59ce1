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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/export"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
	"github.com/AleutianAI/veracity/services/orchestrator/datatypes"
)

// maxSourceBytes caps one uploaded document.
const maxSourceBytes = 16 << 20

// ValidateTimeline accepts a multipart form with a "timeline" JSON
// part and any number of source document parts under "documents".
// Validation runs asynchronously; the response carries the job id to
// poll and the session id the result will land on.
func ValidateTimeline(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required: " + err.Error()})
			return
		}

		timelineParts := form.File["timeline"]
		if len(timelineParts) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one timeline part required"})
			return
		}
		var req datatypes.TimelineRequest
		if err := readJSONPart(timelineParts[0], &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.Tasks) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeline has no tasks"})
			return
		}

		sources := claim.SourceSet{}
		for _, part := range form.File["documents"] {
			source, err := readSourcePart(part)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			sources[source.Name] = source
		}

		session := deps.Sessions.Create(sources)
		deps.touchSessionGauge()
		if deps.Metrics != nil {
			deps.Metrics.JobStarted()
		}
		job := deps.Jobs.Submit(context.Background(), session.ID, func(ctx context.Context) (*pipeline.Result, error) {
			if deps.Metrics != nil {
				defer deps.Metrics.JobEnded()
			}
			result, err := deps.Engine.ValidateTimeline(ctx, session.ID, req.Tasks, sources)
			if err != nil {
				return nil, err
			}
			canonical, _, expErr := export.ExportArtifact(result.Artifact)
			if expErr != nil {
				deps.Log.Warn("artifact export failed", "session", session.ID, "error", expErr)
				canonical = nil
			}
			if err := deps.Sessions.SetResult(session.ID, result, canonical); err != nil {
				deps.Log.Warn("result attach failed", "session", session.ID, "error", err)
			}
			return result, nil
		})

		c.JSON(http.StatusAccepted, datatypes.JobAccepted{
			JobID:     job.ID,
			SessionID: session.ID,
			Status:    string(job.Status),
		})
	}
}

func readJSONPart(header *multipart.FileHeader, v any) error {
	f, err := header.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer f.Close()

	dec := json.NewDecoder(io.LimitReader(f, maxSourceBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", header.Filename, err)
	}
	return nil
}

func readSourcePart(header *multipart.FileHeader) (*claim.Source, error) {
	if header.Size > maxSourceBytes {
		return nil, fmt.Errorf("document %s exceeds %d bytes", header.Filename, maxSourceBytes)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxSourceBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return &claim.Source{
		Name:     header.Filename,
		Provider: claim.ProviderInternal,
		Content:  string(content),
		Size:     len(content),
		MimeType: header.Header.Get("Content-Type"),
	}, nil
}
