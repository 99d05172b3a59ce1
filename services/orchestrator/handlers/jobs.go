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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/veracity/services/orchestrator/jobs"
)

// GetJob reports an asynchronous validation's state. Completed jobs
// include the full result inline.
func GetJob(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("jobId")
		job, err := deps.Jobs.Get(id)
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown job", "jobId": id})
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
