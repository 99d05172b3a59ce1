// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/veracity/services/orchestrator/handlers"
	"github.com/AleutianAI/veracity/services/orchestrator/middleware"
	"github.com/AleutianAI/veracity/services/orchestrator/observability"
)

// SetupRoutes wires the validation surface onto the router. The
// gatherer may be nil to disable the /metrics endpoint.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps, httpMetrics *observability.HTTPMetrics, gatherer prometheus.Gatherer) {
	router.Use(middleware.RequestID())

	router.GET("/health", handlers.HealthCheck)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		claims := v1.Group("/claims")
		{
			claims.POST("/extract",
				middleware.Instrument(httpMetrics, observability.EndpointExtract),
				handlers.ExtractClaims(deps))
			claims.POST("/detect-contradictions",
				middleware.Instrument(httpMetrics, observability.EndpointDetect),
				handlers.DetectContradictions(deps))
		}

		v1.POST("/validate-timeline",
			middleware.Instrument(httpMetrics, observability.EndpointValidateTimeline),
			handlers.ValidateTimeline(deps))

		v1.GET("/ledger/:sessionId",
			middleware.Instrument(httpMetrics, observability.EndpointLedger),
			handlers.GetLedger(deps))
		v1.GET("/verified-claims/:sessionId", handlers.GetVerifiedClaims(deps))
		v1.GET("/dashboard/:sessionId", handlers.GetDashboard(deps))
		v1.GET("/report/:sessionId",
			middleware.Instrument(httpMetrics, observability.EndpointReport),
			handlers.GetReport(deps))
		v1.DELETE("/sessions/:sessionId", handlers.DeleteSession(deps))

		v1.GET("/job/:jobId", handlers.GetJob(deps))
	}
}
