// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("veracity/engine/metrics")

var (
	validationRuns     metric.Int64Counter
	validationDuration metric.Float64Histogram
	healthScore        metric.Float64Histogram
	citationCoverage   metric.Float64Histogram
	contradictionRate  metric.Float64Histogram
	auditPassRate      metric.Float64Histogram
	repairsApplied     metric.Int64Counter
)

var (
	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		validationRuns, metricsErr = meter.Int64Counter(
			"veracity.validation.runs",
			metric.WithDescription("Completed validation runs"),
		)
		if metricsErr != nil {
			return
		}

		validationDuration, metricsErr = meter.Float64Histogram(
			"veracity.validation.duration_ms",
			metric.WithDescription("Wall-clock validation time"),
			metric.WithUnit("ms"),
		)
		if metricsErr != nil {
			return
		}

		healthScore, metricsErr = meter.Float64Histogram(
			"veracity.health.score",
			metric.WithDescription("Composite validation health score, 0 to 100"),
		)
		if metricsErr != nil {
			return
		}

		citationCoverage, metricsErr = meter.Float64Histogram(
			"veracity.citation.coverage",
			metric.WithDescription("Fraction of explicit claims carrying citations"),
		)
		if metricsErr != nil {
			return
		}

		contradictionRate, metricsErr = meter.Float64Histogram(
			"veracity.contradiction.rate",
			metric.WithDescription("Contradictions per claim pair examined"),
		)
		if metricsErr != nil {
			return
		}

		auditPassRate, metricsErr = meter.Float64Histogram(
			"veracity.audit.pass_rate",
			metric.WithDescription("Fraction of claims passing provenance audit"),
		)
		if metricsErr != nil {
			return
		}

		repairsApplied, metricsErr = meter.Int64Counter(
			"veracity.repair.applied",
			metric.WithDescription("Repair strategies applied, by gate"),
		)
	})
	return metricsErr
}

// RecordValidationRun emits the per-run measurements. Errors from
// instrument creation make this a no-op; quality tracking must never
// fail a validation.
func RecordValidationRun(obs Observation, health float64) {
	if err := initMetrics(); err != nil {
		return
	}
	ctx := context.Background()
	validationRuns.Add(ctx, 1)
	validationDuration.Record(ctx, obs.ValidationTimeMs)
	healthScore.Record(ctx, health)
	citationCoverage.Record(ctx, obs.CitationCoverage)
	contradictionRate.Record(ctx, obs.ContradictionRate)
	auditPassRate.Record(ctx, obs.AuditPassRate)
}

// RecordRepair counts one applied repair strategy.
func RecordRepair(ctx context.Context, gate, action string) {
	if err := initMetrics(); err != nil {
		return
	}
	repairsApplied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", gate),
		attribute.String("action", action),
	))
}
