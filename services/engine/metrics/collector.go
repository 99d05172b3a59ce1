// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics tracks validation quality over a moving window and
// folds it into a single health score.
package metrics

import (
	"sort"
	"sync"
)

// Series names tracked by the Collector.
const (
	SeriesFactRatio           = "factRatio"
	SeriesCitationCoverage    = "citationCoverage"
	SeriesContradictionRate   = "contradictionRate"
	SeriesProvenanceScore     = "provenanceScore"
	SeriesRepairRate          = "repairRate"
	SeriesValidationTimeMs    = "validationTimeMs"
	SeriesGateFailureRate     = "gateFailureRate"
	SeriesRegulatoryAccuracy  = "regulatoryAccuracy"
	SeriesBufferAdherence     = "bufferAdherence"
	SeriesAuditPassRate       = "auditPassRate"
	SeriesCalibrationAccuracy = "calibrationAccuracy"
	SeriesAverageConfidence   = "averageConfidence"
	SeriesConfidenceVariance  = "confidenceVariance"
)

// seriesNames is the full set in a fixed order, used for snapshots and
// to reject unknown observations.
var seriesNames = []string{
	SeriesFactRatio,
	SeriesCitationCoverage,
	SeriesContradictionRate,
	SeriesProvenanceScore,
	SeriesRepairRate,
	SeriesValidationTimeMs,
	SeriesGateFailureRate,
	SeriesRegulatoryAccuracy,
	SeriesBufferAdherence,
	SeriesAuditPassRate,
	SeriesCalibrationAccuracy,
	SeriesAverageConfidence,
	SeriesConfidenceVariance,
}

// DefaultWindow is the number of recent observations each series keeps.
const DefaultWindow = 100

// Health score weights. Rates expressed as [0,1]; contradictionRate is
// inverted so that fewer contradictions score higher.
const (
	weightFactRatio         = 0.15
	weightCitationCoverage  = 0.20
	weightContradictionRate = 0.15
	weightProvenanceScore   = 0.15
	weightRegulatory        = 0.15
	weightAuditPassRate     = 0.20
)

// Observation is one validation run's worth of quality signals.
type Observation struct {
	FactRatio          float64
	CitationCoverage   float64
	ContradictionRate  float64
	ProvenanceScore    float64
	RepairRate         float64
	ValidationTimeMs   float64
	GateFailureRate    float64
	RegulatoryAccuracy float64
	BufferAdherence    float64
	AuditPassRate      float64
}

// Snapshot is a point-in-time view of the collector's moving averages.
type Snapshot struct {
	Window      int                `json:"window"`
	Count       int                `json:"count"`
	Averages    map[string]float64 `json:"averages"`
	HealthScore float64            `json:"healthScore"`
}

// Collector aggregates per-run quality signals over a fixed window.
//
// Thread Safety: all methods are safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	window int
	count  int
	series map[string]*ring

	// confidences feeds the averageConfidence and confidenceVariance
	// series, which are derived from individual claim confidences
	// rather than per-run aggregates.
	confidences *ring
}

// NewCollector returns a Collector with the given window size. A
// non-positive window falls back to DefaultWindow.
func NewCollector(window int) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Collector{
		window:      window,
		series:      make(map[string]*ring, len(seriesNames)),
		confidences: newRing(window),
	}
	for _, name := range seriesNames {
		c.series[name] = newRing(window)
	}
	return c
}

// Record folds one validation run into the window and emits the
// corresponding OpenTelemetry measurements.
func (c *Collector) Record(obs Observation) {
	c.mu.Lock()
	c.series[SeriesFactRatio].add(obs.FactRatio)
	c.series[SeriesCitationCoverage].add(obs.CitationCoverage)
	c.series[SeriesContradictionRate].add(obs.ContradictionRate)
	c.series[SeriesProvenanceScore].add(obs.ProvenanceScore)
	c.series[SeriesRepairRate].add(obs.RepairRate)
	c.series[SeriesValidationTimeMs].add(obs.ValidationTimeMs)
	c.series[SeriesGateFailureRate].add(obs.GateFailureRate)
	c.series[SeriesRegulatoryAccuracy].add(obs.RegulatoryAccuracy)
	c.series[SeriesBufferAdherence].add(obs.BufferAdherence)
	c.series[SeriesAuditPassRate].add(obs.AuditPassRate)
	c.count++
	health := c.healthLocked()
	c.mu.Unlock()

	RecordValidationRun(obs, health)
}

// RecordConfidence folds calibrated claim confidences into the
// averageConfidence and confidenceVariance series.
func (c *Collector) RecordConfidence(values ...float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		c.confidences.add(v)
	}
	c.series[SeriesAverageConfidence].add(c.confidences.mean())
	c.series[SeriesConfidenceVariance].add(c.confidences.variance())
}

// RecordCalibrationAccuracy tracks how close calibrated confidence came
// to observed validity for runs where ground truth is known.
func (c *Collector) RecordCalibrationAccuracy(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series[SeriesCalibrationAccuracy].add(v)
}

// Average returns the moving average of one series, or 0 for an
// unknown or empty series.
func (c *Collector) Average(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.series[name]
	if !ok {
		return 0
	}
	return r.mean()
}

// HealthScore combines the windowed averages into a [0,100] score.
// An empty collector scores 0.
func (c *Collector) HealthScore() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthLocked()
}

func (c *Collector) healthLocked() float64 {
	if c.count == 0 {
		return 0
	}
	score := weightFactRatio*c.series[SeriesFactRatio].mean() +
		weightCitationCoverage*c.series[SeriesCitationCoverage].mean() +
		weightContradictionRate*(1-c.series[SeriesContradictionRate].mean()) +
		weightProvenanceScore*c.series[SeriesProvenanceScore].mean() +
		weightRegulatory*c.series[SeriesRegulatoryAccuracy].mean() +
		weightAuditPassRate*c.series[SeriesAuditPassRate].mean()
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score * 100
}

// Snapshot returns the current moving averages for every series plus
// the health score, with series names sorted for stable output.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	averages := make(map[string]float64, len(seriesNames))
	names := make([]string, len(seriesNames))
	copy(names, seriesNames)
	sort.Strings(names)
	for _, name := range names {
		averages[name] = c.series[name].mean()
	}
	return Snapshot{
		Window:      c.window,
		Count:       c.count,
		Averages:    averages,
		HealthScore: c.healthLocked(),
	}
}
