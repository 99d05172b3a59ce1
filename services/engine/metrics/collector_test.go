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
	"math"
	"sync"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRingWrapsAtCapacity(t *testing.T) {
	r := newRing(3)
	for _, v := range []float64{1, 2, 3, 4} {
		r.add(v)
	}
	if r.len() != 3 {
		t.Fatalf("len = %d, want 3", r.len())
	}
	// Window holds 2, 3, 4 after the oldest value falls off.
	if !almost(r.mean(), 3) {
		t.Errorf("mean = %v, want 3", r.mean())
	}
	if !almost(r.last(), 4) {
		t.Errorf("last = %v, want 4", r.last())
	}
}

func TestRingEmpty(t *testing.T) {
	r := newRing(5)
	if r.mean() != 0 || r.variance() != 0 || r.last() != 0 {
		t.Errorf("empty ring not zero-valued: mean=%v var=%v last=%v",
			r.mean(), r.variance(), r.last())
	}
}

func TestHealthScoreWeighting(t *testing.T) {
	c := NewCollector(10)
	c.Record(Observation{
		FactRatio:          1.0,
		CitationCoverage:   1.0,
		ContradictionRate:  0.0,
		ProvenanceScore:    1.0,
		RegulatoryAccuracy: 1.0,
		AuditPassRate:      1.0,
	})

	if got := c.HealthScore(); !almost(got, 100) {
		t.Errorf("perfect run scored %v, want 100", got)
	}

	// Weights must sum to 1, so a uniform 0.5 run scores 50 (the
	// inverted contradiction rate contributes 0.5 as well).
	c2 := NewCollector(10)
	c2.Record(Observation{
		FactRatio:          0.5,
		CitationCoverage:   0.5,
		ContradictionRate:  0.5,
		ProvenanceScore:    0.5,
		RegulatoryAccuracy: 0.5,
		AuditPassRate:      0.5,
	})
	if got := c2.HealthScore(); !almost(got, 50) {
		t.Errorf("uniform 0.5 run scored %v, want 50", got)
	}
}

func TestHealthScoreEmptyCollector(t *testing.T) {
	if got := NewCollector(10).HealthScore(); got != 0 {
		t.Errorf("empty collector scored %v, want 0", got)
	}
}

func TestContradictionRateLowersHealth(t *testing.T) {
	clean := NewCollector(10)
	noisy := NewCollector(10)
	base := Observation{
		FactRatio: 0.9, CitationCoverage: 0.9, ProvenanceScore: 0.9,
		RegulatoryAccuracy: 0.9, AuditPassRate: 0.9,
	}
	clean.Record(base)
	base.ContradictionRate = 0.6
	noisy.Record(base)

	if clean.HealthScore() <= noisy.HealthScore() {
		t.Errorf("contradictions did not lower health: clean=%v noisy=%v",
			clean.HealthScore(), noisy.HealthScore())
	}
}

func TestMovingAverageOverWindow(t *testing.T) {
	c := NewCollector(2)
	c.Record(Observation{CitationCoverage: 0.4})
	c.Record(Observation{CitationCoverage: 0.8})
	c.Record(Observation{CitationCoverage: 1.0})

	// Window of 2 keeps only the last two runs.
	if got := c.Average(SeriesCitationCoverage); !almost(got, 0.9) {
		t.Errorf("coverage average = %v, want 0.9", got)
	}
}

func TestConfidenceSeries(t *testing.T) {
	c := NewCollector(10)
	c.RecordConfidence(0.6, 0.8)

	if got := c.Average(SeriesAverageConfidence); !almost(got, 0.7) {
		t.Errorf("averageConfidence = %v, want 0.7", got)
	}
	if got := c.Average(SeriesConfidenceVariance); !almost(got, 0.01) {
		t.Errorf("confidenceVariance = %v, want 0.01", got)
	}
}

func TestSnapshotCoversAllSeries(t *testing.T) {
	c := NewCollector(10)
	c.Record(Observation{FactRatio: 1, AuditPassRate: 1})
	c.RecordCalibrationAccuracy(0.95)

	snap := c.Snapshot()
	if snap.Count != 1 {
		t.Errorf("count = %d, want 1", snap.Count)
	}
	if len(snap.Averages) != len(seriesNames) {
		t.Errorf("snapshot has %d series, want %d", len(snap.Averages), len(seriesNames))
	}
	for _, name := range seriesNames {
		if _, ok := snap.Averages[name]; !ok {
			t.Errorf("snapshot missing series %q", name)
		}
	}
	if !almost(snap.Averages[SeriesCalibrationAccuracy], 0.95) {
		t.Errorf("calibrationAccuracy = %v, want 0.95", snap.Averages[SeriesCalibrationAccuracy])
	}
}

func TestAverageUnknownSeries(t *testing.T) {
	if got := NewCollector(10).Average("nope"); got != 0 {
		t.Errorf("unknown series = %v, want 0", got)
	}
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(Observation{FactRatio: 0.8, AuditPassRate: 0.9})
				c.RecordConfidence(0.7)
				_ = c.HealthScore()
				_ = c.Snapshot()
			}
		}()
	}
	wg.Wait()

	if snap := c.Snapshot(); snap.Count != 800 {
		t.Errorf("count = %d, want 800", snap.Count)
	}
}
