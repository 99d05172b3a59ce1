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
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordRepairEmitsCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	RecordRepair(context.Background(), "CONFIDENCE_MINIMUM", "flagged_low_confidence")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var sum *metricdata.Sum[int64]
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "veracity.repair.applied" {
				if s, ok := m.Data.(metricdata.Sum[int64]); ok {
					sum = &s
				}
			}
		}
	}
	if sum == nil {
		t.Fatal("repair counter not collected")
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total < 1 {
		t.Errorf("repair counter total = %d, want >= 1", total)
	}
}
