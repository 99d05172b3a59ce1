// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequestStatusBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.RecordRequest(EndpointExtract, 200, 0.1)
	m.RecordRequest(EndpointExtract, 400, 0.1)
	m.RecordRequest(EndpointExtract, 500, 0.1)
	m.RecordRequest(EndpointExtract, 200, 0.2)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(string(EndpointExtract), "success")); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(string(EndpointExtract), "client_error")); got != 1 {
		t.Errorf("client_error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(string(EndpointExtract), "server_error")); got != 1 {
		t.Errorf("server_error = %v, want 1", got)
	}
}

func TestJobGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.JobStarted()
	m.JobStarted()
	m.JobEnded()

	if got := testutil.ToFloat64(m.ActiveJobs); got != 1 {
		t.Errorf("active jobs = %v, want 1", got)
	}
}

func TestSetupMeterProvider(t *testing.T) {
	reg := prometheus.NewRegistry()
	provider, err := SetupMeterProvider(reg)
	if err != nil {
		t.Fatalf("SetupMeterProvider: %v", err)
	}
	if provider == nil {
		t.Fatal("nil provider")
	}
}
