// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// validation orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for the validation HTTP
// surface. Metrics include:
//   - Request counters (by endpoint, status)
//   - Request latency histograms
//   - Active asynchronous job gauges
//   - Live session gauges
//
// The engine packages emit their own measurements through
// OpenTelemetry; SetupMeterProvider bridges those into the same
// Prometheus registry, so one /metrics endpoint serves both.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Namespace for all metrics.
const metricsNamespace = "veracity"

// Subsystem for the HTTP validation surface.
const httpSubsystem = "http"

// Endpoint labels for request metrics.
type Endpoint string

const (
	EndpointExtract          Endpoint = "claims_extract"
	EndpointDetect           Endpoint = "claims_detect"
	EndpointValidateTimeline Endpoint = "validate_timeline"
	EndpointLedger           Endpoint = "ledger"
	EndpointReport           Endpoint = "report"
)

// HTTPMetrics holds the Prometheus metrics for the validation surface.
//
// # Fields
//
//   - RequestsTotal: Counter of requests by endpoint and status.
//   - RequestDurationSeconds: Histogram of request latency by endpoint.
//   - ActiveJobs: Gauge of asynchronous validation jobs in flight.
//   - LiveSessions: Gauge of unexpired sessions.
//
// # Thread Safety
//
// All operations are thread-safe.
type HTTPMetrics struct {
	// RequestsTotal counts requests by endpoint and status.
	// Labels: endpoint, status (success, client_error, server_error)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures end-to-end request latency.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// ActiveJobs tracks asynchronous validation jobs in flight.
	ActiveJobs prometheus.Gauge

	// LiveSessions tracks unexpired validation sessions.
	LiveSessions prometheus.Gauge
}

// NewHTTPMetrics creates and registers the HTTP metrics against the
// given registry. Registering twice on one registry panics, so create
// this once at startup.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total validation requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Request latency by endpoint",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120},
			},
			[]string{"endpoint"},
		),

		ActiveJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "active_jobs",
				Help:      "Asynchronous validation jobs in flight",
			},
		),

		LiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "live_sessions",
				Help:      "Unexpired validation sessions",
			},
		),
	}
}

// RecordRequest counts one finished request.
func (m *HTTPMetrics) RecordRequest(endpoint Endpoint, statusCode int, seconds float64) {
	status := "success"
	switch {
	case statusCode >= 500:
		status = "server_error"
	case statusCode >= 400:
		status = "client_error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
	m.RequestDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// JobStarted and JobEnded bracket one asynchronous run.
func (m *HTTPMetrics) JobStarted() { m.ActiveJobs.Inc() }
func (m *HTTPMetrics) JobEnded()   { m.ActiveJobs.Dec() }

// SetupMeterProvider wires the engine's OpenTelemetry instruments to
// the given Prometheus registry and installs the provider globally.
// The caller owns shutdown of the returned provider.
func SetupMeterProvider(reg prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observability: prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return provider, nil
}
