// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the validation service: the pipeline
// engine, session and job stores, metrics, and the HTTP surface.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/veracity/pkg/logging"
	"github.com/AleutianAI/veracity/services/engine/metrics"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
	"github.com/AleutianAI/veracity/services/orchestrator/handlers"
	"github.com/AleutianAI/veracity/services/orchestrator/jobs"
	"github.com/AleutianAI/veracity/services/orchestrator/observability"
	"github.com/AleutianAI/veracity/services/orchestrator/routes"
	"github.com/AleutianAI/veracity/services/orchestrator/sessions"
	"github.com/AleutianAI/veracity/services/orchestrator/store"
)

// Config assembles the service.
type Config struct {
	// Addr is the listen address, e.g. ":12210".
	Addr string `yaml:"addr"`

	// DataDir is the BadgerDB directory. Empty keeps artifacts
	// in memory only.
	DataDir string `yaml:"dataDir"`

	// SessionTTL is how long sessions live after their last touch.
	SessionTTL time.Duration `yaml:"sessionTTL"`

	// Pipeline tunes the validation engine.
	Pipeline pipeline.Config `yaml:"pipeline"`

	// MetricsWindow is the quality-tracking window in runs.
	MetricsWindow int `yaml:"metricsWindow"`
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		Addr:          ":12210",
		SessionTTL:    sessions.DefaultTTL,
		Pipeline:      pipeline.DefaultConfig(),
		MetricsWindow: metrics.DefaultWindow,
	}
}

// Server is the assembled validation service.
type Server struct {
	config   Config
	log      *logging.Logger
	registry *prometheus.Registry

	Engine   *pipeline.Engine
	Sessions *sessions.Manager
	Jobs     *jobs.Store
	Blobs    *store.Store

	router *gin.Engine
	http   *http.Server
}

// New assembles a server from config. Call Run to serve and Shutdown
// to stop.
func New(config Config, log *logging.Logger) (*Server, error) {
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if log == nil {
		log = logging.Default()
	}

	registry := prometheus.NewRegistry()
	if _, err := observability.SetupMeterProvider(registry); err != nil {
		return nil, err
	}
	httpMetrics := observability.NewHTTPMetrics(registry)

	collector := metrics.NewCollector(config.MetricsWindow)
	engine, err := pipeline.NewEngine(config.Pipeline, collector, log)
	if err != nil {
		return nil, err
	}

	var blobs *store.Store
	if config.DataDir != "" {
		blobs, err = store.Open(store.DefaultConfig(config.DataDir))
	} else {
		blobs, err = store.Open(store.InMemoryConfig())
	}
	if err != nil {
		return nil, err
	}

	sessionManager := sessions.NewManager(sessions.Config{TTL: config.SessionTTL}, blobs, log)

	deps := &handlers.Deps{
		Engine:    engine,
		Sessions:  sessionManager,
		Jobs:      jobs.NewStore(),
		Collector: collector,
		Metrics:   httpMetrics,
		Log:       log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, deps, httpMetrics, registry)

	return &Server{
		config:   config,
		log:      log.With("component", "orchestrator"),
		registry: registry,
		Engine:   engine,
		Sessions: sessionManager,
		Jobs:     deps.Jobs,
		Blobs:    blobs,
		router:   router,
		http: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until the context is cancelled, then drains jobs and
// closes the store.
func (s *Server) Run(ctx context.Context) error {
	s.Sessions.Start()
	defer s.Sessions.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.config.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("orchestrator: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.log.Error("shutdown failed", "error", err)
	}
	s.Jobs.Wait()
	if err := s.Blobs.Close(); err != nil {
		s.log.Error("store close failed", "error", err)
	}
	return nil
}
