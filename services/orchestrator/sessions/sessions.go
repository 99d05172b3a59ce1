// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions manages validation sessions with a time-to-live.
// A session binds uploaded sources to the validation results produced
// for them; expired sessions are swept in the background and their
// persisted artifacts dropped.
package sessions

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/veracity/pkg/logging"
	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
	"github.com/AleutianAI/veracity/services/orchestrator/store"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("sessions: not found")

// Defaults for the manager.
const (
	DefaultTTL           = time.Hour
	DefaultSweepInterval = time.Minute
)

// Session is one validation session.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	// Sources are the ingested documents for this session.
	Sources claim.SourceSet `json:"-"`

	// Result is the latest validation result, nil before the first run.
	Result *pipeline.Result `json:"-"`
}

// Config tunes the session manager.
type Config struct {
	// TTL is how long a session lives after its last touch.
	TTL time.Duration

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration
}

// Manager owns the in-memory session table and mirrors artifacts to
// the persistent store.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	config Config
	blobs  *store.Store
	log    *logging.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewManager creates a session manager. The store may be nil, which
// disables artifact persistence.
func NewManager(config Config, blobs *store.Store, log *logging.Logger) *Manager {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if log == nil {
		log = logging.Default()
	}
	return &Manager{
		config:   config,
		blobs:    blobs,
		log:      log.With("component", "sessions"),
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session around the given sources. The
// session owns a copy of the map, so the caller's set stays private
// to the caller.
func (m *Manager) Create(sources claim.SourceSet) *Session {
	owned := make(claim.SourceSet, len(sources))
	for name, src := range sources {
		owned[name] = src
	}
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.TTL),
		Sources:   owned,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// AddSources merges sources into a live session under the manager's
// lock and returns a snapshot of the full set. Validation runs read
// the snapshot, so a concurrent upload to the same session cannot
// race an in-flight run.
func (m *Manager) AddSources(id string, sources ...*claim.Source) (claim.SourceSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || m.now().After(s.ExpiresAt) {
		return nil, ErrNotFound
	}
	for _, src := range sources {
		s.Sources[src.Name] = src
	}
	snapshot := make(claim.SourceSet, len(s.Sources))
	for name, src := range s.Sources {
		snapshot[name] = src
	}
	return snapshot, nil
}

// Get returns a live session and extends its TTL. Expired sessions
// are treated as missing even before the sweep collects them.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || m.now().After(s.ExpiresAt) {
		return nil, ErrNotFound
	}
	s.ExpiresAt = m.now().Add(m.config.TTL)
	return s, nil
}

// SetResult attaches a validation result to a session and mirrors the
// canonical artifact bytes to the store under the session TTL.
func (m *Manager) SetResult(id string, result *pipeline.Result, artifact []byte) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	s.Result = result
	m.mu.Unlock()

	if m.blobs != nil && artifact != nil {
		if err := m.blobs.PutArtifact(id, artifact, m.config.TTL); err != nil {
			m.log.Warn("artifact persistence failed", "session", id, "error", err)
		}
	}
	return nil
}

// Delete removes a session and its persisted artifact.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	if m.blobs != nil {
		if err := m.blobs.DeleteArtifact(id); err != nil {
			m.log.Warn("artifact delete failed", "session", id, "error", err)
		}
	}
}

// List returns live session ids.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	ids := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked sessions, expired included until
// the next sweep.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start launches the background sweep. Stop must be called once.
func (m *Manager) Start() {
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.sweepLoop()
}

// Stop halts the background sweep and waits for it to exit.
func (m *Manager) Stop() {
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	<-m.doneCh
	m.stopCh = nil
}

func (m *Manager) sweepLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Info("expired sessions removed", "count", n)
			}
		}
	}
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	if m.blobs != nil {
		for _, id := range expired {
			if err := m.blobs.DeleteArtifact(id); err != nil {
				m.log.Warn("artifact delete failed", "session", id, "error", err)
			}
		}
	}
	return len(expired)
}
