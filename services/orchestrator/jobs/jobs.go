// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package jobs tracks asynchronous validation runs. Jobs move through
// queued, processing, and a terminal complete or error state; callers
// poll by id.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/veracity/services/engine/pipeline"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("jobs: not found")

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Job is one asynchronous validation run.
type Job struct {
	ID        string    `json:"jobId"`
	SessionID string    `json:"sessionId,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Progress is a coarse completion fraction for pollers: 0 while
	// queued, 0.5 while processing, 1 in a terminal state.
	Progress float64 `json:"progress"`

	// Result is set when Status is complete.
	Result *pipeline.Result `json:"result,omitempty"`

	// Error is set when Status is error.
	Error string `json:"error,omitempty"`
}

// Runner is the work a job performs.
type Runner func(ctx context.Context) (*pipeline.Result, error)

// Store tracks jobs in memory. Jobs are request-scoped bookkeeping;
// a restart loses them, and pollers see that as a 404.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time

	// wg lets tests and shutdown wait for in-flight jobs.
	wg sync.WaitGroup
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Submit registers a job and runs it in the background. The returned
// snapshot carries the id pollers use.
func (s *Store) Submit(ctx context.Context, sessionID string, run Runner) Job {
	now := s.now()
	job := &Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, job.ID, run)
	}()
	return *job
}

func (s *Store) execute(ctx context.Context, id string, run Runner) {
	s.transition(id, func(j *Job) {
		j.Status = StatusProcessing
		j.Progress = 0.5
	})

	result, err := func() (result *pipeline.Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panic: %v", r)
			}
		}()
		return run(ctx)
	}()

	s.transition(id, func(j *Job) {
		j.Progress = 1
		if err != nil {
			j.Status = StatusError
			j.Error = err.Error()
			return
		}
		j.Status = StatusComplete
		j.Result = result
	})
}

func (s *Store) transition(id string, mutate func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	mutate(j)
	j.UpdatedAt = s.now()
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

// Wait blocks until all submitted jobs finish. Used on shutdown.
func (s *Store) Wait() {
	s.wg.Wait()
}
