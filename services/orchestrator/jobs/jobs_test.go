// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/veracity/services/engine/pipeline"
)

func TestSubmitCompletes(t *testing.T) {
	s := NewStore()

	job := s.Submit(context.Background(), "s1", func(context.Context) (*pipeline.Result, error) {
		return &pipeline.Result{Success: true}, nil
	})
	if job.ID == "" || job.Status != StatusQueued {
		t.Fatalf("submitted job = %+v", job)
	}
	if job.Progress != 0 {
		t.Errorf("queued progress = %v, want 0", job.Progress)
	}
	s.Wait()

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusComplete {
		t.Errorf("status = %s, want complete", got.Status)
	}
	if got.Progress != 1 {
		t.Errorf("terminal progress = %v, want 1", got.Progress)
	}
	if got.Result == nil || !got.Result.Success {
		t.Errorf("result = %+v", got.Result)
	}
	if got.SessionID != "s1" {
		t.Errorf("sessionId = %q", got.SessionID)
	}
}

func TestSubmitReportsProcessingProgress(t *testing.T) {
	s := NewStore()
	started := make(chan struct{})
	release := make(chan struct{})

	job := s.Submit(context.Background(), "", func(context.Context) (*pipeline.Result, error) {
		close(started)
		<-release
		return &pipeline.Result{}, nil
	})

	<-started
	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if got.Progress != 0.5 {
		t.Errorf("processing progress = %v, want 0.5", got.Progress)
	}

	close(release)
	s.Wait()
}

func TestSubmitFailure(t *testing.T) {
	s := NewStore()

	job := s.Submit(context.Background(), "", func(context.Context) (*pipeline.Result, error) {
		return nil, errors.New("boom")
	})
	s.Wait()

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusError || got.Error != "boom" {
		t.Errorf("job = %+v, want error state", got)
	}
	if got.Progress != 1 {
		t.Errorf("failed job progress = %v, want 1", got.Progress)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestSubmitPanicBecomesError(t *testing.T) {
	s := NewStore()

	job := s.Submit(context.Background(), "", func(context.Context) (*pipeline.Result, error) {
		panic("unexpected")
	})
	s.Wait()

	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusError {
		t.Errorf("status = %s, want error", got.Status)
	}
}

func TestGetUnknownJob(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := NewStore()
	job := s.Submit(context.Background(), "", func(context.Context) (*pipeline.Result, error) {
		return &pipeline.Result{}, nil
	})
	s.Wait()

	snap, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap.Status = StatusQueued

	again, _ := s.Get(job.ID)
	if again.Status != StatusComplete {
		t.Error("mutating a snapshot changed the stored job")
	}
}
