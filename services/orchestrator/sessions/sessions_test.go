// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/veracity/services/engine/claim"
	"github.com/AleutianAI/veracity/services/engine/pipeline"
	"github.com/AleutianAI/veracity/services/orchestrator/store"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *store.Store) {
	t.Helper()
	blobs, err := store.Open(store.InMemoryConfig())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = blobs.Close() })
	return NewManager(Config{TTL: ttl}, blobs, nil), blobs
}

func TestCreateAndGet(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	s := m.Create(claim.SourceSet{"doc.pdf": {Name: "doc.pdf"}})
	if s.ID == "" {
		t.Fatal("session has no id")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.Sources["doc.pdf"]; !ok {
		t.Error("session lost its sources")
	}
}

func TestCreateCopiesSources(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	mine := claim.SourceSet{"doc.pdf": {Name: "doc.pdf"}}
	s := m.Create(mine)

	// Merging into the session must not show up in the caller's map.
	if _, err := m.AddSources(s.ID, &claim.Source{Name: "memo.md"}); err != nil {
		t.Fatalf("AddSources: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("caller's source set mutated: %v", mine)
	}
}

func TestAddSourcesSnapshots(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := m.Create(claim.SourceSet{"doc.pdf": {Name: "doc.pdf"}})

	snap, err := m.AddSources(s.ID, &claim.Source{Name: "memo.md"})
	if err != nil {
		t.Fatalf("AddSources: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d sources, want 2", len(snap))
	}

	// A later merge must not reach into the earlier snapshot.
	if _, err := m.AddSources(s.ID, &claim.Source{Name: "plan.pdf"}); err != nil {
		t.Fatalf("AddSources: %v", err)
	}
	if len(snap) != 2 {
		t.Errorf("snapshot grew to %d sources", len(snap))
	}

	if _, err := m.AddSources("ghost", &claim.Source{Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddSourcesConcurrent(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := m.Create(claim.SourceSet{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("doc-%02d.pdf", i)
			if _, err := m.AddSources(s.ID, &claim.Source{Name: name}); err != nil {
				t.Errorf("AddSources(%s): %v", name, err)
			}
		}()
	}
	wg.Wait()

	live, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(live.Sources) != 16 {
		t.Errorf("merged %d sources, want 16", len(live.Sources))
	}
}

func TestGetUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	if _, err := m.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestExpiredSessionIsGone(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := m.Create(claim.SourceSet{})

	now := time.Now().UTC()
	m.now = func() time.Time { return now.Add(2 * time.Hour) }

	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session still served: %v", err)
	}
}

func TestGetExtendsTTL(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := m.Create(claim.SourceSet{})

	now := time.Now().UTC()
	// 50 minutes in: still live, and the touch resets the clock.
	m.now = func() time.Time { return now.Add(50 * time.Minute) }
	if _, err := m.Get(s.ID); err != nil {
		t.Fatalf("Get at 50m: %v", err)
	}

	// 100 minutes in: past the original expiry but inside the
	// extended one.
	m.now = func() time.Time { return now.Add(100 * time.Minute) }
	if _, err := m.Get(s.ID); err != nil {
		t.Errorf("touched session expired early: %v", err)
	}
}

func TestSetResultPersistsArtifact(t *testing.T) {
	m, blobs := newTestManager(t, time.Hour)
	s := m.Create(claim.SourceSet{})

	artifact := []byte(`{"sessionId":"x"}`)
	if err := m.SetResult(s.ID, &pipeline.Result{Success: true}, artifact); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	got, err := blobs.GetArtifact(s.ID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if string(got) != string(artifact) {
		t.Errorf("persisted %s, want %s", got, artifact)
	}

	live, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if live.Result == nil || !live.Result.Success {
		t.Error("result not attached to session")
	}
}

func TestSetResultUnknownSession(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	if err := m.SetResult("ghost", &pipeline.Result{}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	m, blobs := newTestManager(t, time.Hour)
	old := m.Create(claim.SourceSet{})
	if err := m.SetResult(old.ID, &pipeline.Result{}, []byte("x")); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	now := time.Now().UTC()
	m.now = func() time.Time { return now.Add(2 * time.Hour) }
	fresh := m.Create(claim.SourceSet{})

	if n := m.Sweep(); n != 1 {
		t.Errorf("swept %d sessions, want 1", n)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}
	if _, err := blobs.GetArtifact(old.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired artifact still stored: %v", err)
	}
}

func TestDeleteRemovesArtifact(t *testing.T) {
	m, blobs := newTestManager(t, time.Hour)
	s := m.Create(claim.SourceSet{})
	if err := m.SetResult(s.ID, &pipeline.Result{}, []byte("x")); err != nil {
		t.Fatalf("SetResult: %v", err)
	}

	m.Delete(s.ID)
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session still served: %v", err)
	}
	if _, err := blobs.GetArtifact(s.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("artifact survived delete: %v", err)
	}
}

func TestStartStopSweeper(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	m.config.SweepInterval = 10 * time.Millisecond
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	// Stop again is a no-op.
	m.Stop()
}
