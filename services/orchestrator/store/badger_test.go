// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"errors"
	"sort"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := []byte(`{"sessionId":"s1"}`)
	if err := s.PutArtifact("s1", want, 0); err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}
	got, err := s.GetArtifact("s1")
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestGetMissingSession(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetArtifact("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOverwriteKeepsLatest(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutArtifact("s1", []byte("v1"), 0); err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}
	if err := s.PutArtifact("s1", []byte("v2"), 0); err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}
	got, err := s.GetArtifact("s1")
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("got %s, want v2", got)
	}
}

func TestDeleteArtifact(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutArtifact("s1", []byte("v1"), 0); err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}
	if err := s.DeleteArtifact("s1"); err != nil {
		t.Fatalf("DeleteArtifact: %v", err)
	}
	if _, err := s.GetArtifact("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
	// Deleting again is a no-op.
	if err := s.DeleteArtifact("s1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestSessionIDs(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"b", "a", "c"} {
		if err := s.PutArtifact(id, []byte("x"), 0); err != nil {
			t.Fatalf("PutArtifact: %v", err)
		}
	}
	ids, err := s.SessionIDs()
	if err != nil {
		t.Fatalf("SessionIDs: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("ids = %v", ids)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("persistent store without a path opened")
	}
}
