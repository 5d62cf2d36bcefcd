// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func createTestBadgerDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadgerStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		return NewBadgerStore(createTestBadgerDB(t))
	})
}

func TestBadgerStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}
	mustCreate(t, NewBadgerStore(db), newTestSession("s1", "u1", "rt1", baseTime))
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to reopen BadgerDB: %v", err)
	}
	defer db.Close()

	store := NewBadgerStore(db)
	got, err := store.GetByRefreshToken(ctx, "rt1")
	if err != nil {
		t.Fatalf("GetByRefreshToken() after reopen error = %v", err)
	}
	if got.ID != "s1" {
		t.Errorf("GetByRefreshToken() = %s, want s1", got.ID)
	}
}

func TestBadgerStore_CanceledContext(t *testing.T) {
	store := NewBadgerStore(createTestBadgerDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Create(ctx, newTestSession("s1", "u1", "rt1", baseTime)); err == nil {
		t.Error("Create() with canceled context should fail")
	}
}

func TestBadgerStore_RevokeOthersStaysWithinUser(t *testing.T) {
	tm := newTestManagerWithStore(t, NewBadgerStore(createTestBadgerDB(t)))
	ctx := context.Background()

	current := tm.create(t, "alice", "rt-1", "10.0.0.1", chromeWindows)
	sibling := tm.create(t, "alice", "rt-2", "10.0.0.2", chromeWindows)
	foreign := tm.create(t, "alice:evil", "rt-3", "10.0.0.3", chromeWindows)

	n, err := tm.RevokeAllOtherSessions(ctx, "alice", current.ID, "10.0.0.1", chromeWindows)
	if err != nil {
		t.Fatalf("RevokeAllOtherSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("revoked = %d, want 1", n)
	}
	if valid, _ := tm.IsSessionValid(ctx, sibling.ID); valid {
		t.Error("alice's other session should be revoked")
	}
	if valid, _ := tm.IsSessionValid(ctx, foreign.ID); !valid {
		t.Error("session of alice:evil was revoked by alice")
	}

	summaries, err := tm.GetUserSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserSessions() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != current.ID {
		t.Errorf("GetUserSessions(alice) = %+v, want only the current session", summaries)
	}
}
