// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestSession(id, userID, refreshTokenID string, created time.Time) *Session {
	return &Session{
		ID:                id,
		UserID:            userID,
		RefreshTokenID:    refreshTokenID,
		DeviceFingerprint: "fp-" + id,
		IPAddress:         "10.0.0.1",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
		CreatedAt:         created,
		LastActiveAt:      created,
		ExpiresAt:         created.Add(30 * 24 * time.Hour),
	}
}

func mustCreate(t *testing.T, store Store, s *Session) {
	t.Helper()
	if err := store.Create(context.Background(), s); err != nil {
		t.Fatalf("Create(%s) error = %v", s.ID, err)
	}
}

// testStoreContract runs the behavior every Store must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))

		got, err := store.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.UserID != "u1" || got.RefreshTokenID != "rt1" {
			t.Errorf("Get() = %+v", got)
		}
		if !got.CreatedAt.Equal(baseTime) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
		}
		if got.IsRevoked() {
			t.Error("new session should not be revoked")
		}
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
		}
		if _, err := store.GetByRefreshToken(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("GetByRefreshToken() error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("get returns a copy", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))

		got, _ := store.Get(ctx, "s1")
		got.IPAddress = "6.6.6.6"

		again, _ := store.Get(ctx, "s1")
		if again.IPAddress != "10.0.0.1" {
			t.Errorf("stored session mutated through returned pointer: %s", again.IPAddress)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))
		err := store.Create(ctx, newTestSession("s1", "u2", "rt2", baseTime))
		if !errors.Is(err, ErrSessionExists) {
			t.Errorf("Create() error = %v, want ErrSessionExists", err)
		}
	})

	t.Run("refresh token bound once while live", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))

		err := store.Create(ctx, newTestSession("s2", "u1", "rt1", baseTime))
		if !errors.Is(err, ErrRefreshTokenInUse) {
			t.Fatalf("Create() error = %v, want ErrRefreshTokenInUse", err)
		}

		if _, err := store.Update(ctx, "s1", func(s *Session) error {
			s.revoke(baseTime, "u1", ReasonUserLogout)
			return nil
		}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		mustCreate(t, store, newTestSession("s2", "u1", "rt1", baseTime.Add(time.Minute)))
		got, err := store.GetByRefreshToken(ctx, "rt1")
		if err != nil {
			t.Fatalf("GetByRefreshToken() error = %v", err)
		}
		if got.ID != "s2" {
			t.Errorf("GetByRefreshToken() = %s, want s2", got.ID)
		}
	})

	t.Run("list by user does not match user id prefixes", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("mine", "alice", "rt-1", baseTime))
		mustCreate(t, store, newTestSession("theirs", "alice:evil", "rt-2", baseTime))
		mustCreate(t, store, newTestSession("colon", "alice:", "rt-3", baseTime))

		got, err := store.ListByUser(ctx, "alice")
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "mine" {
			t.Errorf("ListByUser(alice) = %v, want [mine]", ids(got))
		}
		if got, _ := store.ListByUser(ctx, "alice:"); len(got) != 1 || got[0].ID != "colon" {
			t.Errorf("ListByUser(alice:) = %v, want [colon]", ids(got))
		}
	})

	t.Run("list by user", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("b", "u1", "rt-b", baseTime.Add(2*time.Minute)))
		mustCreate(t, store, newTestSession("a", "u1", "rt-a", baseTime))
		mustCreate(t, store, newTestSession("c", "u2", "rt-c", baseTime))

		got, err := store.ListByUser(ctx, "u1")
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
			t.Errorf("ListByUser() = %v, want [a b]", ids(got))
		}

		none, err := store.ListByUser(ctx, "nobody")
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(none) != 0 {
			t.Errorf("ListByUser(nobody) = %v", ids(none))
		}

		all, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 3 {
			t.Errorf("List() returned %d sessions, want 3", len(all))
		}
	})

	t.Run("update", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))

		later := baseTime.Add(time.Hour)
		got, err := store.Update(ctx, "s1", func(s *Session) error {
			s.LastActiveAt = later
			s.IPAddress = "10.0.0.2"
			return nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if !got.LastActiveAt.Equal(later) || got.IPAddress != "10.0.0.2" {
			t.Errorf("Update() = %+v", got)
		}

		stored, _ := store.Get(ctx, "s1")
		if stored.IPAddress != "10.0.0.2" {
			t.Errorf("stored IPAddress = %s, want 10.0.0.2", stored.IPAddress)
		}
	})

	t.Run("update missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Update(ctx, "nope", func(*Session) error { return nil })
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Update() error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("update fn error aborts", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))

		boom := errors.New("boom")
		_, err := store.Update(ctx, "s1", func(s *Session) error {
			s.IPAddress = "6.6.6.6"
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update() error = %v, want boom", err)
		}
		stored, _ := store.Get(ctx, "s1")
		if stored.IPAddress != "10.0.0.1" {
			t.Errorf("aborted update was persisted: %s", stored.IPAddress)
		}
	})

	t.Run("revocation is permanent", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))
		if _, err := store.Update(ctx, "s1", func(s *Session) error {
			s.revoke(baseTime, "u1", ReasonUserLogout)
			return nil
		}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		_, err := store.Update(ctx, "s1", func(s *Session) error {
			s.RevokedAt = nil
			return nil
		})
		if !errors.Is(err, ErrRevocationPermanent) {
			t.Errorf("clearing revokedAt error = %v, want ErrRevocationPermanent", err)
		}

		_, err = store.Update(ctx, "s1", func(s *Session) error {
			moved := baseTime.Add(time.Hour)
			s.RevokedAt = &moved
			return nil
		})
		if !errors.Is(err, ErrRevocationPermanent) {
			t.Errorf("moving revokedAt error = %v, want ErrRevocationPermanent", err)
		}

		stored, _ := store.Get(ctx, "s1")
		if stored.RevokedAt == nil || !stored.RevokedAt.Equal(baseTime) {
			t.Errorf("RevokedAt = %v, want %v", stored.RevokedAt, baseTime)
		}
	})

	t.Run("identity is immutable", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))
		_, err := store.Update(ctx, "s1", func(s *Session) error {
			s.UserID = "u2"
			return nil
		})
		if !errors.Is(err, ErrImmutableField) {
			t.Errorf("Update() error = %v, want ErrImmutableField", err)
		}
	})

	t.Run("last active never moves backwards", func(t *testing.T) {
		store := newStore(t)
		s := newTestSession("s1", "u1", "rt1", baseTime)
		s.LastActiveAt = baseTime.Add(time.Hour)
		mustCreate(t, store, s)

		got, err := store.Update(ctx, "s1", func(s *Session) error {
			s.LastActiveAt = baseTime
			return nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if !got.LastActiveAt.Equal(baseTime.Add(time.Hour)) {
			t.Errorf("LastActiveAt = %v, want %v", got.LastActiveAt, baseTime.Add(time.Hour))
		}
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		store := newStore(t)
		s := newTestSession("s1", "u1", "rt1", baseTime)
		s.DeviceFingerprint = "0"
		mustCreate(t, store, s)

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, "s1", func(s *Session) error {
					n, err := strconv.Atoi(s.DeviceFingerprint)
					if err != nil {
						return err
					}
					s.DeviceFingerprint = strconv.Itoa(n + 1)
					return nil
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent Update() error = %v", err)
			}
		}
		stored, _ := store.Get(ctx, "s1")
		if stored.DeviceFingerprint != fmt.Sprint(workers) {
			t.Errorf("counter = %s, want %d", stored.DeviceFingerprint, workers)
		}
	})
}

func ids(sessions []*Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_Len(t *testing.T) {
	store := NewMemoryStore()
	mustCreate(t, store, newTestSession("s1", "u1", "rt1", baseTime))
	mustCreate(t, store, newTestSession("s2", "u1", "rt2", baseTime))
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}
