// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/wal"
)

// memorySpool records spooled payloads.
type memorySpool struct {
	mu    sync.Mutex
	kinds []string
	err   error
}

func (s *memorySpool) Write(_ context.Context, kind string, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.kinds = append(s.kinds, kind)
	return "id", nil
}

func (s *memorySpool) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.kinds...)
}

// flakyStore fails writes while down is set.
type flakyStore struct {
	*MemoryStore
	down atomic.Bool
}

func (s *flakyStore) SaveEntry(ctx context.Context, e *Entry) error {
	if s.down.Load() {
		return errors.New("database is locked")
	}
	return s.MemoryStore.SaveEntry(ctx, e)
}

func (s *flakyStore) SaveSecurityEvent(ctx context.Context, e *SecurityEvent) error {
	if s.down.Load() {
		return errors.New("database is locked")
	}
	return s.MemoryStore.SaveSecurityEvent(ctx, e)
}

func TestLogger_StoreFailureSpools(t *testing.T) {
	sink := logging.NewMemorySink()
	logger := newTestLogger(t, failingStore{NewMemoryStore(0)}, sink)
	spool := &memorySpool{}
	logger.SetSpool(spool)

	logger.LogUserAction(context.Background(), testSource(), Action{Name: "user_login"})
	logger.LogFailedLogin(context.Background(), "", testSource(), "bad_password")
	flush(t, logger)

	if got := spool.Kinds(); len(got) != 2 || got[0] != kindEntry || got[1] != kindSecurityEvent {
		t.Errorf("spooled kinds = %v", got)
	}
	if sink.Count(logging.LevelError) != 0 || sink.Count(logging.LevelWarn) != 2 {
		t.Errorf("errors = %d, warnings = %d; want 0 and 2", sink.Count(logging.LevelError), sink.Count(logging.LevelWarn))
	}
}

func TestLogger_SpoolFailureReportsError(t *testing.T) {
	sink := logging.NewMemorySink()
	logger := newTestLogger(t, failingStore{NewMemoryStore(0)}, sink)
	logger.SetSpool(&memorySpool{err: errors.New("spool closed")})

	logger.LogUserAction(context.Background(), testSource(), Action{Name: "user_login"})
	flush(t, logger)

	// One for the spool, one for the store.
	if got := sink.Count(logging.LevelError); got != 2 {
		t.Errorf("errors = %d, want 2", got)
	}
}

func TestLogger_BufferFullSpools(t *testing.T) {
	store := newBlockingStore()
	sink := logging.NewMemorySink()
	logger := NewLogger(store, &Config{Enabled: true, BufferSize: 1}, sink)
	spool := &memorySpool{}
	logger.SetSpool(spool)
	defer func() {
		store.Release()
		_ = logger.Close()
	}()

	for i := 0; i < 5; i++ {
		logger.LogUserAction(context.Background(), testSource(), Action{Name: "user_login"})
	}
	store.Release()
	flush(t, logger)

	written, spooled, dropped := store.Len(), len(spool.Kinds()), sink.Count(logging.LevelWarn)
	if written+spooled+dropped != 5 || spooled == 0 {
		t.Errorf("written %d, spooled %d, dropped %d; want 5 total with some spooled", written, spooled, dropped)
	}
}

// stalledSpool blocks every Write until released.
type stalledSpool struct {
	memorySpool
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (s *stalledSpool) Write(ctx context.Context, kind string, payload []byte) (string, error) {
	s.calls.Add(1)
	<-s.release
	return s.memorySpool.Write(ctx, kind, payload)
}

func (s *stalledSpool) Release() {
	s.once.Do(func() { close(s.release) })
}

func TestLogger_StalledSpoolDoesNotBlockCaller(t *testing.T) {
	store := newBlockingStore()
	sink := logging.NewMemorySink()
	logger := NewLogger(store, &Config{Enabled: true, BufferSize: 1}, sink)
	spool := &stalledSpool{release: make(chan struct{})}
	logger.SetSpool(spool)
	defer func() {
		spool.Release()
		store.Release()
		_ = logger.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			logger.LogUserAction(context.Background(), testSource(), Action{Name: "user_login"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logging blocked on a stalled spool")
	}
	if sink.Count(logging.LevelWarn) == 0 {
		t.Error("expected drops once the spool queue filled")
	}

	spool.Release()
	store.Release()
	flush(t, logger)

	written, spooled, dropped := store.Len(), len(spool.Kinds()), sink.Count(logging.LevelWarn)
	if written+spooled+dropped != 20 || spooled == 0 {
		t.Errorf("written %d, spooled %d, dropped %d; want 20 total with some spooled", written, spooled, dropped)
	}
}

func TestLogger_Replay(t *testing.T) {
	store := NewMemoryStore(0)
	logger := newTestLogger(t, store, nil)
	ctx := context.Background()

	if err := logger.Replay(ctx, kindEntry, []byte(`{"id":"e1","actor_id":"u1","action":"user_login","severity":"low"}`)); err != nil {
		t.Fatalf("Replay(entry) error = %v", err)
	}
	if err := logger.Replay(ctx, kindSecurityEvent, []byte(`{"id":"s1","event_type":"failed_login","ip_address":"10.0.0.1"}`)); err != nil {
		t.Fatalf("Replay(event) error = %v", err)
	}
	if err := logger.Replay(ctx, "bogus", []byte(`{}`)); !errors.Is(err, ErrUnknownRecordKind) {
		t.Errorf("Replay(bogus) = %v, want ErrUnknownRecordKind", err)
	}
	if err := logger.Replay(ctx, kindEntry, []byte(`not json`)); err == nil {
		t.Error("Replay(garbage) succeeded")
	}

	entries, _ := store.QueryEntries(ctx, EntryFilter{})
	events, _ := store.QuerySecurityEvents(ctx, SecurityEventFilter{})
	if len(entries) != 1 || entries[0].ID != "e1" || len(events) != 1 || events[0].ID != "s1" {
		t.Errorf("entries = %+v, events = %+v", entries, events)
	}

	noStore := newTestLogger(t, nil, nil)
	if err := noStore.Replay(ctx, kindEntry, []byte(`{}`)); !errors.Is(err, ErrNoStore) {
		t.Errorf("Replay without store = %v, want ErrNoStore", err)
	}
}

func TestLogger_WALRoundTrip(t *testing.T) {
	cfg := wal.DefaultConfig()
	cfg.InMemory = true
	cfg.SyncWrites = false
	spool, err := wal.Open(cfg)
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = spool.Close() })

	store := &flakyStore{MemoryStore: NewMemoryStore(0)}
	store.down.Store(true)
	logger := newTestLogger(t, store, logging.NewMemorySink())
	logger.SetSpool(spool)

	ctx := context.Background()
	logger.LogUserAction(ctx, testSource(), Action{Name: "password_changed"})
	logger.LogAccountLocked(ctx, "user-1", testSource(), 5)
	flush(t, logger)

	if store.Len() != 0 || spool.Stats().PendingCount != 2 {
		t.Fatalf("store = %d, pending = %d; want 0 and 2", store.Len(), spool.Stats().PendingCount)
	}

	store.down.Store(false)
	replayCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	result, err := spool.ReplayPending(replayCtx, logger)
	if err != nil {
		t.Fatalf("ReplayPending() error = %v", err)
	}
	if result.Succeeded != 2 {
		t.Errorf("result = %+v, want 2 succeeded", result)
	}

	entries, _ := store.QueryEntries(ctx, EntryFilter{})
	events, _ := store.QuerySecurityEvents(ctx, SecurityEventFilter{})
	if len(entries) != 1 || entries[0].Action != "password_changed" {
		t.Errorf("entries = %+v", entries)
	}
	if len(events) != 1 || events[0].EventType != EventAccountLocked {
		t.Errorf("events = %+v", events)
	}
}
