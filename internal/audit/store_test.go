// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedEntry(t *testing.T, store Store, id, actor, action string, severity Severity, ts time.Time) {
	t.Helper()
	err := store.SaveEntry(context.Background(), &Entry{
		ID:         id,
		ActorID:    actor,
		ActorType:  ActorUser,
		Action:     action,
		TargetType: "test",
		IPAddress:  "10.0.0.1",
		UserAgent:  "test-agent",
		Timestamp:  ts,
		Severity:   severity,
	})
	if err != nil {
		t.Fatalf("SaveEntry(%s) failed: %v", id, err)
	}
}

func seedEvent(t *testing.T, store Store, id, user string, eventType SecurityEventType, ip string, ts time.Time) {
	t.Helper()
	err := store.SaveSecurityEvent(context.Background(), &SecurityEvent{
		ID:        id,
		UserID:    user,
		EventType: eventType,
		IPAddress: ip,
		UserAgent: "test-agent",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("SaveSecurityEvent(%s) failed: %v", id, err)
	}
}

func TestMemoryStore_SaveNil(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	if err := store.SaveEntry(ctx, nil); !errors.Is(err, ErrNilRecord) {
		t.Errorf("SaveEntry(nil) error = %v, want ErrNilRecord", err)
	}
	if err := store.SaveSecurityEvent(ctx, nil); !errors.Is(err, ErrNilRecord) {
		t.Errorf("SaveSecurityEvent(nil) error = %v, want ErrNilRecord", err)
	}
}

func TestMemoryStore_QueryEntries(t *testing.T) {
	store := NewMemoryStore(0)
	seedEntry(t, store, "e1", "alice", "user_login", SeverityLow, baseTime)
	seedEntry(t, store, "e2", "alice", "product_delete", SeverityHigh, baseTime.Add(time.Minute))
	seedEntry(t, store, "e3", "bob", "data_export", SeverityHigh, baseTime.Add(2*time.Minute))
	seedEntry(t, store, "e4", "bob", "admin_user_suspend", SeverityHigh, baseTime.Add(3*time.Minute))

	tests := []struct {
		name    string
		filter  EntryFilter
		wantIDs []string
	}{
		{name: "all newest first", filter: EntryFilter{}, wantIDs: []string{"e4", "e3", "e2", "e1"}},
		{name: "by actor", filter: EntryFilter{ActorID: "alice"}, wantIDs: []string{"e2", "e1"}},
		{name: "by action", filter: EntryFilter{Action: "data_export"}, wantIDs: []string{"e3"}},
		{name: "by severity", filter: EntryFilter{Severities: []Severity{SeverityLow}}, wantIDs: []string{"e1"}},
		{name: "action contains any", filter: EntryFilter{ActionContains: []string{"admin", "delete"}}, wantIDs: []string{"e4", "e2"}},
		{name: "from inclusive", filter: EntryFilter{From: baseTime.Add(2 * time.Minute)}, wantIDs: []string{"e4", "e3"}},
		{name: "to exclusive", filter: EntryFilter{To: baseTime.Add(2 * time.Minute)}, wantIDs: []string{"e2", "e1"}},
		{name: "limit", filter: EntryFilter{Limit: 2}, wantIDs: []string{"e4", "e3"}},
		{name: "offset and limit", filter: EntryFilter{Offset: 1, Limit: 2}, wantIDs: []string{"e3", "e2"}},
		{name: "offset past end", filter: EntryFilter{Offset: 10}, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.QueryEntries(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("QueryEntries failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("entry[%d] = %s, want %s", i, got[i].ID, id)
				}
			}

			count, err := store.CountEntries(context.Background(), EntryFilter{
				ActorID:        tt.filter.ActorID,
				Action:         tt.filter.Action,
				Severities:     tt.filter.Severities,
				ActionContains: tt.filter.ActionContains,
				From:           tt.filter.From,
				To:             tt.filter.To,
			})
			if err != nil {
				t.Fatalf("CountEntries failed: %v", err)
			}
			if tt.filter.Limit == 0 && tt.filter.Offset == 0 && int(count) != len(tt.wantIDs) {
				t.Errorf("CountEntries = %d, want %d", count, len(tt.wantIDs))
			}
		})
	}
}

func TestMemoryStore_QuerySecurityEvents(t *testing.T) {
	store := NewMemoryStore(0)
	seedEvent(t, store, "s1", "alice", EventFailedLogin, "1.1.1.1", baseTime)
	seedEvent(t, store, "s2", "", EventFailedLogin, "2.2.2.2", baseTime.Add(time.Minute))
	seedEvent(t, store, "s3", "alice", EventAccountLocked, "1.1.1.1", baseTime.Add(2*time.Minute))

	tests := []struct {
		name    string
		filter  SecurityEventFilter
		wantIDs []string
	}{
		{name: "all", filter: SecurityEventFilter{}, wantIDs: []string{"s3", "s2", "s1"}},
		{name: "by user", filter: SecurityEventFilter{UserID: "alice"}, wantIDs: []string{"s3", "s1"}},
		{name: "by type", filter: SecurityEventFilter{EventTypes: []SecurityEventType{EventFailedLogin}}, wantIDs: []string{"s2", "s1"}},
		{name: "by ip", filter: SecurityEventFilter{IPAddress: "2.2.2.2"}, wantIDs: []string{"s2"}},
		{name: "window", filter: SecurityEventFilter{From: baseTime.Add(time.Second), To: baseTime.Add(2 * time.Minute)}, wantIDs: []string{"s2"}},
		{name: "limit", filter: SecurityEventFilter{Limit: 1}, wantIDs: []string{"s3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.QuerySecurityEvents(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("QuerySecurityEvents failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("event[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	count, err := store.CountSecurityEvents(context.Background(), SecurityEventFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("CountSecurityEvents failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CountSecurityEvents = %d, want 2", count)
	}
}

func TestMemoryStore_Eviction(t *testing.T) {
	sink := logging.NewMemorySink()
	store := NewMemoryStore(10).WithSink(sink)
	before := testutil.ToFloat64(metrics.AuditRecordsEvicted.WithLabelValues(kindEntry))

	for i := 0; i < 15; i++ {
		seedEntry(t, store, fmt.Sprintf("e%02d", i), "alice", "user_login", SeverityLow, baseTime.Add(time.Duration(i)*time.Second))
	}

	if store.Len() > 10 {
		t.Errorf("Len() = %d, want <= 10", store.Len())
	}

	got, err := store.QueryEntries(context.Background(), EntryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("QueryEntries failed: %v", err)
	}
	if got[0].ID != "e14" {
		t.Errorf("newest entry = %s, want e14", got[0].ID)
	}

	evicted := testutil.ToFloat64(metrics.AuditRecordsEvicted.WithLabelValues(kindEntry)) - before
	if int(evicted) != 15-store.Len() {
		t.Errorf("evicted metric = %v, want %d", evicted, 15-store.Len())
	}
	if sink.Count(logging.LevelWarn) == 0 {
		t.Error("eviction was not reported to the diagnostic sink")
	}
}

func TestMemoryStore_UnboundedNeverEvicts(t *testing.T) {
	sink := logging.NewMemorySink()
	store := NewMemoryStore(0).WithSink(sink)
	for i := 0; i < 200; i++ {
		seedEntry(t, store, fmt.Sprintf("e%03d", i), "alice", "user_login", SeverityLow, baseTime.Add(time.Duration(i)*time.Second))
	}
	if store.Len() != 200 || sink.Count(logging.LevelWarn) != 0 {
		t.Errorf("Len() = %d, warnings = %d; want 200 and 0", store.Len(), sink.Count(logging.LevelWarn))
	}
}

func TestMemoryStore_StoresCopies(t *testing.T) {
	store := NewMemoryStore(0)
	entry := &Entry{ID: "e1", ActorID: "alice", Action: "user_login", Timestamp: baseTime, Severity: SeverityLow}
	if err := store.SaveEntry(context.Background(), entry); err != nil {
		t.Fatalf("SaveEntry failed: %v", err)
	}

	entry.Action = "tampered"

	got, _ := store.QueryEntries(context.Background(), EntryFilter{})
	if got[0].Action != "user_login" {
		t.Errorf("stored entry was mutated through caller pointer: %s", got[0].Action)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore(0)
	seedEntry(t, store, "e1", "alice", "user_login", SeverityLow, baseTime)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.QueryEntries(ctx, EntryFilter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("QueryEntries error = %v, want context.Canceled", err)
	}
}
