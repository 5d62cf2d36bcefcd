// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// ErrNilRecord is returned when a nil entry or event is saved.
var ErrNilRecord = errors.New("audit record cannot be nil")

// MemoryStore implements Store in memory.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	events  []SecurityEvent
	maxLen  int
	sink    logging.Sink
}

// NewMemoryStore creates an in-memory store. maxLen <= 0 means unbounded;
// otherwise the oldest tenth of a record kind is evicted when it is full.
// Every eviction is counted and reported as a warning.
func NewMemoryStore(maxLen int) *MemoryStore {
	return &MemoryStore{maxLen: maxLen, sink: logging.NewZerologSink("audit-memory-store")}
}

// WithSink replaces the diagnostic sink that receives eviction warnings.
func (s *MemoryStore) WithSink(sink logging.Sink) *MemoryStore {
	if sink != nil {
		s.mu.Lock()
		s.sink = sink
		s.mu.Unlock()
	}
	return s
}

// evicted reports n records of kind dropped to make room. Called with s.mu held.
func (s *MemoryStore) evicted(kind string, n, retained int) {
	metrics.RecordAuditEvicted(kind, n)
	s.sink.LogStructured(logging.LevelWarn, "Memory audit store full, oldest records evicted", map[string]interface{}{
		"kind":     kind,
		"evicted":  n,
		"capacity": s.maxLen,
		"retained": retained,
	})
}

// SaveEntry appends an audit entry.
func (s *MemoryStore) SaveEntry(_ context.Context, entry *Entry) error {
	if entry == nil {
		return ErrNilRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxLen > 0 && len(s.entries) >= s.maxLen {
		n := evictCount(s.maxLen)
		s.entries = s.entries[n:]
		s.evicted(kindEntry, n, len(s.entries))
	}
	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

// SaveSecurityEvent appends a security event.
func (s *MemoryStore) SaveSecurityEvent(_ context.Context, event *SecurityEvent) error {
	if event == nil {
		return ErrNilRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxLen > 0 && len(s.events) >= s.maxLen {
		n := evictCount(s.maxLen)
		s.events = s.events[n:]
		s.evicted(kindSecurityEvent, n, len(s.events))
	}
	ev := *event
	ev.Details = append([]byte(nil), event.Details...)
	s.events = append(s.events, ev)
	return nil
}

func evictCount(maxLen int) int {
	if n := maxLen / 10; n > 0 {
		return n
	}
	return 1
}

func cloneEntry(e *Entry) Entry {
	c := *e
	if e.Changes != nil {
		c.Changes = append([]byte(nil), e.Changes...)
	}
	return c
}

// QueryEntries returns entries matching the filter, newest first.
func (s *MemoryStore) QueryEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	matched, err := s.matchEntries(ctx, &filter)
	if err != nil {
		return nil, err
	}
	return paginate(matched, filter.Offset, filter.Limit), nil
}

// CountEntries returns the number of entries matching the filter, ignoring pagination.
func (s *MemoryStore) CountEntries(ctx context.Context, filter EntryFilter) (int64, error) {
	matched, err := s.matchEntries(ctx, &filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (s *MemoryStore) matchEntries(ctx context.Context, filter *EntryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if entryMatches(&s.entries[i], filter) {
			results = append(results, cloneEntry(&s.entries[i]))
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Timestamp.After(results[b].Timestamp)
	})
	return results, nil
}

// QuerySecurityEvents returns events matching the filter, newest first.
func (s *MemoryStore) QuerySecurityEvents(ctx context.Context, filter SecurityEventFilter) ([]SecurityEvent, error) {
	matched, err := s.matchEvents(ctx, &filter)
	if err != nil {
		return nil, err
	}
	return paginate(matched, filter.Offset, filter.Limit), nil
}

// CountSecurityEvents returns the number of events matching the filter.
func (s *MemoryStore) CountSecurityEvents(ctx context.Context, filter SecurityEventFilter) (int64, error) {
	matched, err := s.matchEvents(ctx, &filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (s *MemoryStore) matchEvents(ctx context.Context, filter *SecurityEventFilter) ([]SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SecurityEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if eventMatches(&s.events[i], filter) {
			results = append(results, s.events[i])
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Timestamp.After(results[b].Timestamp)
	})
	return results, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SecurityEventLen returns the number of stored security events.
func (s *MemoryStore) SecurityEventLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

//nolint:gocyclo // complexity inherent to multi-criteria filter matching
func entryMatches(e *Entry, f *EntryFilter) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if len(f.Severities) > 0 {
		found := false
		for _, sev := range f.Severities {
			if e.Severity == sev {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.ActionContains) > 0 && !containsAny(e.Action, f.ActionContains) {
		return false
	}
	return inRange(e.Timestamp, f.From, f.To)
}

func eventMatches(e *SecurityEvent, f *SecurityEventFilter) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.IPAddress != "" && e.IPAddress != f.IPAddress {
		return false
	}
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if e.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return inRange(e.Timestamp, f.From, f.To)
}

// inRange checks from <= ts < to with zero bounds treated as open.
func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && !ts.Before(to) {
		return false
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
