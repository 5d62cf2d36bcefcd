// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/sentinel/internal/metrics"
)

// ErrInvalidTimeRange is returned when a report's end precedes its start.
var ErrInvalidTimeRange = errors.New("invalid time range: to must not be before from")

// GetAuditLogs returns entries matching the filter, newest first.
func (l *Logger) GetAuditLogs(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	entries, err := l.store.QueryEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return entries, nil
}

// CountAuditLogs returns the number of entries matching the filter,
// ignoring its limit and offset.
func (l *Logger) CountAuditLogs(ctx context.Context, filter EntryFilter) (int64, error) {
	if l.store == nil {
		return 0, ErrNoStore
	}
	filter.Limit, filter.Offset = 0, 0
	return l.store.CountEntries(ctx, filter)
}

// GetSecurityEvents returns security events matching the filter, newest first.
func (l *Logger) GetSecurityEvents(ctx context.Context, filter SecurityEventFilter) ([]SecurityEvent, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	events, err := l.store.QuerySecurityEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get security events: %w", err)
	}
	return events, nil
}

// CountSecurityEvents returns the number of security events matching the
// filter, ignoring its limit and offset.
func (l *Logger) CountSecurityEvents(ctx context.Context, filter SecurityEventFilter) (int64, error) {
	if l.store == nil {
		return 0, ErrNoStore
	}
	filter.Limit, filter.Offset = 0, 0
	return l.store.CountSecurityEvents(ctx, filter)
}

// GenerateAuditReport aggregates entries and security events in [from, to),
// optionally restricted to one actor. Reports over adjacent windows add up
// to the report over their union. A canceled context yields an error, never
// a partial report.
func (l *Logger) GenerateAuditReport(ctx context.Context, from, to time.Time, actorID string) (*Report, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, ErrInvalidTimeRange
	}

	start := time.Now()
	defer func() { metrics.AuditReportDuration.Observe(time.Since(start).Seconds()) }()

	entries, err := l.store.QueryEntries(ctx, EntryFilter{ActorID: actorID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries for report: %w", err)
	}

	report := &Report{
		TotalEntries: len(entries),
		ByAction:     make(map[string]int),
		BySeverity:   make(map[Severity]int),
		TimeRange:    TimeRange{From: from, To: to},
	}
	for i := range entries {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("audit report canceled: %w", err)
			}
		}
		report.ByAction[entries[i].Action]++
		report.BySeverity[entries[i].Severity]++
	}

	report.SecurityEvents, err = l.store.CountSecurityEvents(ctx, SecurityEventFilter{UserID: actorID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to count security events for report: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("audit report canceled: %w", err)
	}
	return report, nil
}
