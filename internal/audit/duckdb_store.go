// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// DuckDBStore implements Store on DuckDB through database/sql.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore creates a DuckDB-backed store. Call CreateTables before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

const schemaDDL = `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		actor_id TEXT NOT NULL,
		actor_type TEXT NOT NULL,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		changes JSON,
		ip_address TEXT NOT NULL,
		user_agent TEXT,
		session_id TEXT,
		severity TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entries_timestamp ON audit_entries(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries(actor_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_severity ON audit_entries(severity);

	CREATE TABLE IF NOT EXISTS security_events (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		user_id TEXT,
		event_type TEXT NOT NULL,
		ip_address TEXT NOT NULL,
		user_agent TEXT,
		details JSON
	);

	CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_security_events_user ON security_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_security_events_type ON security_events(event_type)
`

// CreateTables creates the audit_entries and security_events tables if missing.
func (s *DuckDBStore) CreateTables(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Audit tables created/verified")
	return nil
}

// SaveEntry inserts an audit entry. An ID already stored is ignored, so
// replaying a spooled record is safe.
func (s *DuckDBStore) SaveEntry(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return ErrNilRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO audit_entries (
			id, timestamp, actor_id, actor_type, action, target_type, target_id,
			changes, ip_address, user_agent, session_id, severity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC(),
		entry.ActorID,
		string(entry.ActorType),
		entry.Action,
		entry.TargetType,
		nullableString(entry.TargetID),
		nullableJSON(entry.Changes),
		entry.IPAddress,
		entry.UserAgent,
		nullableString(entry.SessionID),
		string(entry.Severity),
	)
	metrics.RecordDBQuery("insert", "audit_entries", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}
	return nil
}

// SaveSecurityEvent inserts a security event.
func (s *DuckDBStore) SaveSecurityEvent(ctx context.Context, event *SecurityEvent) error {
	if event == nil {
		return ErrNilRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO security_events (
			id, timestamp, user_id, event_type, ip_address, user_agent, details
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC(),
		nullableString(event.UserID),
		string(event.EventType),
		event.IPAddress,
		event.UserAgent,
		nullableJSON(event.Details),
	)
	metrics.RecordDBQuery("insert", "security_events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save security event: %w", err)
	}
	return nil
}

// QueryEntries returns entries matching the filter, newest first.
func (s *DuckDBStore) QueryEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conditions, args := entryConditions(&filter)
	query := `
		SELECT id, timestamp, actor_id, actor_type, action, target_type, target_id,
			CAST(changes AS VARCHAR) AS changes, ip_address, user_agent, session_id, severity
		FROM audit_entries` + whereClause(conditions) + orderAndLimit(filter.Limit, filter.Offset)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "audit_entries", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			actorType string
			severity  string
			targetID  sql.NullString
			changes   sql.NullString
			userAgent sql.NullString
			sessionID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &actorType, &e.Action, &e.TargetType,
			&targetID, &changes, &e.IPAddress, &userAgent, &sessionID, &severity); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ActorType = ActorType(actorType)
		e.Severity = Severity(severity)
		e.TargetID = targetID.String
		e.UserAgent = userAgent.String
		e.SessionID = sessionID.String
		if changes.Valid && changes.String != "" {
			e.Changes = json.RawMessage(changes.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

// CountEntries returns the number of entries matching the filter.
func (s *DuckDBStore) CountEntries(ctx context.Context, filter EntryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conditions, args := entryConditions(&filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries"+whereClause(conditions), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// QuerySecurityEvents returns events matching the filter, newest first.
func (s *DuckDBStore) QuerySecurityEvents(ctx context.Context, filter SecurityEventFilter) ([]SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conditions, args := eventConditions(&filter)
	query := `
		SELECT id, timestamp, user_id, event_type, ip_address, user_agent,
			CAST(details AS VARCHAR) AS details
		FROM security_events` + whereClause(conditions) + orderAndLimit(filter.Limit, filter.Offset)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "security_events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	var events []SecurityEvent
	for rows.Next() {
		var (
			ev        SecurityEvent
			userID    sql.NullString
			eventType string
			userAgent sql.NullString
			details   sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &userID, &eventType, &ev.IPAddress, &userAgent, &details); err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		ev.UserID = userID.String
		ev.EventType = SecurityEventType(eventType)
		ev.UserAgent = userAgent.String
		if details.Valid && details.String != "" {
			ev.Details = json.RawMessage(details.String)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security events: %w", err)
	}
	return events, nil
}

// CountSecurityEvents returns the number of events matching the filter.
func (s *DuckDBStore) CountSecurityEvents(ctx context.Context, filter SecurityEventFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conditions, args := eventConditions(&filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_events"+whereClause(conditions), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}
	return count, nil
}

func entryConditions(f *EntryFilter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	conditions, args = appendStringCondition(conditions, args, "actor_id", f.ActorID)
	conditions, args = appendStringCondition(conditions, args, "action", f.Action)
	conditions, args = appendStringCondition(conditions, args, "target_type", f.TargetType)
	if cond := buildSliceCondition("severity", f.Severities, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if len(f.ActionContains) > 0 {
		// contains() avoids LIKE wildcard handling of '_' in needles such as "data_".
		parts := make([]string, len(f.ActionContains))
		for i, sub := range f.ActionContains {
			parts[i] = "contains(action, ?)"
			args = append(args, sub)
		}
		conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
	}
	return appendTimeRange(conditions, args, f.From, f.To)
}

func eventConditions(f *SecurityEventFilter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	conditions, args = appendStringCondition(conditions, args, "user_id", f.UserID)
	conditions, args = appendStringCondition(conditions, args, "ip_address", f.IPAddress)
	if cond := buildSliceCondition("event_type", f.EventTypes, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	return appendTimeRange(conditions, args, f.From, f.To)
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]interface{}) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func appendStringCondition(conditions []string, args []interface{}, column, value string) ([]string, []interface{}) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

func appendTimeRange(conditions []string, args []interface{}, from, to time.Time) ([]string, []interface{}) {
	if !from.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, to.UTC())
	}
	return conditions, args
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func orderAndLimit(limit, offset int) string {
	clause := " ORDER BY timestamp DESC, id DESC"
	if limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", offset)
	}
	return clause
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
