// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package audit records security-relevant actions and answers questions
// about them.
//
// # Overview
//
// Two record kinds are kept, both immutable once written:
//   - Entry: an actor (user or system) performed an action on a target,
//     with a severity of low, medium or high.
//   - SecurityEvent: a security-relevant occurrence such as failed_login or
//     account_locked, optionally tied to a user.
//
// The Store interface is append-only. MemoryStore serves tests and
// development; DuckDBStore persists to the audit_entries and
// security_events tables.
//
// # Writing
//
// Logger writes asynchronously through a bounded buffer drained by a single
// goroutine. Callers never block on durability and never see a write error:
// failed saves and buffer overflows are reported to a logging.Sink and
// counted in metrics. Flush waits for everything queued so far; Close
// drains the buffer.
//
//	logger := audit.NewLogger(store, audit.DefaultConfig(), nil)
//	defer logger.Close()
//
//	logger.LogAdminAction(ctx, src, "admin_user_suspend", "user", "u-42", nil)
//	logger.LogFailedLogin(ctx, "", src, "bad_password")
//
// SetSpool attaches a Spool (the audit WAL in production). Records the
// store rejects, or that do not fit in the buffer, are spooled instead of
// dropped; Replay later saves them to the store.
//
// # Reading
//
// GetAuditLogs and GetSecurityEvents filter records newest first.
// GenerateAuditReport aggregates a half-open [from, to) window, so reports
// over adjacent windows add up. DetectSuspiciousActivity scores a user's
// trailing window against a RiskPolicy; ScoreActivity is the pure scoring
// function behind it. SecurityOverview summarizes a 1h, 24h, 7d or 30d
// window for administrators.
package audit
