// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package session tracks authenticated sessions per user and device.

A Manager creates sessions, records heartbeats, revokes sessions (singly,
in bulk, or lazily on expiry) and answers per-user questions: which
sessions are live, whether the pattern of live sessions looks suspicious,
and how sessions were used over a trailing window.

# Storage

Sessions are stored through the Store interface:

  - MemoryStore: process-local, for tests and single-node development
  - BadgerStore: embedded BadgerDB with user and refresh-token indexes
  - RedisStore: shared Redis state for multi-instance deployments

Every backend implements Update as an atomic read-modify-write and
enforces the same rules: identity fields never change, revocation is
permanent and lastActiveAt never moves backwards. The Manager also holds a
striped per-session lock so a revocation and a heartbeat for the same
session never interleave inside one process.

# Audit Trail

The Manager writes session_created, session_revoked and
bulk_session_revocation audit entries, and a suspicious_activity security
event when a heartbeat arrives from a new IP address. Any type with
LogUserAction and LogSecurityEvent can receive them; *audit.Logger is the
production implementation.

# Example

	store := session.NewMemoryStore()
	mgr := session.NewManager(store, auditLogger, session.DefaultConfig(), nil)
	mgr.SetCredentialRevoker(tokenService)

	s, err := mgr.CreateSession(ctx, userID, refreshTokenID, session.DeviceInfo{
	    IPAddress: "203.0.113.7",
	    UserAgent: r.UserAgent(),
	})
*/
package session
