// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package services provides suture.Service wrappers for Sentinel components.

Each wrapper adapts a component's lifecycle to suture's context-aware Serve
pattern and implements fmt.Stringer so supervisor events name the service.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server; ListenAndServe in a goroutine, Shutdown on cancel
  - http.ErrServerClosed is treated as a clean stop

Audit Drain (AuditDrainService):
  - Idles until shutdown, then closes the audit logger so the buffer drains

Periodic jobs (PeriodicService):
  - Ticker loop with an optional per-run timeout and a run at startup
  - NewSessionCleanupService: revokes expired sessions
  - NewMonitorSweepService: runs the security monitor checks

Task errors in periodic jobs are logged and the loop continues; only a
panic or a returned Serve error makes the supervisor restart a service.
*/
package services
