// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package api exposes the telemetry core over HTTP using the Chi router.

The API is a thin ingest and reporting surface for collaborating services
(an authentication service, an admin dashboard). It has no business logic
of its own: every handler decodes and validates a request, calls the audit
logger, session manager or monitor, and writes the result in the standard
envelope.

# Routes

All routes live under /api/v1 except /health and /metrics:

	POST /audit/actions                        record a user action (202)
	POST /audit/security-events                record a security event (202)
	GET  /audit/logs                           query audit entries
	GET  /audit/security-events                query security events
	GET  /audit/report                         aggregate report over [from, to)
	GET  /users/{userID}/risk                  suspicious activity assessment
	GET  /users/{userID}/sessions              active sessions
	GET  /users/{userID}/sessions/analytics    session analytics
	GET  /users/{userID}/sessions/concurrent   concurrent session report
	POST /users/{userID}/sessions/revoke-others
	POST /sessions                             create a session (201)
	GET  /sessions/{id}/valid                  validity check
	POST /sessions/{id}/activity               heartbeat
	POST /sessions/{id}/revoke                 revoke
	GET  /security/overview                    security dashboard
	POST /monitor/sweep                        run a monitor sweep now
	GET  /alerts/stream                        websocket alert stream, when mounted

# Response Envelope

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "request_id": "..."},
	  "error": null
	}

Errors set status to "error" and carry {code, message, details}. Domain
errors map to HTTP status codes in writeDomainError: a missing session is
404, a revoked session 409, an invalid timeframe or time range 400.

# Middleware

The global chain is RequestID, RealIP, Recoverer, PrometheusMetrics and
CORS. The /api/v1 group is rate limited per client IP with httprate.
*/
package api
