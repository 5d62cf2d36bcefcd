// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"time"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/monitor"
	"github.com/tomtom215/sentinel/internal/session"
)

// AuditService is the audit logger surface used by the API.
// *audit.Logger satisfies it.
type AuditService interface {
	LogUserAction(ctx context.Context, src audit.Source, action audit.Action)
	LogSecurityEvent(ctx context.Context, eventType audit.SecurityEventType, src audit.Source, details map[string]interface{})
	GetAuditLogs(ctx context.Context, filter audit.EntryFilter) ([]audit.Entry, error)
	CountAuditLogs(ctx context.Context, filter audit.EntryFilter) (int64, error)
	GetSecurityEvents(ctx context.Context, filter audit.SecurityEventFilter) ([]audit.SecurityEvent, error)
	CountSecurityEvents(ctx context.Context, filter audit.SecurityEventFilter) (int64, error)
	GenerateAuditReport(ctx context.Context, from, to time.Time, actorID string) (*audit.Report, error)
	DetectSuspiciousActivity(ctx context.Context, userID string, window time.Duration) (*audit.RiskAssessment, error)
	SecurityOverview(ctx context.Context, timeframe string, sessions audit.SessionCounter) (*audit.SecurityOverview, error)
	Enabled() bool
}

// SessionService is the session manager surface used by the API.
// *session.Manager satisfies it.
type SessionService interface {
	CreateSession(ctx context.Context, userID, refreshTokenID string, device session.DeviceInfo) (*session.Session, error)
	GetUserSessions(ctx context.Context, userID string) ([]session.Summary, error)
	UpdateSessionActivity(ctx context.Context, sessionID, ipAddress string) error
	RevokeSession(ctx context.Context, sessionID, revokedBy, reason string) error
	RevokeAllOtherSessions(ctx context.Context, userID, currentSessionID, ipAddress, userAgent string) (int, error)
	IsSessionValid(ctx context.Context, sessionID string) (bool, error)
	GetSessionAnalytics(ctx context.Context, userID string, days int) (*session.Analytics, error)
	DetectConcurrentSessions(ctx context.Context, userID string) (*session.ConcurrentReport, error)
	CountActiveSessions(ctx context.Context) (int, error)
}

// Sweeper runs a monitor sweep on demand. *monitor.Monitor satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context) ([]*monitor.Alert, error)
}

// Handler serves the telemetry API.
//
// Handler methods are split across files by surface:
//   - handlers_audit.go: ingest, queries, report, risk, overview
//   - handlers_session.go: session lifecycle and analytics
//   - handlers_monitor.go: on-demand sweep
//   - handlers_health.go: liveness
type Handler struct {
	audit     AuditService
	sessions  SessionService
	monitor   Sweeper
	cache     *cache.Cache
	startTime time.Time
}

// NewHandler returns a handler over the three telemetry components.
// monitor may be nil when the monitor is disabled; the sweep endpoint then
// answers 503.
func NewHandler(auditSvc AuditService, sessions SessionService, sweeper Sweeper) *Handler {
	return &Handler{
		audit:     auditSvc,
		sessions:  sessions,
		monitor:   sweeper,
		startTime: time.Now(),
	}
}

// WithQueryCache caches security overviews and closed-range audit reports
// in c. Without it every request queries the store.
func (h *Handler) WithQueryCache(c *cache.Cache) *Handler {
	h.cache = c
	return h
}

// cached returns a value stored under key, or computes and stores it.
// Errors are never cached.
func (h *Handler) cached(key string, compute func() (interface{}, error)) (interface{}, error) {
	if h.cache == nil {
		return compute()
	}
	if v, ok := h.cache.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	h.cache.Set(key, v)
	return v, nil
}
