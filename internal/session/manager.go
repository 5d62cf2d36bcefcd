// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// Audit action names written by the manager.
const (
	ActionSessionCreated = "session_created"
	ActionSessionRevoked = "session_revoked"
	ActionBulkRevocation = "bulk_session_revocation"
	targetTypeSession    = "session"
)

// Validity check outcomes used as metric labels.
const (
	validityValid   = "valid"
	validityMissing = "missing"
	validityRevoked = "revoked"
	validityExpired = "expired"
)

// SystemActor is recorded as revokedBy for revocations the manager performs itself.
const SystemActor = "system"

// Auditor receives the manager's audit trail. *audit.Logger satisfies it.
type Auditor interface {
	LogUserAction(ctx context.Context, src audit.Source, action audit.Action)
	LogSecurityEvent(ctx context.Context, eventType audit.SecurityEventType, src audit.Source, details map[string]interface{})
}

// ConcurrencyPolicy holds the thresholds for DetectConcurrentSessions.
type ConcurrencyPolicy struct {
	MaxActiveSessions int           `json:"max_active_sessions"`
	MaxDistinctIPs    int           `json:"max_distinct_ips"`
	RecentWindow      time.Duration `json:"recent_window"`
	MaxRecentSessions int           `json:"max_recent_sessions"`
}

// DefaultConcurrencyPolicy returns the standard concurrency thresholds.
func DefaultConcurrencyPolicy() ConcurrencyPolicy {
	return ConcurrencyPolicy{
		MaxActiveSessions: 5,
		MaxDistinctIPs:    3,
		RecentWindow:      time.Hour,
		MaxRecentSessions: 3,
	}
}

// Config configures the session manager.
type Config struct {
	// TTL is the lifetime of a new session.
	TTL time.Duration `json:"ttl"`

	// Concurrency holds the concurrent-session detection thresholds.
	Concurrency ConcurrencyPolicy `json:"concurrency"`

	// AnalyticsDays is the default analytics window.
	AnalyticsDays int `json:"analytics_days"`

	// LockStripes is the number of per-session lock stripes.
	LockStripes int `json:"lock_stripes"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TTL:           30 * 24 * time.Hour,
		Concurrency:   DefaultConcurrencyPolicy(),
		AnalyticsDays: 30,
		LockStripes:   DefaultLockStripes,
	}
}

// Manager owns the session lifecycle: creation, activity, revocation,
// validity checks and per-user analytics.
type Manager struct {
	store   Store
	auditor Auditor
	config  *Config
	sink    logging.Sink
	revoker CredentialRevoker
	parser  DeviceParser
	locks   *keyLock
	now     func() time.Time
}

// NewManager creates a session manager. A nil sink reports through the
// global zerolog logger.
func NewManager(store Store, auditor Auditor, config *Config, sink logging.Sink) *Manager {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.Concurrency == (ConcurrencyPolicy{}) {
		config.Concurrency = defaults.Concurrency
	}
	if config.AnalyticsDays <= 0 {
		config.AnalyticsDays = defaults.AnalyticsDays
	}
	if sink == nil {
		sink = logging.NewZerologSink("session")
	}

	return &Manager{
		store:   store,
		auditor: auditor,
		config:  config,
		sink:    sink,
		parser:  HeuristicParser,
		locks:   newKeyLock(config.LockStripes),
		now:     time.Now,
	}
}

// SetCredentialRevoker sets the collaborator that invalidates refresh tokens.
func (m *Manager) SetCredentialRevoker(r CredentialRevoker) {
	m.revoker = r
}

// SetDeviceParser replaces the user-agent parser.
func (m *Manager) SetDeviceParser(p DeviceParser) {
	if p != nil {
		m.parser = p
	}
}

// CreateSession starts a new session for userID bound to refreshTokenID.
func (m *Manager) CreateSession(ctx context.Context, userID, refreshTokenID string, device DeviceInfo) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	now := m.now().UTC()
	s := &Session{
		ID:                uuid.New().String(),
		UserID:            userID,
		RefreshTokenID:    refreshTokenID,
		DeviceFingerprint: device.Fingerprint,
		IPAddress:         device.IPAddress,
		UserAgent:         device.UserAgent,
		CreatedAt:         now,
		LastActiveAt:      now,
		ExpiresAt:         now.Add(m.config.TTL),
	}

	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	metrics.SessionsCreated.Inc()

	parsed := m.parser.Parse(device.UserAgent)
	m.audit(ctx, audit.Source{
		ActorID:   userID,
		ActorType: audit.ActorUser,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		SessionID: s.ID,
	}, audit.Action{
		Name:       ActionSessionCreated,
		TargetType: targetTypeSession,
		TargetID:   s.ID,
		Changes: map[string]interface{}{
			"device_fingerprint": device.Fingerprint,
			"platform":           parsed.Platform,
			"browser":            parsed.Browser,
		},
		Severity: audit.SeverityLow,
	})

	logging.Ctx(ctx).Debug().
		Str("session_id", s.ID).
		Str("user_id", logging.MaskID(userID)).
		Msg("Session created")

	return s, nil
}

// GetUserSessions returns the user's active sessions, most recently used first.
func (m *Manager) GetUserSessions(ctx context.Context, userID string) ([]Summary, error) {
	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := m.now()
	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		if !s.IsValid(now) {
			continue
		}
		summaries = append(summaries, Summary{
			ID:           s.ID,
			Device:       m.parser.Parse(s.UserAgent),
			IPAddress:    s.IPAddress,
			Location:     s.IPAddress,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].LastActiveAt.Equal(summaries[j].LastActiveAt) {
			return summaries[i].LastActiveAt.After(summaries[j].LastActiveAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// UpdateSessionActivity records a heartbeat. A changed IP address is
// stored and reported as suspicious activity. A heartbeat on an expired
// session revokes it and returns ErrSessionRevoked.
func (m *Manager) UpdateSessionActivity(ctx context.Context, sessionID, ipAddress string) error {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	var oldIP string
	var expired bool
	updated, err := m.store.Update(ctx, sessionID, func(s *Session) error {
		expired = false
		if s.IsRevoked() {
			return ErrSessionRevoked
		}
		if now := m.now(); s.IsExpired(now) {
			expired = s.revoke(now, SystemActor, ReasonSessionExpired)
			return nil
		}
		oldIP = s.IPAddress
		s.LastActiveAt = m.now().UTC()
		if ipAddress != "" {
			s.IPAddress = ipAddress
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}
	if expired {
		metrics.RecordSessionValidity(validityExpired)
		m.revoked(ctx, updated, SystemActor, ReasonSessionExpired)
		return fmt.Errorf("update session activity: %w", ErrSessionRevoked)
	}

	if ipAddress != "" && ipAddress != oldIP {
		metrics.SessionIPChanges.Inc()
		m.securityEvent(ctx, audit.EventSuspiciousActivity, audit.Source{
			ActorID:   updated.UserID,
			ActorType: audit.ActorUser,
			IPAddress: ipAddress,
			UserAgent: updated.UserAgent,
			SessionID: sessionID,
		}, map[string]interface{}{
			"type":   "ip_address_change",
			"old_ip": oldIP,
			"new_ip": ipAddress,
		})
	}
	return nil
}

// RevokeSession revokes a session and its refresh token. An empty reason
// means user_logout. Revoking a revoked session succeeds without effect.
func (m *Manager) RevokeSession(ctx context.Context, sessionID, revokedBy, reason string) error {
	if reason == "" {
		reason = ReasonUserLogout
	}
	_, err := m.revoke(ctx, sessionID, revokedBy, reason)
	return err
}

// revoke performs one revocation and reports whether it changed state.
func (m *Manager) revoke(ctx context.Context, sessionID, revokedBy, reason string) (bool, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	var changed bool
	s, err := m.store.Update(ctx, sessionID, func(s *Session) error {
		changed = s.revoke(m.now(), revokedBy, reason)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	if !changed {
		return false, nil
	}
	m.revoked(ctx, s, revokedBy, reason)
	return true, nil
}

// revoked runs the side effects of a revocation already stored.
func (m *Manager) revoked(ctx context.Context, s *Session, revokedBy, reason string) {
	metrics.RecordSessionRevoked(metricReason(reason))
	m.revokeCredential(ctx, s)

	m.audit(ctx, audit.Source{
		ActorID:   revokedBy,
		ActorType: actorTypeFor(revokedBy),
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		SessionID: s.ID,
	}, audit.Action{
		Name:       ActionSessionRevoked,
		TargetType: targetTypeSession,
		TargetID:   s.ID,
		Changes:    map[string]interface{}{"reason": reason},
		Severity:   audit.SeverityMedium,
	})
}

func (m *Manager) revokeCredential(ctx context.Context, s *Session) {
	if m.revoker == nil || s.RefreshTokenID == "" {
		return
	}
	if err := m.revoker.RevokeRefreshToken(ctx, s.RefreshTokenID); err != nil {
		m.sink.LogStructured(logging.LevelError, "Failed to revoke refresh token", map[string]interface{}{
			"error":      err,
			"session_id": s.ID,
		})
	}
}

// RevokeAllOtherSessions revokes every live session of the user except
// currentSessionID and returns how many were revoked.
func (m *Manager) RevokeAllOtherSessions(ctx context.Context, userID, currentSessionID, ipAddress, userAgent string) (int, error) {
	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	var revoked int
	var errs []error
	for _, s := range sessions {
		if s.ID == currentSessionID || s.IsRevoked() {
			continue
		}
		changed, err := m.revoke(ctx, s.ID, userID, ReasonRevokeOthers)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			revoked++
		}
	}

	if revoked > 0 {
		m.audit(ctx, audit.Source{
			ActorID:   userID,
			ActorType: audit.ActorUser,
			IPAddress: ipAddress,
			UserAgent: userAgent,
			SessionID: currentSessionID,
		}, audit.Action{
			Name:       ActionBulkRevocation,
			TargetType: targetTypeSession,
			Changes:    map[string]interface{}{"revoked_count": revoked},
			Severity:   audit.SeverityMedium,
		})
	}

	return revoked, errors.Join(errs...)
}

// IsSessionValid reports whether the session exists, is unrevoked and is
// unexpired. Expired sessions are revoked on the way out.
func (m *Manager) IsSessionValid(ctx context.Context, sessionID string) (bool, error) {
	s, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		metrics.RecordSessionValidity(validityMissing)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get session: %w", err)
	}

	switch {
	case s.IsRevoked():
		metrics.RecordSessionValidity(validityRevoked)
		return false, nil
	case s.IsExpired(m.now()):
		metrics.RecordSessionValidity(validityExpired)
		if _, err := m.revoke(ctx, sessionID, SystemActor, ReasonSessionExpired); err != nil {
			return false, err
		}
		return false, nil
	}

	metrics.RecordSessionValidity(validityValid)
	return true, nil
}

// GetSession returns a session by id.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return m.store.Get(ctx, sessionID)
}

// GetSessionByRefreshToken returns the session bound to a refresh token.
func (m *Manager) GetSessionByRefreshToken(ctx context.Context, refreshTokenID string) (*Session, error) {
	return m.store.GetByRefreshToken(ctx, refreshTokenID)
}

// CleanupExpiredSessions revokes every unrevoked session past its expiry
// and returns how many were revoked.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int, error) {
	sessions, err := m.store.List(ctx)
	if err != nil {
		metrics.RecordSessionCleanup(err)
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	now := m.now()
	var revoked int
	var errs []error
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if s.IsRevoked() || !s.IsExpired(now) {
			continue
		}
		changed, err := m.revoke(ctx, s.ID, SystemActor, ReasonSessionExpired)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			revoked++
		}
	}

	err = errors.Join(errs...)
	metrics.RecordSessionCleanup(err)
	return revoked, err
}

// CountActiveSessions returns the number of unrevoked, unexpired sessions.
func (m *Manager) CountActiveSessions(ctx context.Context) (int, error) {
	sessions, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	now := m.now()
	var n int
	for _, s := range sessions {
		if s.IsValid(now) {
			n++
		}
	}
	return n, nil
}

func (m *Manager) audit(ctx context.Context, src audit.Source, action audit.Action) {
	if m.auditor != nil {
		m.auditor.LogUserAction(ctx, src, action)
	}
}

func (m *Manager) securityEvent(ctx context.Context, eventType audit.SecurityEventType, src audit.Source, details map[string]interface{}) {
	if m.auditor != nil {
		m.auditor.LogSecurityEvent(ctx, eventType, src, details)
	}
}

func actorTypeFor(actorID string) audit.ActorType {
	if actorID == SystemActor {
		return audit.ActorSystem
	}
	return audit.ActorUser
}

// metricReason bounds the revocation reason label set.
func metricReason(reason string) string {
	switch reason {
	case ReasonUserLogout, ReasonSessionExpired, ReasonRevokeOthers:
		return reason
	}
	return "other"
}
