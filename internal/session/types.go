// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"errors"
	"time"
)

// Session errors.
var (
	// ErrSessionNotFound is returned when no session has the requested id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned when activity is reported on a revoked session.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrSessionExists is returned when creating a session whose id is taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrRefreshTokenInUse is returned when a refresh token already backs a live session.
	ErrRefreshTokenInUse = errors.New("refresh token already bound to a live session")

	// ErrRevocationPermanent is returned when an update would clear or move revokedAt.
	ErrRevocationPermanent = errors.New("session revocation cannot be undone")

	// ErrImmutableField is returned when an update changes a session's identity fields.
	ErrImmutableField = errors.New("session id, user and refresh token are immutable")

	// ErrInvalidInput is returned when a required argument is empty.
	ErrInvalidInput = errors.New("invalid session input")

	// ErrTooManyConflicts is returned when an optimistic update keeps losing races.
	ErrTooManyConflicts = errors.New("session update aborted after repeated conflicts")
)

// Revocation reasons recorded by the manager.
const (
	ReasonUserLogout     = "user_logout"
	ReasonSessionExpired = "session_expired"
	ReasonRevokeOthers   = "revoke_all_other_sessions"
)

// Session is one authenticated login on one device.
type Session struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	RefreshTokenID    string     `json:"refresh_token_id"`
	DeviceFingerprint string     `json:"device_fingerprint"`
	IPAddress         string     `json:"ip_address"`
	UserAgent         string     `json:"user_agent"`
	CreatedAt         time.Time  `json:"created_at"`
	LastActiveAt      time.Time  `json:"last_active_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	RevokedBy         string     `json:"revoked_by,omitempty"`
	RevokeReason      string     `json:"revoke_reason,omitempty"`
}

// IsRevoked reports whether the session has been revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid reports whether the session is unrevoked and unexpired at now.
func (s *Session) IsValid(now time.Time) bool {
	return !s.IsRevoked() && !s.IsExpired(now)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

// revoke marks the session revoked. It is a no-op on revoked sessions.
func (s *Session) revoke(at time.Time, by, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	at = at.UTC()
	s.RevokedAt = &at
	s.RevokedBy = by
	s.RevokeReason = reason
	return true
}

// checkTransition enforces the session invariants on an update. It clamps
// lastActiveAt so it never moves backwards.
func checkTransition(old, updated *Session) error {
	if updated.ID != old.ID || updated.UserID != old.UserID || updated.RefreshTokenID != old.RefreshTokenID {
		return ErrImmutableField
	}
	if old.RevokedAt != nil && (updated.RevokedAt == nil || !updated.RevokedAt.Equal(*old.RevokedAt)) {
		return ErrRevocationPermanent
	}
	if updated.LastActiveAt.Before(old.LastActiveAt) {
		updated.LastActiveAt = old.LastActiveAt
	}
	return nil
}

// UpdateFunc mutates a session inside an atomic read-modify-write. Stores
// with optimistic concurrency may call it more than once, so it must not
// have side effects. Returning an error aborts the update.
type UpdateFunc func(s *Session) error

// Store persists sessions. Sessions are never physically deleted.
type Store interface {
	// Create stores a new session and its user and refresh-token indexes.
	Create(ctx context.Context, s *Session) error
	// Get returns the session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// GetByRefreshToken returns the session bound to the refresh token.
	GetByRefreshToken(ctx context.Context, refreshTokenID string) (*Session, error)
	// ListByUser returns every session of the user, revoked ones included.
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	// List returns every session.
	List(ctx context.Context) ([]*Session, error)
	// Update atomically applies fn to the stored session and returns the result.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error)
}

// CredentialRevoker invalidates refresh tokens held by the authentication
// service when their session is revoked.
type CredentialRevoker interface {
	RevokeRefreshToken(ctx context.Context, refreshTokenID string) error
}

// DeviceInfo describes the device a session is created from.
type DeviceInfo struct {
	Fingerprint string `json:"device_fingerprint" validate:"max=512"`
	IPAddress   string `json:"ip_address" validate:"required,ip"`
	UserAgent   string `json:"user_agent" validate:"max=1024"`
}

// Summary is the user-facing view of an active session.
type Summary struct {
	ID           string    `json:"id"`
	Device       Device    `json:"device"`
	IPAddress    string    `json:"ip_address"`
	Location     string    `json:"location"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Current      bool      `json:"current"`
}

// MarkCurrent flags the summary whose id matches the caller's session.
func MarkCurrent(summaries []Summary, currentSessionID string) {
	for i := range summaries {
		summaries[i].Current = summaries[i].ID == currentSessionID
	}
}
