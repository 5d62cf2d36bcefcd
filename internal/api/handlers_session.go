// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/session"
)

// createSessionRequest is the body of POST /sessions. An empty device IP
// is taken from the request.
type createSessionRequest struct {
	UserID         string             `json:"user_id" validate:"required,max=128"`
	RefreshTokenID string             `json:"refresh_token_id" validate:"max=256"`
	Device         session.DeviceInfo `json:"device"`
}

type activityRequest struct {
	IPAddress string `json:"ip_address" validate:"omitempty,ip"`
}

// revokeRequest is the body of POST /sessions/{id}/revoke. revoked_by
// falls back to the X-Actor-ID header.
type revokeRequest struct {
	RevokedBy string `json:"revoked_by" validate:"required,max=128"`
	Reason    string `json:"reason" validate:"max=64"`
}

// revokeOthersRequest is the body of POST /users/{userID}/sessions/revoke-others.
// current_session_id falls back to the X-Session-ID header.
type revokeOthersRequest struct {
	CurrentSessionID string `json:"current_session_id" validate:"required,max=128"`
}

type validityResponse struct {
	SessionID string `json:"session_id"`
	Valid     bool   `json:"valid"`
}

type revokedCountResponse struct {
	Revoked int `json:"revoked"`
}

// CreateSession starts a session for a freshly authenticated user.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Device.IPAddress == "" {
		req.Device.IPAddress = audit.ClientIP(r)
	}
	if req.Device.UserAgent == "" {
		req.Device.UserAgent = r.UserAgent()
	}
	if !validateRequest(w, r, &req) {
		return
	}

	s, err := h.sessions.CreateSession(r.Context(), req.UserID, req.RefreshTokenID, req.Device)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusCreated, s)
}

// SessionValid reports whether a session may still be used. A missing
// session is reported as invalid, not as 404.
func (h *Handler) SessionValid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := h.sessions.IsSessionValid(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, validityResponse{SessionID: id, Valid: valid})
}

// SessionActivity records a heartbeat. An empty body uses the client IP.
func (h *Handler) SessionActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = audit.ClientIP(r)
	}

	if err := h.sessions.UpdateSessionActivity(r.Context(), chi.URLParam(r, "id"), req.IPAddress); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeSession revokes one session. Revoking a revoked session succeeds.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RevokedBy == "" {
		req.RevokedBy = r.Header.Get(audit.HeaderActorID)
	}
	if !validateRequest(w, r, &req) {
		return
	}

	if err := h.sessions.RevokeSession(r.Context(), chi.URLParam(r, "id"), req.RevokedBy, req.Reason); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeOtherSessions signs the user out everywhere except the current session.
func (h *Handler) RevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	var req revokeOthersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentSessionID == "" {
		req.CurrentSessionID = r.Header.Get(audit.HeaderSessionID)
	}
	if !validateRequest(w, r, &req) {
		return
	}

	n, err := h.sessions.RevokeAllOtherSessions(r.Context(), chi.URLParam(r, "userID"),
		req.CurrentSessionID, audit.ClientIP(r), r.UserAgent())
	if err != nil && n == 0 {
		writeDomainError(w, r, err)
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int("revoked", n).Msg("Partial session revocation")
		respondAPIError(w, r, http.StatusInternalServerError, &APIError{
			Code:    CodeInternal,
			Message: "Some sessions could not be revoked",
			Details: revokedCountResponse{Revoked: n},
		})
		return
	}
	respondData(w, r, http.StatusOK, revokedCountResponse{Revoked: n})
}

// UserSessions lists a user's active sessions. The X-Session-ID header,
// when present, marks the caller's own session as current.
func (h *Handler) UserSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sessions.GetUserSessions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if current := r.Header.Get(audit.HeaderSessionID); current != "" {
		session.MarkCurrent(summaries, current)
	}
	if summaries == nil {
		summaries = []session.Summary{}
	}
	respondData(w, r, http.StatusOK, summaries)
}

// SessionAnalytics summarizes a user's sessions over the last days days
// (query parameter days; default from configuration).
func (h *Handler) SessionAnalytics(w http.ResponseWriter, r *http.Request) {
	days := getIntParam(r, "days", 0)
	if days < 0 || days > 365 {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "days must be between 1 and 365", nil)
		return
	}

	analytics, err := h.sessions.GetSessionAnalytics(r.Context(), chi.URLParam(r, "userID"), days)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, analytics)
}

// ConcurrentSessions reports whether a user's live sessions look shared
// or hijacked.
func (h *Handler) ConcurrentSessions(w http.ResponseWriter, r *http.Request) {
	report, err := h.sessions.DetectConcurrentSessions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, report)
}
