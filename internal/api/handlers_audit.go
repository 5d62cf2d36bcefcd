// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/cache"
)

// actionRequest is the body of POST /audit/actions.
type actionRequest struct {
	ActorID    string                 `json:"actor_id" validate:"required,max=128"`
	ActorType  string                 `json:"actor_type" validate:"omitempty,oneof=user system"`
	Action     string                 `json:"action" validate:"required,max=128"`
	TargetType string                 `json:"target_type" validate:"max=64"`
	TargetID   string                 `json:"target_id" validate:"max=128"`
	Changes    map[string]interface{} `json:"changes"`
	Severity   string                 `json:"severity" validate:"omitempty,audit_severity"`
	IPAddress  string                 `json:"ip_address" validate:"omitempty,ip"`
	UserAgent  string                 `json:"user_agent" validate:"max=1024"`
	SessionID  string                 `json:"session_id" validate:"max=128"`
}

// securityEventRequest is the body of POST /audit/security-events.
type securityEventRequest struct {
	EventType string                 `json:"event_type" validate:"required,max=64"`
	UserID    string                 `json:"user_id" validate:"max=128"`
	IPAddress string                 `json:"ip_address" validate:"omitempty,ip"`
	UserAgent string                 `json:"user_agent" validate:"max=1024"`
	Details   map[string]interface{} `json:"details"`
}

// acceptedResponse acknowledges an ingest. Writes are asynchronous, so
// there is no record id to return.
type acceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// overviewQuery validates the timeframe of GET /security/overview.
type overviewQuery struct {
	Timeframe string `json:"timeframe" validate:"timeframe"`
}

// IngestAction records a user action reported by a collaborating service.
func (h *Handler) IngestAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	src := audit.Source{
		ActorID:   req.ActorID,
		ActorType: audit.ActorUser,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		SessionID: req.SessionID,
	}
	if req.ActorType != "" {
		src.ActorType = audit.ActorType(req.ActorType)
	}
	if src.IPAddress == "" {
		src.IPAddress = audit.ClientIP(r)
	}

	h.audit.LogUserAction(r.Context(), src, audit.Action{
		Name:       req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Changes:    req.Changes,
		Severity:   audit.Severity(req.Severity),
	})
	respondData(w, r, http.StatusAccepted, acceptedResponse{Accepted: h.audit.Enabled()})
}

// IngestSecurityEvent records a security event reported by a collaborating service.
func (h *Handler) IngestSecurityEvent(w http.ResponseWriter, r *http.Request) {
	var req securityEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	src := audit.Source{
		ActorID:   req.UserID,
		ActorType: audit.ActorUser,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}
	if src.IPAddress == "" {
		src.IPAddress = audit.ClientIP(r)
	}

	h.audit.LogSecurityEvent(r.Context(), audit.SecurityEventType(req.EventType), src, req.Details)
	respondData(w, r, http.StatusAccepted, acceptedResponse{Accepted: h.audit.Enabled()})
}

// AuditLogs lists audit entries, newest first.
//
// Query: actor_id, action, target_type, severity (comma-separated),
// from, to (RFC 3339, half-open), limit, offset.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	limit, offset := pagination(r)

	q := r.URL.Query()
	filter := audit.EntryFilter{
		ActorID:    q.Get("actor_id"),
		Action:     q.Get("action"),
		TargetType: q.Get("target_type"),
		From:       from,
		To:         to,
		Limit:      limit,
		Offset:     offset,
	}
	for _, s := range parseCommaSeparated(q.Get("severity")) {
		sev := audit.Severity(s)
		if !sev.Valid() {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "severity must be one of: low, medium, high", nil)
			return
		}
		filter.Severities = append(filter.Severities, sev)
	}

	entries, err := h.audit.GetAuditLogs(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	total, err := h.audit.CountAuditLogs(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	respondData(w, r, http.StatusOK, listResponse{Items: entries, Total: total, Limit: limit, Offset: offset})
}

// SecurityEvents lists security events, newest first.
//
// Query: user_id, event_type (comma-separated), ip_address, from, to,
// limit, offset.
func (h *Handler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	limit, offset := pagination(r)

	q := r.URL.Query()
	filter := audit.SecurityEventFilter{
		UserID:    q.Get("user_id"),
		IPAddress: q.Get("ip_address"),
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
	}
	for _, t := range parseCommaSeparated(q.Get("event_type")) {
		filter.EventTypes = append(filter.EventTypes, audit.SecurityEventType(t))
	}

	events, err := h.audit.GetSecurityEvents(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	total, err := h.audit.CountSecurityEvents(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if events == nil {
		events = []audit.SecurityEvent{}
	}
	respondData(w, r, http.StatusOK, listResponse{Items: events, Total: total, Limit: limit, Offset: offset})
}

// reportSettleWindow is how long after a range ends its report may still
// change.
const reportSettleWindow = 10 * time.Minute

// AuditReport aggregates activity over [from, to), optionally for one actor.
func (h *Handler) AuditReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	actorID := r.URL.Query().Get("actor_id")
	generate := func() (interface{}, error) {
		return h.audit.GenerateAuditReport(r.Context(), from, to, actorID)
	}

	// Queued and spooled records can still land inside a range that ended
	// recently, so only ranges closed for reportSettleWindow are cached.
	var report interface{}
	if !to.IsZero() && to.Before(time.Now().Add(-reportSettleWindow)) {
		key := cache.GenerateKey("report", []string{from.Format(time.RFC3339Nano), to.Format(time.RFC3339Nano), actorID})
		report, err = h.cached(key, generate)
	} else {
		report, err = generate()
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, report)
}

// UserRisk scores a user's recent activity. The optional window query
// parameter is a Go duration (e.g. 30m, 2h); it defaults to the policy window.
func (h *Handler) UserRisk(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "window must be a positive duration", nil)
			return
		}
		window = d
	}

	assessment, err := h.audit.DetectSuspiciousActivity(r.Context(), chi.URLParam(r, "userID"), window)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, assessment)
}

// SecurityOverview returns the security dashboard for a timeframe
// (1h, 24h, 7d or 30d; default 24h).
func (h *Handler) SecurityOverview(w http.ResponseWriter, r *http.Request) {
	query := overviewQuery{Timeframe: r.URL.Query().Get("timeframe")}
	if query.Timeframe == "" {
		query.Timeframe = "24h"
	}
	if !validateRequest(w, r, &query) {
		return
	}

	overview, err := h.cached(cache.GenerateKey("overview", query.Timeframe), func() (interface{}, error) {
		return h.audit.SecurityOverview(r.Context(), query.Timeframe, h.sessions)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, overview)
}
