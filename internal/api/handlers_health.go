// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
)

// healthCheckTimeout bounds the session store check.
const healthCheckTimeout = 2 * time.Second

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	AuditEnabled   bool    `json:"audit_enabled"`
	MonitorEnabled bool    `json:"monitor_enabled"`
	SessionStoreOK bool    `json:"session_store_ok"`
	ActiveSessions int     `json:"active_sessions"`
}

// Health reports liveness and whether the session store answers. A store
// failure degrades the status and returns 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	health := HealthStatus{
		Status:         "healthy",
		UptimeSeconds:  time.Since(h.startTime).Seconds(),
		AuditEnabled:   h.audit.Enabled(),
		MonitorEnabled: h.monitor != nil,
	}

	n, err := h.sessions.CountActiveSessions(ctx)
	if err != nil {
		health.Status = "degraded"
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: session store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, &Response{
			Status:   StatusError,
			Data:     health,
			Metadata: newMetadata(r),
			Error:    &APIError{Code: CodeUnavailable, Message: "Session store unavailable"},
		})
		return
	}
	health.SessionStoreOK = true
	health.ActiveSessions = n

	respondData(w, r, http.StatusOK, health)
}
