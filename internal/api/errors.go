// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/session"
)

// ErrInvalidTime is returned for an unparseable from or to parameter.
var ErrInvalidTime = errors.New("invalid time: expected RFC 3339")

// writeDomainError maps an error from the telemetry core to a response.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Session not found", nil)
	case errors.Is(err, session.ErrSessionRevoked),
		errors.Is(err, session.ErrRevocationPermanent):
		respondError(w, r, http.StatusConflict, CodeConflict, "Session has been revoked", nil)
	case errors.Is(err, session.ErrSessionExists),
		errors.Is(err, session.ErrRefreshTokenInUse):
		respondError(w, r, http.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, audit.ErrInvalidTimeframe),
		errors.Is(err, audit.ErrInvalidTimeRange),
		errors.Is(err, ErrInvalidTime):
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
	case errors.Is(err, audit.ErrNoStore):
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Audit store not configured", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, CodeUnavailable, "Request timed out", err)
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "Internal server error", err)
	}
}
