// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"

	"github.com/tomtom215/sentinel/internal/monitor"
)

type sweepResponse struct {
	Alerts []*monitor.Alert `json:"alerts"`
	Failed bool             `json:"failed_checks"`
}

// MonitorSweep runs a sweep now and returns the alerts it raised. Failed
// checks do not fail the request; the alerts of the remaining checks are
// still returned and delivered.
func (h *Handler) MonitorSweep(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Security monitor is disabled", nil)
		return
	}

	alerts, err := h.monitor.Sweep(r.Context())
	if err != nil && r.Context().Err() != nil {
		writeDomainError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []*monitor.Alert{}
	}
	respondData(w, r, http.StatusOK, sweepResponse{Alerts: alerts, Failed: err != nil})
}
