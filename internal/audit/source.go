// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"net"
	"net/http"
	"strings"
)

// Headers read by SourceFromRequest.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderSessionID = "X-Session-ID"
)

// SourceFromRequest builds a Source for a user acting through r.
// actorID overrides the X-Actor-ID header when non-empty.
func SourceFromRequest(r *http.Request, actorID string) Source {
	if actorID == "" {
		actorID = r.Header.Get(HeaderActorID)
	}
	return Source{
		ActorID:   actorID,
		ActorType: ActorUser,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
		SessionID: r.Header.Get(HeaderSessionID),
	}
}

// SystemSource is the source of actions taken by the core itself.
func SystemSource(actorID string) Source {
	return Source{
		ActorID:   actorID,
		ActorType: ActorSystem,
		IPAddress: "127.0.0.1",
		UserAgent: "sentinel",
	}
}

// ClientIP extracts the client IP address from the request.
func ClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For is the originating client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
