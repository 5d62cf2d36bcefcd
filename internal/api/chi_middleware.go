// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/middleware"
)

// MiddlewareConfig configures CORS and rate limiting.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables
	// rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// IngestRateLimit bounds the ingest endpoints separately; collaborating
	// services report in bursts. Zero uses RateLimitRequests.
	IngestRateLimit int
}

// DefaultMiddlewareConfig returns a restrictive default: no CORS origins.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
		IngestRateLimit:    3000,
	}
}

// Middleware builds the Chi middleware chain from configuration.
type Middleware struct {
	config MiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewMiddleware returns middleware factories for config.
func NewMiddleware(config MiddlewareConfig) *Middleware {
	return &Middleware{
		config: config,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: config.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{
				"Content-Type",
				middleware.RequestIDHeader,
				audit.HeaderActorID,
				audit.HeaderSessionID,
			},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         config.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit limits requests per client IP.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return m.limit(m.config.RateLimitRequests)
}

// RateLimitIngest limits the ingest endpoints per client IP.
func (m *Middleware) RateLimitIngest() func(http.Handler) http.Handler {
	n := m.config.IngestRateLimit
	if n <= 0 {
		n = m.config.RateLimitRequests
	}
	return m.limit(n)
}

func (m *Middleware) limit(requests int) func(http.Handler) http.Handler {
	if requests <= 0 || m.config.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

// rateLimited answers 429 in the standard envelope.
func rateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusTooManyRequests, CodeRateLimited, "Too many requests", nil)
}
