// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/sentinel/internal/middleware"
)

// Router wires handlers and middleware into a Chi router.
type Router struct {
	handler     *Handler
	middleware  *Middleware
	alertStream http.Handler
}

// NewRouter returns a router. A nil mw uses DefaultMiddlewareConfig.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(DefaultMiddlewareConfig())
	}
	return &Router{handler: handler, middleware: mw}
}

// WithAlertStream mounts stream at GET /api/v1/alerts/stream. Without it the
// route is not registered.
func (router *Router) WithAlertStream(stream http.Handler) *Router {
	router.alertStream = stream
	return router
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.middleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	h := router.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/audit", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(router.middleware.RateLimitIngest())
				r.Post("/actions", h.IngestAction)
				r.Post("/security-events", h.IngestSecurityEvent)
			})
			r.Group(func(r chi.Router) {
				r.Use(router.middleware.RateLimit())
				r.Get("/logs", h.AuditLogs)
				r.Get("/security-events", h.SecurityEvents)
				r.Get("/report", h.AuditReport)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(router.middleware.RateLimit())

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/risk", h.UserRisk)
				r.Get("/sessions", h.UserSessions)
				r.Get("/sessions/analytics", h.SessionAnalytics)
				r.Get("/sessions/concurrent", h.ConcurrentSessions)
				r.Post("/sessions/revoke-others", h.RevokeOtherSessions)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.CreateSession)
				r.Get("/{id}/valid", h.SessionValid)
				r.Post("/{id}/activity", h.SessionActivity)
				r.Post("/{id}/revoke", h.RevokeSession)
			})

			r.Get("/security/overview", h.SecurityOverview)
			r.Post("/monitor/sweep", h.MonitorSweep)

			if router.alertStream != nil {
				r.Method(http.MethodGet, "/alerts/stream", router.alertStream)
			}
		})
	})

	return r
}
