// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package middleware provides HTTP middleware for the Sentinel API.

  - RequestID: reuses or generates X-Request-ID and seeds the logging
    context with request and correlation IDs
  - PrometheusMetrics: request totals, durations, in-flight gauge and
    rate-limit rejections, labeled by chi route pattern

Both have the func(http.Handler) http.Handler shape used by chi's r.Use.
The API router installs them ahead of CORS and rate limiting:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
