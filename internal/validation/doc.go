// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package validation provides struct validation using go-playground/validator v10.

A single validator instance is shared process-wide; it caches struct metadata
and is safe for concurrent use. Field names in errors come from json tags so
that messages line up with request bodies.

# Custom Tags

  - timeframe: one of 1h, 24h, 7d, 30d (security overview)
  - audit_severity: one of low, medium, high (audit ingest)

# Usage

	type revokeRequest struct {
	    UserID string `json:"user_id" validate:"required"`
	    Reason string `json:"reason" validate:"max=128"`
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
	    apiErr := verr.ToAPIError()
	    // apiErr.Code == "VALIDATION_ERROR"
	}

A single failure keeps its own message and reports field, tag and value in
Details. Several failures are joined with "; " and listed under
Details["fields"].
*/
package validation
