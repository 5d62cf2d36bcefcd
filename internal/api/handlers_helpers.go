// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/validation"
)

// Pagination bounds for list endpoints.
const (
	defaultLimit = 100
	maxLimit     = 1000
)

// maxBodyBytes caps request bodies. Audit changes and event details are
// small JSON documents.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v and validates it. On failure it has
// already written the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	return decodeBody(w, r, v) && validateRequest(w, r, v)
}

// decodeBody reads a JSON body into v without validating it, for handlers
// that fill defaults first. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return true
		case errors.As(err, &maxErr):
			respondError(w, r, http.StatusRequestEntityTooLarge, CodeBadRequest, "Request body too large", nil)
		default:
			respondError(w, r, http.StatusBadRequest, CodeBadRequest, "Invalid JSON body", nil)
		}
		return false
	}
	return true
}

// validateRequest runs struct validation and writes a 400 on failure.
func validateRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return true
	}
	apiErr := verr.ToAPIError()
	out := &APIError{Code: apiErr.Code, Message: apiErr.Message}
	if len(apiErr.Details) > 0 {
		out.Details = apiErr.Details
	}
	respondAPIError(w, r, http.StatusBadRequest, out)
	return false
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// pagination reads limit and offset, clamped to sane bounds.
func pagination(r *http.Request) (limit, offset int) {
	limit = getIntParam(r, "limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseTimeParam parses an RFC 3339 query parameter. Missing means zero.
func parseTimeParam(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTime, key)
	}
	return t.UTC(), nil
}

// parseTimeRange reads the half-open [from, to) range from the query.
func parseTimeRange(r *http.Request) (from, to time.Time, err error) {
	if from, err = parseTimeParam(r, "from"); err != nil {
		return
	}
	to, err = parseTimeParam(r, "to")
	return
}

// parseCommaSeparated splits a comma-separated query value.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// listResponse is the data payload of paginated endpoints.
type listResponse struct {
	Items  interface{} `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
