// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package logging

import (
	"fmt"
	"strings"
)

// maxUserAgentLength bounds user agents written to logs.
const maxUserAgentLength = 256

// SanitizeLogValue escapes control characters so caller-supplied strings
// (user agents, actions, reasons) cannot forge or split log lines.
func SanitizeLogValue(s string) string {
	clean := true
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TruncateUserAgent sanitizes and caps a user agent for logging.
func TruncateUserAgent(ua string) string {
	return truncateString(SanitizeLogValue(ua), maxUserAgentLength)
}

// MaskID keeps the first 8 characters of an identifier such as a session or
// refresh token id.
func MaskID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
