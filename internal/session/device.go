// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import "strings"

// Device is a coarse description of a user agent.
type Device struct {
	Browser  string `json:"browser"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
}

// String formats the device as "Browser on OS".
func (d Device) String() string {
	return d.Browser + " on " + d.OS
}

// DeviceParser turns a user agent string into a Device.
type DeviceParser interface {
	Parse(userAgent string) Device
}

// DeviceParserFunc adapts a function to DeviceParser.
type DeviceParserFunc func(userAgent string) Device

// Parse implements DeviceParser.
func (f DeviceParserFunc) Parse(userAgent string) Device {
	return f(userAgent)
}

// HeuristicParser is the default substring-based DeviceParser.
var HeuristicParser DeviceParser = DeviceParserFunc(ParseDevice)

// ParseDevice classifies a user agent by substring. The first match wins,
// so more specific tokens are checked first: Edge agents also carry
// "Chrome", Chrome agents carry "Safari", Android agents carry "Linux" and
// iOS agents carry "Mac OS".
func ParseDevice(userAgent string) Device {
	d := Device{Browser: "Unknown", OS: "Unknown", Platform: "Desktop"}

	switch {
	case strings.Contains(userAgent, "Edg"):
		d.Browser = "Edge"
	case strings.Contains(userAgent, "Chrome"), strings.Contains(userAgent, "CriOS"):
		d.Browser = "Chrome"
	case strings.Contains(userAgent, "Firefox"), strings.Contains(userAgent, "FxiOS"):
		d.Browser = "Firefox"
	case strings.Contains(userAgent, "Safari"):
		d.Browser = "Safari"
	}

	switch {
	case strings.Contains(userAgent, "Windows"):
		d.OS = "Windows"
	case strings.Contains(userAgent, "Android"):
		d.OS = "Android"
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"), strings.Contains(userAgent, "iOS"):
		d.OS = "iOS"
	case strings.Contains(userAgent, "Mac"):
		d.OS = "macOS"
	case strings.Contains(userAgent, "Linux"):
		d.OS = "Linux"
	}

	switch {
	case strings.Contains(userAgent, "Tablet"), strings.Contains(userAgent, "iPad"):
		d.Platform = "Tablet"
	case strings.Contains(userAgent, "Mobile"), strings.Contains(userAgent, "Android"), strings.Contains(userAgent, "iPhone"):
		d.Platform = "Mobile"
	}

	return d
}
