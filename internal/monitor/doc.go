// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package monitor sweeps the audit trail for attack patterns.
//
// Each Sweep runs four checks concurrently: account lockout bursts, brute
// force attempts grouped by source IP, admin activity volume and data
// export volume. Alerts go to an AlertSink; LogSink, WebhookSink (rate
// limited, circuit broken) and NATSSink are provided and MultiSink fans out
// to several of them.
package monitor
