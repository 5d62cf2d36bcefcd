// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package logging provides centralized zerolog-based logging for Sentinel.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Msg("Server starting")
//	logging.Error().Err(err).Msg("Operation failed")
//	logging.Ctx(ctx).Info().Str("user_id", userID).Msg("Session created")
//
// # Diagnostic Sink
//
// Telemetry writes are best effort: a failed audit write must never surface
// to the caller. Components that swallow such failures report them to a
// [Sink] instead:
//
//	sink := logging.NewZerologSink("audit")
//	sink.LogStructured(logging.LevelError, "audit write failed", map[string]interface{}{
//	    "action": entry.Action,
//	    "error":  err,
//	})
//
// Tests inject a [MemorySink] and assert on the captured records.
//
// # slog Bridge
//
// [NewSlogLogger] returns an *slog.Logger that writes through zerolog. The
// supervisor tree hands it to sutureslog so service restarts land in the same
// JSON stream as everything else.
//
// # Conventions
//
// Always terminate log chains with .Msg() or .Send(), and prefer structured
// fields over formatted messages:
//
//	logging.Info().Str("ip", ip).Int("failed_attempts", n).Msg("Brute force suspected")
package logging
