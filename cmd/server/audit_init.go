// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/database"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/wal"
)

// schemaTimeout bounds audit table creation at startup.
const schemaTimeout = 30 * time.Second

// initAuditStore opens the configured audit store. The returned func
// releases it and is safe to call when the store needs no cleanup.
func initAuditStore(ctx context.Context, cfg *config.Config) (audit.Store, func(), error) {
	if cfg.Audit.Store != "duckdb" {
		logging.Info().Int("capacity", cfg.Audit.MemoryCapacity).Msg("Audit store: memory")
		return audit.NewMemoryStore(cfg.Audit.MemoryCapacity), func() {}, nil
	}

	db, err := database.Open(cfg.DatabaseConfig())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit database")
		}
	}

	store := audit.NewDuckDBStore(db.Conn())
	schemaCtx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()
	if err := store.CreateTables(schemaCtx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("create audit tables: %w", err)
	}

	logging.Info().Str("path", cfg.Audit.DuckDBPath).Msg("Audit store: duckdb")
	return store, closeDB, nil
}

// initAuditWAL opens the audit spool when enabled. A nil WAL means
// records the store rejects are only logged.
func initAuditWAL(cfg *config.Config) (*wal.WAL, func(), error) {
	if !cfg.Audit.WALEnabled {
		return nil, func() {}, nil
	}
	w, err := wal.Open(cfg.WALConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open audit WAL: %w", err)
	}
	stats := w.Stats()
	logging.Info().
		Str("path", cfg.Audit.WALPath).
		Int64("pending", stats.PendingCount).
		Msg("Audit WAL opened")
	return w, func() {
		if err := w.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit WAL")
		}
	}, nil
}
