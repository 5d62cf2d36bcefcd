// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package database opens the DuckDB connection that backs the audit store.
//
// It owns connection concerns only: DSN tuning, pool sizing, directory
// creation and a checkpoint on close. Schema lives with the store that uses
// it (audit.DuckDBStore.CreateTables).
//
//	db, err := database.Open(database.Config{Path: "/var/lib/sentinel/audit.duckdb"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	store := audit.NewDuckDBStore(db.Conn())
//	if err := store.CreateTables(ctx); err != nil {
//	    return err
//	}
package database
