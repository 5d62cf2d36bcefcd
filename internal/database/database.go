// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/sentinel/internal/logging"
)

// closeCheckpointTimeout bounds the checkpoint run by Close.
const closeCheckpointTimeout = 30 * time.Second

// Config configures a DuckDB connection.
type Config struct {
	// Path is the database file. Empty or ":memory:" opens an in-memory database.
	Path string

	// Threads is the DuckDB worker count. Zero uses runtime.NumCPU().
	Threads int

	// MaxMemory caps DuckDB memory, e.g. "1GB". Empty leaves the DuckDB default.
	MaxMemory string
}

// DB wraps a DuckDB connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens DuckDB at cfg.Path, creating the parent directory if needed.
// Extension auto-install is disabled so startup never blocks on the network.
func Open(cfg Config) (*DB, error) {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	if dir := filepath.Dir(path); path != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("duckdb", dsn(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configureConnectionPool(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Info().Str("path", displayPath(path)).Msg("DuckDB opened")
	return &DB{conn: conn, path: path}, nil
}

func dsn(path string, cfg Config) string {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	params := url.Values{}
	params.Set("access_mode", "read_write")
	params.Set("threads", strconv.Itoa(threads))
	params.Set("autoinstall_known_extensions", "false")
	params.Set("autoload_known_extensions", "false")
	if cfg.MaxMemory != "" {
		params.Set("max_memory", cfg.MaxMemory)
	}
	return path + "?" + params.Encode()
}

// configureConnectionPool sizes the pool for parallel reads.
func configureConnectionPool(conn *sql.DB) {
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

// Conn returns the connection pool for stores built on it.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file, or "" for an in-memory database.
func (db *DB) Path() string {
	return db.path
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Checkpoint flushes the write-ahead log into the database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Close checkpoints and closes the pool. A failed checkpoint is logged; the
// WAL is replayed on the next open.
func (db *DB) Close() error {
	if db.path != "" {
		ctx, cancel := context.WithTimeout(context.Background(), closeCheckpointTimeout)
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}
