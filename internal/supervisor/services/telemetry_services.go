// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/monitor"
	"github.com/tomtom215/sentinel/internal/wal"
)

// AuditCloser is satisfied by *audit.Logger.
type AuditCloser interface {
	Close() error
}

// AuditDrainService owns the audit writer's shutdown. It blocks until the
// tree stops, then drains the buffer and closes the logger, so queued
// records reach the store before the process exits.
//
// Serve returns only on cancellation. A closed logger writes synchronously,
// so a restart after Close still records everything.
type AuditDrainService struct {
	logger AuditCloser
	name   string
}

// NewAuditDrainService wraps an audit logger.
func NewAuditDrainService(logger AuditCloser) *AuditDrainService {
	return &AuditDrainService{logger: logger, name: "audit-drain"}
}

// Serve implements suture.Service.
func (s *AuditDrainService) Serve(ctx context.Context) error {
	<-ctx.Done()

	log := logging.WithComponent(s.name)
	if err := s.logger.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close audit logger")
		return fmt.Errorf("audit drain: %w", err)
	}
	log.Info().Msg("Audit buffer drained")
	return ctx.Err()
}

// String names the service in supervisor events.
func (s *AuditDrainService) String() string {
	return s.name
}

// SessionCleaner is satisfied by *session.Manager.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

// NewSessionCleanupService revokes expired sessions every interval.
func NewSessionCleanupService(cleaner SessionCleaner, interval time.Duration) (*PeriodicService, error) {
	log := logging.WithComponent("session-cleanup")
	return NewPeriodicService("session-cleanup", func(ctx context.Context) error {
		n, err := cleaner.CleanupExpiredSessions(ctx)
		if n > 0 {
			log.Info().Int("revoked", n).Msg("Expired sessions revoked")
		}
		return err
	}, PeriodicConfig{Interval: interval, Timeout: interval})
}

// Sweeper is satisfied by *monitor.Monitor.
type Sweeper interface {
	Sweep(ctx context.Context) ([]*monitor.Alert, error)
}

// NewMonitorSweepService runs a security sweep every interval, each bounded
// by timeout. The first sweep runs at startup.
func NewMonitorSweepService(sweeper Sweeper, interval, timeout time.Duration) (*PeriodicService, error) {
	return NewPeriodicService("monitor-sweep", func(ctx context.Context) error {
		_, err := sweeper.Sweep(ctx)
		return err
	}, PeriodicConfig{Interval: interval, Timeout: timeout, RunOnStart: true})
}

// CacheCleaner is satisfied by *cache.Cache.
type CacheCleaner interface {
	Cleanup() int
}

// NewCacheCleanupService removes expired query cache entries every interval.
func NewCacheCleanupService(c CacheCleaner, interval time.Duration) (*PeriodicService, error) {
	log := logging.WithComponent("query-cache-cleanup")
	return NewPeriodicService("query-cache-cleanup", func(context.Context) error {
		if n := c.Cleanup(); n > 0 {
			log.Debug().Int("removed", n).Msg("Expired cache entries removed")
		}
		return nil
	}, PeriodicConfig{Interval: interval})
}

// WALReplayer is satisfied by *wal.WAL.
type WALReplayer interface {
	ReplayPending(ctx context.Context, replayer wal.Replayer) (wal.ReplayResult, error)
	RunGC() error
}

// NewWALRetryService replays spooled audit records into the store every
// interval, then compacts the WAL. The first replay runs at startup.
func NewWALRetryService(w WALReplayer, replayer wal.Replayer, interval time.Duration) (*PeriodicService, error) {
	return NewPeriodicService("audit-wal-retry", func(ctx context.Context) error {
		if _, err := w.ReplayPending(ctx, replayer); err != nil {
			return err
		}
		return w.RunGC()
	}, PeriodicConfig{Interval: interval, RunOnStart: true})
}
