// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sentinel/internal/logging"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicConfig controls a PeriodicService.
type PeriodicConfig struct {
	// Interval between runs. Required.
	Interval time.Duration

	// Timeout bounds each run. Zero means the run inherits only the
	// service context.
	Timeout time.Duration

	// RunOnStart runs the task once before the first tick.
	RunOnStart bool
}

// PeriodicService runs a task on a ticker until its context is canceled.
// Task errors are logged and do not stop the service; a panic in the task
// is recovered by suture, which restarts the service.
type PeriodicService struct {
	name   string
	task   Task
	config PeriodicConfig
	logger zerolog.Logger
}

// NewPeriodicService returns a service running task every config.Interval.
func NewPeriodicService(name string, task Task, config PeriodicConfig) (*PeriodicService, error) {
	if task == nil {
		return nil, fmt.Errorf("periodic service %s: task is required", name)
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("periodic service %s: interval must be positive", name)
	}
	return &PeriodicService{
		name:   name,
		task:   task,
		config: config,
		logger: logging.WithComponent(name),
	}, nil
}

// Serve implements suture.Service.
func (s *PeriodicService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("timeout", s.config.Timeout).
		Msg("periodic service starting")

	if s.config.RunOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("periodic service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *PeriodicService) run(ctx context.Context) {
	runCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.task(runCtx); err != nil {
		s.logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("periodic run failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("periodic run complete")
}

// String names the service in supervisor events.
func (s *PeriodicService) String() string {
	return s.name
}
