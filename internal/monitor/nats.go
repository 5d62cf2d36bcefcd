// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/sentinel/internal/metrics"
)

// DefaultNATSSubject is the subject prefix alerts are published under.
const DefaultNATSSubject = "sentinel.alerts"

const natsFlushTimeout = 5 * time.Second

// NATSSink publishes alerts as JSON on <subject>.<severity> so consumers
// can subscribe to a severity or to "<subject>.>".
type NATSSink struct {
	nc      *nats.Conn
	subject string
	owned   bool
}

// NewNATSSink connects to url and returns a sink that owns the connection.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("sentinel-alerts"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s := NewNATSSinkFromConn(nc, subject)
	s.owned = true
	return s, nil
}

// NewNATSSinkFromConn wraps an existing connection. Close leaves it open.
func NewNATSSinkFromConn(nc *nats.Conn, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSink{nc: nc, subject: subject}
}

// Name returns the sink name.
func (s *NATSSink) Name() string {
	return "nats"
}

// Subject returns the subject an alert is published on.
func (s *NATSSink) Subject(alert *Alert) string {
	return s.subject + "." + string(alert.Severity)
}

// Send publishes the alert and waits for the server to acknowledge the flush.
func (s *NATSSink) Send(ctx context.Context, alert *Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := s.nc.Publish(s.Subject(alert), data); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush alert: %w", err)
	}

	metrics.NATSMessagesPublished.Inc()
	return nil
}

// Close drains the connection if the sink opened it.
func (s *NATSSink) Close() error {
	if !s.owned {
		return nil
	}
	return s.nc.Drain()
}
