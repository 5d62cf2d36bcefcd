// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// LogSink writes alerts to the diagnostic log as warnings.
type LogSink struct {
	diag logging.Sink
}

// NewLogSink creates a sink that logs through diag.
func NewLogSink(diag logging.Sink) *LogSink {
	return &LogSink{diag: diag}
}

// Name returns the sink name.
func (s *LogSink) Name() string {
	return "log"
}

// Send logs the alert with its metadata flattened into the record.
func (s *LogSink) Send(_ context.Context, alert *Alert) error {
	fields := make(map[string]interface{}, len(alert.Metadata)+4)
	for k, v := range alert.Metadata {
		fields[k] = v
	}
	fields["alert"] = true
	fields["alert_id"] = alert.ID
	fields["check"] = alert.Check
	fields["severity"] = string(alert.Severity)

	s.diag.LogStructured(logging.LevelWarn, alert.Message, fields)
	return nil
}

// MultiSink fans an alert out to several sinks. Every sink is tried; a
// failing sink does not stop delivery to the rest.
type MultiSink struct {
	sinks []AlertSink
}

// NewMultiSink creates a fan-out sink. Nil sinks are skipped.
func NewMultiSink(sinks ...AlertSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name returns the sink name.
func (m *MultiSink) Name() string {
	return "multi"
}

// Len returns the number of wrapped sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Send delivers to every sink and joins the failures.
func (m *MultiSink) Send(ctx context.Context, alert *Alert) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(ctx, alert); err != nil {
			metrics.RecordAlertDeliveryFailure(s.Name())
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
