// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// Sweep statuses used as metric labels.
const (
	statusSuccess  = "success"
	statusPartial  = "partial"
	statusCanceled = "canceled"
)

// check evaluates one rule against the audit trail.
type check struct {
	name string
	run  func(ctx context.Context, now time.Time) ([]*Alert, error)
}

// Monitor periodically scans the audit trail for attack patterns and
// raises alerts through an AlertSink.
type Monitor struct {
	reader     AuditReader
	sink       AlertSink
	diag       logging.Sink
	thresholds Thresholds
	now        func() time.Time
}

// New creates a monitor. A nil alert sink logs alerts through diag; a nil
// diag reports through the global zerolog logger.
func New(reader AuditReader, sink AlertSink, thresholds Thresholds, diag logging.Sink) *Monitor {
	if diag == nil {
		diag = logging.NewZerologSink("monitor")
	}
	if sink == nil {
		sink = NewLogSink(diag)
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Monitor{
		reader:     reader,
		sink:       sink,
		diag:       diag,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Thresholds returns the active thresholds.
func (m *Monitor) Thresholds() Thresholds {
	return m.thresholds
}

// Sweep runs every check once and delivers the resulting alerts. A failed
// check never stops the others; failures are joined into the returned
// error. If ctx ends before the checks finish, nothing is delivered.
func (m *Monitor) Sweep(ctx context.Context) ([]*Alert, error) {
	start := time.Now()
	now := m.now().UTC()

	checks := []check{
		{CheckAccountLockouts, m.checkAccountLockouts},
		{CheckBruteForce, m.checkFailedLoginPatterns},
		{CheckAdminActivity, m.checkAdminActivity},
		{CheckDataAccess, m.checkDataAccess},
	}

	results := make([][]*Alert, len(checks))
	errs := make([]error, len(checks))

	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()
			alerts, err := c.run(ctx, now)
			if err != nil {
				metrics.RecordMonitorCheckFailure(c.name)
				errs[i] = fmt.Errorf("%s check: %w", c.name, err)
				return
			}
			results[i] = alerts
		}(i, c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		metrics.RecordMonitorSweep(statusCanceled, time.Since(start))
		return nil, fmt.Errorf("sweep interrupted: %w", err)
	}

	var alerts []*Alert
	for _, r := range results {
		alerts = append(alerts, r...)
	}

	for _, alert := range alerts {
		metrics.RecordAlert(alert.Check, string(alert.Severity))
		if err := m.sink.Send(ctx, alert); err != nil {
			metrics.RecordAlertDeliveryFailure(m.sink.Name())
			m.diag.LogStructured(logging.LevelError, "Failed to deliver security alert", map[string]interface{}{
				"error":    err,
				"sink":     m.sink.Name(),
				"alert_id": alert.ID,
				"check":    alert.Check,
			})
		}
	}

	err := errors.Join(errs...)
	status := statusSuccess
	if err != nil {
		status = statusPartial
		m.diag.LogStructured(logging.LevelError, "Security monitor sweep had failing checks", map[string]interface{}{
			"error": err,
		})
	}
	metrics.RecordMonitorSweep(status, time.Since(start))

	logging.Ctx(ctx).Debug().
		Int("alerts", len(alerts)).
		Dur("duration", time.Since(start)).
		Msg("Security monitor sweep finished")

	return alerts, err
}

func (m *Monitor) newAlert(check string, severity Severity, message string, metadata map[string]interface{}, now time.Time) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		Check:     check,
		Severity:  severity,
		Message:   message,
		Metadata:  metadata,
		Timestamp: now,
	}
}

func (m *Monitor) checkAccountLockouts(ctx context.Context, now time.Time) ([]*Alert, error) {
	events, err := m.reader.GetSecurityEvents(ctx, audit.SecurityEventFilter{
		EventTypes: []audit.SecurityEventType{audit.EventAccountLocked},
		From:       now.Add(-m.thresholds.LockoutWindow),
	})
	if err != nil {
		return nil, err
	}
	if len(events) <= m.thresholds.MaxLockouts {
		return nil, nil
	}

	accounts := make([]string, 0, len(events))
	for _, e := range events {
		accounts = append(accounts, e.UserID)
	}
	return []*Alert{m.newAlert(CheckAccountLockouts, SeverityHigh, "Multiple account lockouts detected", map[string]interface{}{
		"count":    len(events),
		"accounts": accounts,
	}, now)}, nil
}

func (m *Monitor) checkFailedLoginPatterns(ctx context.Context, now time.Time) ([]*Alert, error) {
	events, err := m.reader.GetSecurityEvents(ctx, audit.SecurityEventFilter{
		EventTypes: []audit.SecurityEventType{audit.EventFailedLogin},
		From:       now.Add(-m.thresholds.BruteForceWindow),
	})
	if err != nil {
		return nil, err
	}

	byIP := make(map[string]int)
	for _, e := range events {
		byIP[e.IPAddress]++
	}

	ips := make([]string, 0, len(byIP))
	for ip, n := range byIP {
		if n > m.thresholds.MaxFailedLoginsPerIP {
			ips = append(ips, ip)
		}
	}
	sort.Strings(ips)

	alerts := make([]*Alert, 0, len(ips))
	for _, ip := range ips {
		alerts = append(alerts, m.newAlert(CheckBruteForce, SeverityCritical, "Potential brute force attack detected", map[string]interface{}{
			"ip_address":      ip,
			"failed_attempts": byIP[ip],
		}, now))
	}
	return alerts, nil
}

func (m *Monitor) checkAdminActivity(ctx context.Context, now time.Time) ([]*Alert, error) {
	entries, err := m.reader.GetAuditLogs(ctx, audit.EntryFilter{
		Severities: []audit.Severity{audit.SeverityHigh},
		From:       now.Add(-m.thresholds.AdminWindow),
	})
	if err != nil {
		return nil, err
	}

	matched, actors := countMatching(entries, "admin", "delete")
	if matched <= m.thresholds.MaxAdminActions {
		return nil, nil
	}
	return []*Alert{m.newAlert(CheckAdminActivity, SeverityMedium, "High volume of admin activity", map[string]interface{}{
		"actions_count": matched,
		"unique_actors": actors,
	}, now)}, nil
}

func (m *Monitor) checkDataAccess(ctx context.Context, now time.Time) ([]*Alert, error) {
	entries, err := m.reader.GetAuditLogs(ctx, audit.EntryFilter{
		From: now.Add(-m.thresholds.DataAccessWindow),
	})
	if err != nil {
		return nil, err
	}

	matched, actors := countMatching(entries, "export", "data_")
	if matched <= m.thresholds.MaxDataExports {
		return nil, nil
	}
	return []*Alert{m.newAlert(CheckDataAccess, SeverityHigh, "Unusual data access patterns detected", map[string]interface{}{
		"exports_count": matched,
		"unique_actors": actors,
	}, now)}, nil
}

// countMatching counts entries whose action contains any of subs and the
// distinct actors behind them.
func countMatching(entries []audit.Entry, subs ...string) (matched, actors int) {
	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, s := range subs {
			if strings.Contains(e.Action, s) {
				matched++
				seen[e.ActorID] = struct{}{}
				break
			}
		}
	}
	return matched, len(seen)
}
