// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestDetectConcurrentSessions_RecentFromManyIPs(t *testing.T) {
	tm := newTestManager(t)
	for i := 0; i < 4; i++ {
		tm.create(t, "user-1", fmt.Sprintf("rt-%d", i), fmt.Sprintf("10.0.0.%d", i+1), chromeWindows)
		tm.advance(10 * time.Minute)
	}

	report, err := tm.DetectConcurrentSessions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DetectConcurrentSessions() error = %v", err)
	}

	if !report.Suspicious {
		t.Error("expected suspicious")
	}
	want := []string{ReasonManyIPs, ReasonRapidCreation}
	if !reflect.DeepEqual(report.Reasons, want) {
		t.Errorf("reasons = %v, want %v", report.Reasons, want)
	}
	if report.ActiveSessions != 4 || len(report.UniqueIPs) != 4 || len(report.UniqueDevices) != 4 {
		t.Errorf("counts = %d/%d/%d, want 4/4/4", report.ActiveSessions, len(report.UniqueIPs), len(report.UniqueDevices))
	}
}

func TestDetectConcurrentSessions(t *testing.T) {
	tests := []struct {
		name     string
		sessions int
		distinct int
		spacing  time.Duration
		want     []string
	}{
		{name: "no sessions", want: []string{}},
		{name: "few sessions", sessions: 2, distinct: 2, spacing: time.Minute, want: []string{}},
		{name: "old sessions from one ip", sessions: 4, distinct: 1, spacing: time.Hour, want: []string{}},
		{name: "too many concurrent", sessions: 6, distinct: 1, spacing: time.Hour, want: []string{ReasonManyConcurrent}},
		{name: "all rules", sessions: 6, distinct: 6, spacing: time.Minute, want: []string{ReasonManyConcurrent, ReasonManyIPs, ReasonRapidCreation}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := newTestManager(t)
			for i := 0; i < tt.sessions; i++ {
				ip := fmt.Sprintf("10.0.0.%d", i%tt.distinct+1)
				tm.create(t, "user-1", fmt.Sprintf("rt-%d", i), ip, chromeWindows)
				tm.advance(tt.spacing)
			}

			report, err := tm.DetectConcurrentSessions(context.Background(), "user-1")
			if err != nil {
				t.Fatalf("DetectConcurrentSessions() error = %v", err)
			}
			if !reflect.DeepEqual(report.Reasons, tt.want) {
				t.Errorf("reasons = %v, want %v", report.Reasons, tt.want)
			}
			if report.Suspicious != (len(tt.want) > 0) {
				t.Errorf("suspicious = %v", report.Suspicious)
			}
		})
	}
}

func TestDetectConcurrentSessions_IgnoresRevoked(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 6; i++ {
		s := tm.create(t, "user-1", fmt.Sprintf("rt-%d", i), "10.0.0.1", chromeWindows)
		ids = append(ids, s.ID)
	}
	tm.advance(2 * time.Hour)
	if err := tm.RevokeSession(ctx, ids[0], "user-1", ""); err != nil {
		t.Fatalf("RevokeSession() error = %v", err)
	}

	report, err := tm.DetectConcurrentSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("DetectConcurrentSessions() error = %v", err)
	}
	if report.Suspicious || report.ActiveSessions != 5 {
		t.Errorf("report = %+v, want 5 active and not suspicious", report)
	}

	// Detection never revokes.
	if n, _ := tm.CountActiveSessions(ctx); n != 5 {
		t.Errorf("active sessions = %d, want 5", n)
	}
}

func TestDetectConcurrentSessions_CountsUnrevokedExpired(t *testing.T) {
	tm := newTestManager(t)
	tm.create(t, "user-1", "rt-old", "10.0.0.1", chromeWindows)
	tm.advance(31 * 24 * time.Hour)
	tm.create(t, "user-1", "rt-new", "10.0.0.2", chromeWindows)

	report, err := tm.DetectConcurrentSessions(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DetectConcurrentSessions() error = %v", err)
	}
	if report.ActiveSessions != 2 || len(report.UniqueIPs) != 2 {
		t.Errorf("active = %d, ips = %v; want 2 and 2", report.ActiveSessions, report.UniqueIPs)
	}
}
