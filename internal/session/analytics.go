// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

const topN = 5

// DayCount is the number of sessions created on one UTC day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// LabelCount pairs a device or location with its session count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Analytics summarizes a user's sessions over a trailing window.
type Analytics struct {
	TotalSessions          int          `json:"total_sessions"`
	AverageDurationMinutes int          `json:"average_session_duration"`
	UniqueDevices          int          `json:"unique_devices"`
	UniqueIPs              int          `json:"unique_ips"`
	SessionsByDay          []DayCount   `json:"sessions_by_day"`
	TopDevices             []LabelCount `json:"top_devices"`
	TopLocations           []LabelCount `json:"top_locations"`
}

// GetSessionAnalytics summarizes sessions created in the last days days.
// days <= 0 uses the configured default.
func (m *Manager) GetSessionAnalytics(ctx context.Context, userID string, days int) (*Analytics, error) {
	if days <= 0 {
		days = m.config.AnalyticsDays
	}

	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := m.now()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var (
		total     int
		durations time.Duration
		measured  int
		byDay     = make(map[string]int)
		devices   = make(map[string]int)
		locations = make(map[string]int)
		ips       = make(map[string]struct{})
	)
	for _, s := range sessions {
		if !s.CreatedAt.After(cutoff) {
			continue
		}
		total++

		end := now
		if s.RevokedAt != nil {
			end = *s.RevokedAt
		}
		if d := end.Sub(s.CreatedAt); d > 0 {
			durations += d
			measured++
		}

		byDay[s.CreatedAt.UTC().Format(time.DateOnly)]++
		devices[m.parser.Parse(s.UserAgent).Browser]++
		locations[s.IPAddress]++
		ips[s.IPAddress] = struct{}{}
	}

	a := &Analytics{
		TotalSessions: total,
		UniqueDevices: len(devices),
		UniqueIPs:     len(ips),
		SessionsByDay: make([]DayCount, 0, len(byDay)),
		TopDevices:    topCounts(devices, topN),
		TopLocations:  topCounts(locations, topN),
	}
	if measured > 0 {
		avg := durations / time.Duration(measured)
		a.AverageDurationMinutes = int(math.Round(avg.Minutes()))
	}
	for day, n := range byDay {
		a.SessionsByDay = append(a.SessionsByDay, DayCount{Date: day, Count: n})
	}
	sort.Slice(a.SessionsByDay, func(i, j int) bool {
		return a.SessionsByDay[i].Date < a.SessionsByDay[j].Date
	})

	return a, nil
}

// topCounts returns the n largest counts, ties broken by label.
func topCounts(counts map[string]int, n int) []LabelCount {
	out := make([]LabelCount, 0, len(counts))
	for label, c := range counts {
		out = append(out, LabelCount{Label: label, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
