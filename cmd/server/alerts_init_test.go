// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"testing"
	"time"

	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/monitor"
	"github.com/tomtom215/sentinel/internal/websocket"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_PATH", "/nonexistent/sentinel.yaml")
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	return cfg
}

func TestInitAlertSinks(t *testing.T) {
	t.Run("log only", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Alerts.LogEnabled = true

		sink, closeSinks := initAlertSinks(cfg)
		defer closeSinks()
		if _, ok := sink.(*monitor.LogSink); !ok {
			t.Errorf("sink = %T, want *monitor.LogSink", sink)
		}
	})

	t.Run("none configured", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Alerts.LogEnabled = false

		sink, closeSinks := initAlertSinks(cfg)
		defer closeSinks()
		if sink != nil {
			t.Errorf("sink = %T, want nil", sink)
		}
	})

	t.Run("log and webhook fan out", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Alerts.LogEnabled = true
		cfg.Alerts.WebhookURL = "https://hooks.example.com/sentinel"

		sink, closeSinks := initAlertSinks(cfg)
		defer closeSinks()
		multi, ok := sink.(*monitor.MultiSink)
		if !ok {
			t.Fatalf("sink = %T, want *monitor.MultiSink", sink)
		}
		if multi.Len() != 2 {
			t.Errorf("Len() = %d, want 2", multi.Len())
		}
	})

	t.Run("nats connects in the background", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Alerts.LogEnabled = true
		cfg.Alerts.NATSURL = "nats://127.0.0.1:1"

		sink, closeSinks := initAlertSinks(cfg)
		defer closeSinks()
		multi, ok := sink.(*monitor.MultiSink)
		if !ok {
			t.Fatalf("sink = %T, want *monitor.MultiSink", sink)
		}
		if multi.Len() != 2 {
			t.Errorf("Len() = %d, want 2", multi.Len())
		}
	})
}

func TestInitAlertSinks_StreamHub(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerts.LogEnabled = false

	hub := websocket.NewHub(websocket.HubConfig{})
	sink, closeSinks := initAlertSinks(cfg, hub, nil)
	defer closeSinks()
	if sink != hub {
		t.Errorf("sink = %T, want the stream hub", sink)
	}

	cfg.Alerts.LogEnabled = true
	sink, closeAll := initAlertSinks(cfg, hub)
	defer closeAll()
	if multi, ok := sink.(*monitor.MultiSink); !ok || multi.Len() != 2 {
		t.Errorf("sink = %T, want MultiSink of log and stream", sink)
	}
}

func TestMiddlewareConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.CORSOrigins = []string{"https://admin.example.com"}
	cfg.Server.RateLimitRequests = 50
	cfg.Server.RateLimitWindow = 30 * time.Second

	mw := middlewareConfig(cfg)
	if len(mw.CORSAllowedOrigins) != 1 || mw.CORSAllowedOrigins[0] != "https://admin.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", mw.CORSAllowedOrigins)
	}
	if mw.RateLimitRequests != 50 || mw.RateLimitWindow != 30*time.Second || mw.IngestRateLimit != 500 {
		t.Errorf("unexpected rate limits %+v", mw)
	}
}

func TestCacheCleanupInterval(t *testing.T) {
	if got := cacheCleanupInterval(15 * time.Second); got != time.Minute {
		t.Errorf("cacheCleanupInterval(15s) = %v, want 1m", got)
	}
	if got := cacheCleanupInterval(5 * time.Minute); got != 5*time.Minute {
		t.Errorf("cacheCleanupInterval(5m) = %v, want 5m", got)
	}
}
