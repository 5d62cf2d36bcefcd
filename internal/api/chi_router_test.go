// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/middleware"
	"github.com/tomtom215/sentinel/internal/monitor"
	"github.com/tomtom215/sentinel/internal/session"
	"github.com/tomtom215/sentinel/internal/websocket"
)

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	expectError(t, rec, http.StatusNotFound, CodeNotFound)

	rec = ts.do(t, http.MethodDelete, "/api/v1/audit/logs", "", nil)
	expectError(t, rec, http.StatusMethodNotAllowed, CodeMethodNotAllowed)
}

func TestRouter_RequestIDInMetadata(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", map[string]string{middleware.RequestIDHeader: "trace-42"})
	if got := rec.Header().Get(middleware.RequestIDHeader); got != "trace-42" {
		t.Errorf("response header = %q, want trace-42", got)
	}
	env := decodeEnvelope(t, rec)
	if env.Metadata.RequestID != "trace-42" {
		t.Errorf("metadata.request_id = %q, want trace-42", env.Metadata.RequestID)
	}
	if env.Metadata.Timestamp.IsZero() {
		t.Error("metadata.timestamp not set")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", "", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sentinel_api_requests_total") {
		t.Error("API request counter missing from /metrics")
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/audit/actions", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", audit.HeaderActorID)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("preflight not answered: headers %v", rec.Header())
	}
}

func newLimitedRouter(t *testing.T, cfg MiddlewareConfig) http.Handler {
	t.Helper()
	logger := audit.NewLogger(audit.NewMemoryStore(0), nil, logging.NewMemorySink())
	t.Cleanup(func() { _ = logger.Close() })
	mgr := session.NewManager(session.NewMemoryStore(), logger, nil, logging.NewMemorySink())
	return NewRouter(NewHandler(logger, mgr, nil), NewMiddleware(cfg)).SetupChi()
}

func TestRouter_RateLimit(t *testing.T) {
	handler := newLimitedRouter(t, MiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
		IngestRateLimit:   5,
	})

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logs", nil))
		return rec
	}
	for i := 0; i < 2; i++ {
		if rec := get(); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
	expectError(t, get(), http.StatusTooManyRequests, CodeRateLimited)

	// Health is never rate limited.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestRouter_RateLimitDisabled(t *testing.T) {
	handler := newLimitedRouter(t, MiddlewareConfig{})

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit/logs", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}

func TestRouter_AlertStream(t *testing.T) {
	t.Run("not mounted", func(t *testing.T) {
		ts := newTestServer(t)
		expectError(t, ts.do(t, http.MethodGet, "/api/v1/alerts/stream", "", nil), http.StatusNotFound, CodeNotFound)
	})

	t.Run("upgrades through middleware", func(t *testing.T) {
		logger := audit.NewLogger(audit.NewMemoryStore(0), nil, logging.NewMemorySink())
		t.Cleanup(func() { _ = logger.Close() })
		mgr := session.NewManager(session.NewMemoryStore(), logger, nil, logging.NewMemorySink())

		hub := websocket.NewHub(websocket.HubConfig{AllowedOrigins: []string{"https://soc.example"}})
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go func() { _ = hub.Serve(ctx) }()

		router := NewRouter(NewHandler(logger, mgr, nil), nil).WithAlertStream(hub)
		srv := httptest.NewServer(router.SetupChi())
		t.Cleanup(srv.Close)

		header := http.Header{"Origin": []string{"https://soc.example"}}
		conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/alerts/stream", header)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for hub.ClientCount() != 1 {
			if time.Now().After(deadline) {
				t.Fatal("client never registered")
			}
			time.Sleep(5 * time.Millisecond)
		}

		if err := hub.Send(context.Background(), &monitor.Alert{ID: "a-1", Check: monitor.CheckAdminActivity}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if !strings.Contains(string(data), `"check":"admin_activity"`) {
			t.Errorf("message = %s", data)
		}
	})
}
