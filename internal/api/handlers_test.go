// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/monitor"
	"github.com/tomtom215/sentinel/internal/session"
)

const testUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"

// envelope mirrors Response with a raw payload.
type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

type fakeSweeper struct {
	calls  atomic.Int32
	alerts []*monitor.Alert
	err    error
}

func (f *fakeSweeper) Sweep(context.Context) ([]*monitor.Alert, error) {
	f.calls.Add(1)
	return f.alerts, f.err
}

type testServer struct {
	handler  http.Handler
	logger   *audit.Logger
	store    *audit.MemoryStore
	sessions *session.Manager
	sweeper  *fakeSweeper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := audit.NewMemoryStore(0)
	logger := audit.NewLogger(store, nil, logging.NewMemorySink())
	t.Cleanup(func() { _ = logger.Close() })

	mgr := session.NewManager(session.NewMemoryStore(), logger, nil, logging.NewMemorySink())
	sweeper := &fakeSweeper{}

	mw := NewMiddleware(MiddlewareConfig{CORSAllowedOrigins: []string{"*"}})
	return &testServer{
		handler:  NewRouter(NewHandler(logger, mgr, sweeper), mw).SetupChi(),
		logger:   logger,
		store:    store,
		sessions: mgr,
		sweeper:  sweeper,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", testUA)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.logger.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if env.Status != StatusSuccess {
		t.Fatalf("status = %q, error = %+v", env.Status, env.Error)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("invalid data %s: %v", env.Data, err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != StatusError || env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if env.Error.Code != code {
		t.Errorf("error code = %q, want %q", env.Error.Code, code)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var health HealthStatus
	decodeData(t, rec, &health)
	if health.Status != "healthy" || !health.SessionStoreOK || !health.AuditEnabled || !health.MonitorEnabled {
		t.Errorf("unexpected health %+v", health)
	}
}

type failingCounter struct {
	SessionService
}

func (failingCounter) CountActiveSessions(context.Context) (int, error) {
	return 0, errors.New("store offline")
}

func TestHealth_Degraded(t *testing.T) {
	logger := audit.NewLogger(audit.NewMemoryStore(0), nil, logging.NewMemorySink())
	t.Cleanup(func() { _ = logger.Close() })
	handler := NewRouter(NewHandler(logger, failingCounter{}, nil), nil).SetupChi()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	expectError(t, rec, http.StatusServiceUnavailable, CodeUnavailable)
	var health HealthStatus
	_ = json.Unmarshal(decodeEnvelope(t, rec).Data, &health)
	if health.Status != "degraded" || health.MonitorEnabled {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestIngestAction(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/audit/actions",
		`{"actor_id":"alice","action":"admin_user_suspend","target_type":"user","target_id":"bob","changes":{"reason":"spam"}}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	ts.flush(t)

	entries, err := ts.logger.GetAuditLogs(context.Background(), audit.EntryFilter{ActorID: "alice"})
	if err != nil {
		t.Fatalf("GetAuditLogs() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "admin_user_suspend" || e.TargetID != "bob" || e.Severity != audit.SeverityLow {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.IPAddress != "192.0.2.1" {
		t.Errorf("IPAddress = %q, want client address 192.0.2.1", e.IPAddress)
	}
	if e.UserAgent != testUA {
		t.Errorf("UserAgent = %q", e.UserAgent)
	}
}

func TestIngestAction_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing actor", `{"action":"login"}`, CodeValidation},
		{"missing action", `{"actor_id":"alice"}`, CodeValidation},
		{"bad severity", `{"actor_id":"alice","action":"login","severity":"urgent"}`, CodeValidation},
		{"bad ip", `{"actor_id":"alice","action":"login","ip_address":"not-an-ip"}`, CodeValidation},
		{"bad actor type", `{"actor_id":"alice","action":"login","actor_type":"robot"}`, CodeValidation},
		{"unknown field", `{"actor_id":"alice","action":"login","extra":1}`, CodeBadRequest},
		{"malformed", `{"actor_id":`, CodeBadRequest},
		{"empty body", ``, CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/audit/actions", tt.body, nil)
			expectError(t, rec, http.StatusBadRequest, tt.code)
		})
	}

	ts.flush(t)
	if ts.store.Len() != 0 {
		t.Errorf("rejected requests wrote %d entries", ts.store.Len())
	}
}

func TestIngestAndQuerySecurityEvents(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/api/v1/audit/security-events",
			`{"event_type":"failed_login","user_id":"alice","ip_address":"10.0.0.9","details":{"reason":"bad password"}}`, nil)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
	}
	ts.do(t, http.MethodPost, "/api/v1/audit/security-events", `{"event_type":"mfa_enabled","user_id":"bob"}`, nil)
	ts.flush(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/audit/security-events?user_id=alice&event_type=failed_login&limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var page struct {
		Items []audit.SecurityEvent `json:"items"`
		Total int64                 `json:"total"`
		Limit int                   `json:"limit"`
	}
	decodeData(t, rec, &page)
	if len(page.Items) != 2 || page.Total != 3 || page.Limit != 2 {
		t.Errorf("items = %d total = %d limit = %d, want 2/3/2", len(page.Items), page.Total, page.Limit)
	}
	if page.Items[0].IPAddress != "10.0.0.9" {
		t.Errorf("IPAddress = %q", page.Items[0].IPAddress)
	}
}

func TestAuditLogs(t *testing.T) {
	ts := newTestServer(t)
	for _, sev := range []string{"low", "high", "high"} {
		ts.do(t, http.MethodPost, "/api/v1/audit/actions",
			`{"actor_id":"alice","action":"product_update","severity":"`+sev+`"}`, nil)
	}
	ts.flush(t)

	t.Run("severity filter", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/audit/logs?actor_id=alice&severity=high", "", nil)
		var page struct {
			Items []audit.Entry `json:"items"`
			Total int64         `json:"total"`
		}
		decodeData(t, rec, &page)
		if page.Total != 2 || len(page.Items) != 2 {
			t.Errorf("total = %d items = %d, want 2", page.Total, len(page.Items))
		}
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/audit/logs?actor_id=nobody", "", nil)
		env := decodeEnvelope(t, rec)
		if !strings.Contains(string(env.Data), `"items":[]`) {
			t.Errorf("data = %s, want empty items list", env.Data)
		}
	})

	t.Run("invalid severity", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/audit/logs?severity=urgent", "", nil)
		expectError(t, rec, http.StatusBadRequest, CodeValidation)
	})

	t.Run("invalid time", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/audit/logs?from=yesterday", "", nil)
		expectError(t, rec, http.StatusBadRequest, CodeBadRequest)
	})
}

func TestAuditReport(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/audit/actions", `{"actor_id":"alice","action":"user_login"}`, nil)
	ts.do(t, http.MethodPost, "/api/v1/audit/actions", `{"actor_id":"alice","action":"user_login"}`, nil)
	ts.do(t, http.MethodPost, "/api/v1/audit/security-events", `{"event_type":"failed_login","user_id":"alice"}`, nil)
	ts.flush(t)

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	rec := ts.do(t, http.MethodGet, "/api/v1/audit/report?from="+from+"&to="+to, "", nil)
	var report audit.Report
	decodeData(t, rec, &report)
	if report.TotalEntries != 2 || report.ByAction["user_login"] != 2 || report.SecurityEvents != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if report.TimeRange.From.Format(time.RFC3339) != from {
		t.Errorf("time range from = %v, want %s", report.TimeRange.From, from)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/audit/report?from="+to+"&to="+from, "", nil)
	expectError(t, rec, http.StatusBadRequest, CodeBadRequest)
}

func TestUserRisk(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 6; i++ {
		ts.do(t, http.MethodPost, "/api/v1/audit/security-events", `{"event_type":"failed_login","user_id":"mallory"}`, nil)
	}
	ts.flush(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/mallory/risk", "", nil)
	var assessment audit.RiskAssessment
	decodeData(t, rec, &assessment)
	if assessment.UserID != "mallory" || assessment.RiskScore != 40 || assessment.Suspicious {
		t.Errorf("unexpected assessment %+v", assessment)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/users/mallory/risk?window=soon", "", nil)
	expectError(t, rec, http.StatusBadRequest, CodeValidation)
}

func TestSecurityOverview(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/sessions", `{"user_id":"alice","refresh_token_id":"rt-1"}`, nil)
	ts.do(t, http.MethodPost, "/api/v1/audit/security-events", `{"event_type":"account_locked","user_id":"alice"}`, nil)
	ts.flush(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/security/overview", "", nil)
	var overview audit.SecurityOverview
	decodeData(t, rec, &overview)
	if overview.Timeframe != "24h" {
		t.Errorf("Timeframe = %q, want 24h", overview.Timeframe)
	}
	if overview.ActiveSessions != 1 || overview.Authentication.AccountLockouts != 1 {
		t.Errorf("unexpected overview %+v", overview)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/security/overview?timeframe=2d", "", nil)
	expectError(t, rec, http.StatusBadRequest, CodeValidation)
}

func TestSecurityOverview_Cached(t *testing.T) {
	ts := newTestServer(t)
	qc := cache.New("api-test", time.Minute, 0)
	handler := NewHandler(ts.logger, ts.sessions, nil).WithQueryCache(qc)
	router := NewRouter(handler, NewMiddleware(MiddlewareConfig{})).SetupChi()
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	var first audit.SecurityOverview
	decodeData(t, get("/api/v1/security/overview"), &first)

	ts.do(t, http.MethodPost, "/api/v1/audit/security-events", `{"event_type":"account_locked","user_id":"bob"}`, nil)
	ts.flush(t)

	var second audit.SecurityOverview
	decodeData(t, get("/api/v1/security/overview"), &second)
	if second.Authentication.AccountLockouts != first.Authentication.AccountLockouts {
		t.Errorf("cached overview changed: %d -> %d", first.Authentication.AccountLockouts, second.Authentication.AccountLockouts)
	}
	if stats := qc.GetStats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("cache stats = %+v", stats)
	}

	// Timeframes are cached separately.
	var week audit.SecurityOverview
	decodeData(t, get("/api/v1/security/overview?timeframe=7d"), &week)
	if week.Authentication.AccountLockouts != 1 {
		t.Errorf("7d lockouts = %d, want 1", week.Authentication.AccountLockouts)
	}

	// Validation errors are not cached.
	expectError(t, get("/api/v1/security/overview?timeframe=2d"), http.StatusBadRequest, CodeValidation)
	if qc.Len() != 2 {
		t.Errorf("Len() = %d, want 2", qc.Len())
	}
}

func TestAuditReport_CachesClosedRanges(t *testing.T) {
	ts := newTestServer(t)
	qc := cache.New("api-report-test", time.Minute, 0)
	router := NewRouter(NewHandler(ts.logger, ts.sessions, nil).WithQueryCache(qc), NewMiddleware(MiddlewareConfig{})).SetupChi()
	get := func(path string) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d: %s", path, rec.Code, rec.Body.String())
		}
	}

	from := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	recent := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	get("/api/v1/audit/report?from=" + from + "&to=" + past)
	get("/api/v1/audit/report?from=" + from + "&to=" + past)
	get("/api/v1/audit/report?from=" + from + "&to=" + recent)
	get("/api/v1/audit/report?from=" + from + "&to=" + recent)
	get("/api/v1/audit/report?from=" + from + "&to=" + future)
	get("/api/v1/audit/report?from=" + from)

	if qc.Len() != 1 {
		t.Errorf("Len() = %d, want only the settled range cached", qc.Len())
	}
	if stats := qc.GetStats(); stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
}

func TestAuditReport_RecentRangeSeesLateRecords(t *testing.T) {
	ts := newTestServer(t)
	qc := cache.New("api-report-late-test", time.Minute, 0)
	router := NewRouter(NewHandler(ts.logger, ts.sessions, nil).WithQueryCache(qc), NewMiddleware(MiddlewareConfig{})).SetupChi()

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Second).UTC().Format(time.RFC3339)
	path := "/api/v1/audit/report?from=" + from + "&to=" + to
	total := func() int {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var report audit.Report
		decodeData(t, rec, &report)
		return report.TotalEntries
	}

	before := total()
	ts.logger.LogUserAction(context.Background(), audit.Source{ActorID: "u1", ActorType: audit.ActorUser}, audit.Action{Name: "user_login"})
	if err := ts.logger.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if after := total(); after != before+1 {
		t.Errorf("TotalEntries = %d after a late record, want %d", after, before+1)
	}
	if qc.Len() != 0 {
		t.Errorf("Len() = %d, want recent range uncached", qc.Len())
	}
}

func TestMonitorSweep(t *testing.T) {
	ts := newTestServer(t)
	ts.sweeper.alerts = []*monitor.Alert{{ID: "a1", Check: monitor.CheckBruteForce, Severity: monitor.SeverityCritical}}
	ts.sweeper.err = errors.New("admin_activity check: store offline")

	rec := ts.do(t, http.MethodPost, "/api/v1/monitor/sweep", "", nil)
	var resp struct {
		Alerts []monitor.Alert `json:"alerts"`
		Failed bool            `json:"failed_checks"`
	}
	decodeData(t, rec, &resp)
	if len(resp.Alerts) != 1 || resp.Alerts[0].Check != monitor.CheckBruteForce || !resp.Failed {
		t.Errorf("unexpected sweep response %+v", resp)
	}
	if ts.sweeper.calls.Load() != 1 {
		t.Errorf("Sweep called %d times, want 1", ts.sweeper.calls.Load())
	}
}

func TestMonitorSweep_Disabled(t *testing.T) {
	logger := audit.NewLogger(audit.NewMemoryStore(0), nil, logging.NewMemorySink())
	t.Cleanup(func() { _ = logger.Close() })
	mgr := session.NewManager(session.NewMemoryStore(), logger, nil, logging.NewMemorySink())
	handler := NewRouter(NewHandler(logger, mgr, nil), nil).SetupChi()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/monitor/sweep", nil))
	expectError(t, rec, http.StatusServiceUnavailable, CodeUnavailable)
}
