// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/sentinel/internal/metrics"
)

// WebhookConfig configures the webhook alert sink.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"` // Custom headers (e.g., auth)
	Timeout time.Duration     `json:"timeout"`

	// RateLimit is the sustained number of requests per second.
	RateLimit float64 `json:"rate_limit"`
	Burst     int     `json:"burst"`

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures    uint32        `json:"breaker_failures"`
	BreakerTimeout     time.Duration `json:"breaker_timeout"`
	BreakerMaxRequests uint32        `json:"breaker_max_requests"`
}

// DefaultWebhookConfig returns sensible defaults.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Timeout:            10 * time.Second,
		RateLimit:          2,
		Burst:              1,
		BreakerFailures:    5,
		BreakerTimeout:     30 * time.Second,
		BreakerMaxRequests: 1,
	}
}

// WebhookPayload is the JSON body posted to the webhook endpoint.
type WebhookPayload struct {
	Alert     *Alert    `json:"alert"`
	EventType string    `json:"event_type"` // security_alert
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // sentinel
}

// WebhookSink posts alerts to an HTTP endpoint behind a token bucket and
// a circuit breaker.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookSink creates a webhook sink. Zero fields take their defaults.
func NewWebhookSink(config WebhookConfig) (*WebhookSink, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook sink requires a url")
	}

	defaults := DefaultWebhookConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = defaults.BreakerFailures
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = defaults.BreakerTimeout
	}
	if config.BreakerMaxRequests == 0 {
		config.BreakerMaxRequests = defaults.BreakerMaxRequests
	}

	headers := make(map[string]string, len(config.Headers))
	for k, v := range config.Headers {
		headers[k] = v
	}

	const breakerName = "alert-webhook"
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: config.BreakerMaxRequests,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return &WebhookSink{
		url:     config.URL,
		headers: headers,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		breaker: breaker,
	}, nil
}

// Name returns the sink name.
func (s *WebhookSink) Name() string {
	return "webhook"
}

// State returns the circuit breaker state.
func (s *WebhookSink) State() gobreaker.State {
	return s.breaker.State()
}

// Send posts the alert. It waits for the rate limiter and fails fast
// while the circuit is open.
func (s *WebhookSink) Send(ctx context.Context, alert *Alert) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		EventType: "security_alert",
		Timestamp: time.Now().UTC(),
		Source:    "sentinel",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, body)
	})
	return err
}

func (s *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
