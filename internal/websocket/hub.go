// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/monitor"
)

// Message types.
const (
	MessageTypeAlert = "alert"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

const (
	defaultBroadcastBuffer = 256
	handshakeTimeout       = 10 * time.Second
)

// ErrStreamBackpressure is returned by Send when the broadcast queue is full.
var ErrStreamBackpressure = errors.New("alert stream queue full")

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message is one frame on the stream.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// HubConfig configures a Hub.
type HubConfig struct {
	// AllowedOrigins lists browser origins allowed to connect. "*" allows
	// any origin. Empty means same host only.
	AllowedOrigins []string

	// BroadcastBuffer is the queue length between Send and the hub loop.
	BroadcastBuffer int
}

// Hub tracks connected clients and fans alerts out to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	allowedOrigins []string
	upgrader       websocket.Upgrader
}

var _ monitor.AlertSink = (*Hub)(nil)

// NewHub creates a hub. Run it with Serve before clients connect.
func NewHub(cfg HubConfig) *Hub {
	if cfg.BroadcastBuffer <= 0 {
		cfg.BroadcastBuffer = defaultBroadcastBuffer
	}
	h := &Hub{
		clients:        make(map[*Client]struct{}),
		broadcast:      make(chan Message, cfg.BroadcastBuffer),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		allowedOrigins: cfg.AllowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: handshakeTimeout,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

// Serve runs the hub loop until ctx is canceled, then closes every client.
// It implements suture.Service.
//
// Lifecycle events are handled before broadcasts so a client registered
// ahead of an alert always receives it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.register:
			h.addClient(c)
			continue
		case c := <-h.unregister:
			h.removeClient(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// String names the service in supervisor events.
func (h *Hub) String() string {
	return "alert-stream"
}

// Name implements monitor.AlertSink.
func (h *Hub) Name() string {
	return "stream"
}

// Send queues alert for broadcast. It never blocks on clients; a full
// queue returns ErrStreamBackpressure.
func (h *Hub) Send(ctx context.Context, alert *monitor.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.broadcast <- Message{Type: MessageTypeAlert, Data: alert}:
		return nil
	default:
		metrics.AlertStreamDropped.Inc()
		return ErrStreamBackpressure
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and attaches a client to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Alert stream upgrade failed")
		return
	}

	client := newClient(h, conn)
	select {
	case h.register <- client:
		client.start()
	case <-time.After(handshakeTimeout):
		logging.Ctx(r.Context()).Warn().Msg("Alert stream hub not running, closing connection")
		_ = conn.Close()
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("Alert stream rejected: missing Origin header")
		return false
	}

	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", logging.SanitizeLogValue(origin)).Msg("Alert stream rejected from unauthorized origin")
	return false
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.AlertStreamClients.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("Alert stream client connected")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.AlertStreamClients.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("Alert stream client disconnected")
}

// sortedClients returns clients in connection order. Caller holds mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sortedClients() {
		select {
		case c.send <- msg:
		default:
			// Slow consumer.
			close(c.send)
			delete(h.clients, c)
			metrics.AlertStreamDropped.Inc()
		}
	}
	metrics.AlertStreamClients.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	n := len(h.clients)
	for _, c := range h.sortedClients() {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	metrics.AlertStreamClients.Set(0)

	logging.Info().
		Str("component", "alert-stream").
		Str("reason", string(shutdownReason(ctx))).
		Int("clients_closed", n).
		Msg("Alert stream stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}
