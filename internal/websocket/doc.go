// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package websocket streams security alerts to connected operators.

The Hub is a monitor.AlertSink: every alert a sweep raises is broadcast as
an "alert" message to all connected clients. It is also a suture service
and an http.Handler that upgrades GET /api/v1/alerts/stream.

	┌──────────────┐  Send   ┌─────┐  broadcast  ┌──────────┐
	│ monitor.Sweep├────────►│ Hub ├────────────►│ Client N │
	└──────────────┘         └─────┘             └──────────┘

Each client has two goroutines:
  - readPump: reads client frames, answers {"type":"ping"} with a pong
  - writePump: writes queued messages and keepalive pings

A client whose queue is full is disconnected rather than slowing the
broadcast. Delivery is best effort; alerts are advisory and the audit
store remains the record.

Messages:

	{"type":"alert","data":{"id":"...","check":"brute_force","severity":"critical",...}}
	{"type":"pong"}

Origins are checked against the configured CORS origins. With none
configured, only same-host browser origins are accepted. Requests without
an Origin header are rejected.
*/
package websocket
