// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/monitor"
)

// initAlertSinks builds the alert fan-out from configuration plus any extra
// sinks built by the caller. A sink that fails to initialize is logged and
// skipped; the monitor still runs with the rest. The returned func closes
// sinks holding connections.
func initAlertSinks(cfg *config.Config, extra ...monitor.AlertSink) (monitor.AlertSink, func()) {
	var sinks []monitor.AlertSink
	closers := []func(){}

	if cfg.Alerts.LogEnabled {
		sinks = append(sinks, monitor.NewLogSink(logging.NewZerologSink("alerts")))
	}

	if wc, ok := cfg.WebhookConfig(); ok {
		webhook, err := monitor.NewWebhookSink(wc)
		if err != nil {
			logging.Warn().Err(err).Msg("Webhook alert sink disabled")
		} else {
			sinks = append(sinks, webhook)
			logging.Info().Str("url", logging.SanitizeLogValue(wc.URL)).Msg("Webhook alert sink registered")
		}
	}

	if cfg.Alerts.NATSURL != "" {
		natsSink, err := monitor.NewNATSSink(cfg.Alerts.NATSURL, cfg.Alerts.NATSSubject)
		if err != nil {
			logging.Warn().Err(err).Msg("NATS alert sink disabled")
		} else {
			sinks = append(sinks, natsSink)
			closers = append(closers, func() {
				if err := natsSink.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing NATS alert sink")
				}
			})
			logging.Info().Str("subject", cfg.Alerts.NATSSubject).Msg("NATS alert sink registered")
		}
	}

	for _, s := range extra {
		if s != nil {
			sinks = append(sinks, s)
			logging.Info().Str("sink", s.Name()).Msg("Alert sink registered")
		}
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	switch len(sinks) {
	case 0:
		// monitor.New falls back to a log sink.
		return nil, closeAll
	case 1:
		return sinks[0], closeAll
	}
	return monitor.NewMultiSink(sinks...), closeAll
}
