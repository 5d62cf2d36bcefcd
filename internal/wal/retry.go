// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package wal

import (
	"context"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
)

// Replayer writes a spooled record to its final store. *audit.Logger
// satisfies it.
type Replayer interface {
	Replay(ctx context.Context, kind string, payload []byte) error
}

// ReplayResult counts what one ReplayPending pass did.
type ReplayResult struct {
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Expired    int `json:"expired"`
	MaxRetried int `json:"max_retried"`
	Skipped    int `json:"skipped"`
}

// Total is the number of entries examined.
func (r ReplayResult) Total() int {
	return r.Succeeded + r.Failed + r.Expired + r.MaxRetried + r.Skipped
}

// ReplayPending hands every due entry to replayer. Entries still in
// backoff are skipped. A second concurrent call returns an empty result.
func (w *WAL) ReplayPending(ctx context.Context, replayer Replayer) (ReplayResult, error) {
	var result ReplayResult
	if !w.replaying.TryLock() {
		return result, nil
	}
	defer w.replaying.Unlock()

	entries, err := w.GetPending(ctx)
	if err != nil {
		return result, err
	}

	log := logging.WithComponent("audit-wal")
	now := w.now()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		switch {
		case now.Sub(entry.CreatedAt) > w.config.EntryTTL:
			w.discard(ctx, entry, "expired")
			result.Expired++
		case entry.Attempts >= w.config.MaxRetries:
			w.discard(ctx, entry, "max_retries")
			result.MaxRetried++
		case !w.readyForRetry(entry, now):
			result.Skipped++
		default:
			if w.replayEntry(ctx, replayer, entry) {
				result.Succeeded++
			} else {
				result.Failed++
			}
		}
	}

	w.mu.Lock()
	w.lastReplay = now
	w.mu.Unlock()

	if result.Succeeded+result.Failed+result.Expired+result.MaxRetried > 0 {
		log.Info().
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Int("expired", result.Expired).
			Int("max_retried", result.MaxRetried).
			Int("skipped", result.Skipped).
			Msg("WAL replay complete")
	}
	return result, nil
}

func (w *WAL) replayEntry(ctx context.Context, replayer Replayer, entry *Entry) bool {
	replayCtx, cancel := context.WithTimeout(ctx, w.config.ReplayTimeout)
	err := replayer.Replay(replayCtx, entry.Kind, entry.Payload)
	cancel()
	recordReplay(err)

	if err != nil {
		logging.Warn().
			Err(err).
			Str("entry_id", entry.ID).
			Str("kind", entry.Kind).
			Int("attempt", entry.Attempts+1).
			Msg("WAL replay failed")
		if updateErr := w.UpdateAttempt(ctx, entry.ID, err.Error()); updateErr != nil {
			logging.Error().Err(updateErr).Str("entry_id", entry.ID).Msg("Failed to record WAL attempt")
		}
		return false
	}

	if err := w.Confirm(ctx, entry.ID); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to confirm WAL entry")
		return false
	}
	return true
}

func (w *WAL) discard(ctx context.Context, entry *Entry, reason string) {
	logging.Warn().
		Str("entry_id", entry.ID).
		Str("kind", entry.Kind).
		Str("reason", reason).
		Int("attempts", entry.Attempts).
		Str("last_error", entry.LastError).
		Msg("Discarding WAL entry")
	if err := w.Delete(ctx, entry.ID); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to delete WAL entry")
		return
	}
	recordDiscard(reason)
}

func (w *WAL) readyForRetry(entry *Entry, now time.Time) bool {
	if entry.LastAttemptAt.IsZero() {
		return true
	}
	return now.Sub(entry.LastAttemptAt) >= w.backoff(entry.Attempts)
}

// backoff returns RetryBackoff * 2^(attempts-1), capped at MaxBackoff.
func (w *WAL) backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := w.config.RetryBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.config.MaxBackoff {
			return w.config.MaxBackoff
		}
	}
	return d
}
