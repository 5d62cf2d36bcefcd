// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// ErrUnknownRecordKind is returned by Replay for a kind it cannot decode.
var ErrUnknownRecordKind = errors.New("unknown audit record kind")

// Spool keeps records the store could not accept so they can be replayed
// later. *wal.WAL satisfies it.
type Spool interface {
	Write(ctx context.Context, kind string, payload []byte) (string, error)
}

// SetSpool routes failed store writes and buffer overflow to s instead of
// dropping them. A nil s restores dropping.
func (l *Logger) SetSpool(s Spool) {
	l.mu.Lock()
	l.spool = s
	l.mu.Unlock()
}

func (l *Logger) currentSpool() Spool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.spool
}

// spoolRecord writes v to the spool and reports whether it was kept.
func (l *Logger) spoolRecord(kind, id string, v interface{}) bool {
	spool := l.currentSpool()
	if spool == nil {
		return false
	}

	payload, err := json.Marshal(v)
	if err != nil {
		l.sink.LogStructured(logging.LevelError, "Failed to encode audit record for spool", map[string]interface{}{
			"error": err,
			"kind":  kind,
			"id":    id,
		})
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()
	if _, err := spool.Write(ctx, kind, payload); err != nil {
		l.sink.LogStructured(logging.LevelError, "Failed to spool audit record", map[string]interface{}{
			"error": err,
			"kind":  kind,
			"id":    id,
		})
		return false
	}
	return true
}

// Replay saves a spooled record to the store. It implements wal.Replayer.
func (l *Logger) Replay(ctx context.Context, kind string, payload []byte) error {
	if l.store == nil {
		return ErrNoStore
	}

	var err error
	switch kind {
	case kindEntry:
		var entry Entry
		if err = json.Unmarshal(payload, &entry); err != nil {
			return fmt.Errorf("decode spooled entry: %w", err)
		}
		err = l.store.SaveEntry(ctx, &entry)
	case kindSecurityEvent:
		var event SecurityEvent
		if err = json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("decode spooled security event: %w", err)
		}
		err = l.store.SaveSecurityEvent(ctx, &event)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecordKind, kind)
	}

	metrics.RecordAuditWrite(kind, err)
	return err
}

// spoolFull keeps a record that did not fit in the buffer.
func (l *Logger) spoolFull(r record, kind, id string) bool {
	var v interface{}
	switch {
	case r.entry != nil:
		v = r.entry
	case r.event != nil:
		v = r.event
	default:
		return false
	}
	return l.spoolRecord(kind, id, v)
}
