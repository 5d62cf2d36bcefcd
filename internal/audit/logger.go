// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

const (
	kindEntry         = "entry"
	kindSecurityEvent = "security_event"
)

// ErrNoStore is returned by query operations on a logger built without a store.
var ErrNoStore = errors.New("audit store not configured")

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether audit records are written at all.
	Enabled bool `json:"enabled"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size"`

	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration `json:"write_timeout"`

	// LogToStdout also writes records through the application logger.
	LogToStdout bool `json:"log_to_stdout"`

	// Risk holds the suspicious-activity scoring thresholds.
	Risk RiskPolicy `json:"risk"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
		LogToStdout:  false,
		Risk:         DefaultRiskPolicy(),
	}
}

// record is one unit of work for the writer goroutine. Exactly one field is set.
type record struct {
	entry   *Entry
	event   *SecurityEvent
	flushed chan struct{}
}

// Logger records audit entries and security events and answers queries
// about them. Writes are asynchronous and never fail the caller.
type Logger struct {
	config *Config
	store  Store
	sink   logging.Sink
	now    func() time.Time

	queue    chan record
	overflow chan record
	mu       sync.RWMutex
	closed   bool
	spool    Spool
	stopChan chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewLogger creates a logger and starts its writer goroutine.
// A nil sink reports through the global zerolog logger.
func NewLogger(store Store, config *Config, sink logging.Sink) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if config.Risk == (RiskPolicy{}) {
		config.Risk = DefaultRiskPolicy()
	}
	if sink == nil {
		sink = logging.NewZerologSink("audit")
	}

	l := &Logger{
		config:   config,
		store:    store,
		sink:     sink,
		now:      time.Now,
		queue:    make(chan record, config.BufferSize),
		overflow: make(chan record, config.BufferSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	l.wg.Add(2)
	go l.asyncWriter()
	go l.overflowWriter()

	return l
}

// asyncWriter processes records from the buffer until Close.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()
	defer close(l.done)

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case r := <-l.queue:
					l.write(r)
				default:
					metrics.AuditQueueDepth.Set(0)
					return
				}
			}
		case r := <-l.queue:
			l.write(r)
		}
	}
}

// overflowWriter spools records that did not fit in the buffer, off the
// caller's goroutine.
func (l *Logger) overflowWriter() {
	defer l.wg.Done()

	handle := func(r record) {
		if r.flushed != nil {
			close(r.flushed)
			return
		}
		kind, id := r.describe()
		if !l.spoolFull(r, kind, id) {
			l.drop(kind, id)
		}
	}
	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case r := <-l.overflow:
					handle(r)
				default:
					return
				}
			}
		case r := <-l.overflow:
			handle(r)
		}
	}
}

func (r record) describe() (kind, id string) {
	switch {
	case r.entry != nil:
		return kindEntry, r.entry.ID
	case r.event != nil:
		return kindSecurityEvent, r.event.ID
	}
	return "", ""
}

func (l *Logger) drop(kind, id string) {
	metrics.RecordAuditDropped(kind)
	l.sink.LogStructured(logging.LevelWarn, "Audit buffer full, dropping record", map[string]interface{}{
		"kind": kind,
		"id":   id,
	})
}

func (l *Logger) write(r record) {
	metrics.AuditQueueDepth.Set(float64(len(l.queue)))

	switch {
	case r.flushed != nil:
		close(r.flushed)
	case r.entry != nil:
		l.writeEntry(r.entry)
	case r.event != nil:
		l.writeEvent(r.event)
	}
}

func (l *Logger) writeEntry(entry *Entry) {
	if l.config.LogToStdout {
		l.logToStdout("entry", entry)
	}
	if l.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	err := l.store.SaveEntry(ctx, entry)
	metrics.RecordAuditWrite(kindEntry, err)
	if err != nil && l.spoolRecord(kindEntry, entry.ID, entry) {
		l.sink.LogStructured(logging.LevelWarn, "Audit entry spooled after store failure", map[string]interface{}{
			"error":    err,
			"entry_id": entry.ID,
		})
		return
	}
	if err != nil {
		l.sink.LogStructured(logging.LevelError, "Failed to save audit entry", map[string]interface{}{
			"error":    err,
			"entry_id": entry.ID,
			"action":   entry.Action,
			"actor_id": entry.ActorID,
		})
	}
}

func (l *Logger) writeEvent(event *SecurityEvent) {
	if l.config.LogToStdout {
		l.logToStdout("security_event", event)
	}
	if l.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	err := l.store.SaveSecurityEvent(ctx, event)
	metrics.RecordAuditWrite(kindSecurityEvent, err)
	if err != nil && l.spoolRecord(kindSecurityEvent, event.ID, event) {
		l.sink.LogStructured(logging.LevelWarn, "Security event spooled after store failure", map[string]interface{}{
			"error":    err,
			"event_id": event.ID,
		})
		return
	}
	if err != nil {
		l.sink.LogStructured(logging.LevelError, "Failed to save security event", map[string]interface{}{
			"error":      err,
			"event_id":   event.ID,
			"event_type": string(event.EventType),
		})
	}
}

// logToStdout writes a record through the application logger in JSON form.
func (l *Logger) logToStdout(field string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit record")
		return
	}
	logging.Info().RawJSON(field, data).Msg("Audit record")
}

// enqueue hands a record to the writer, or writes it inline once the
// logger is closed. It never waits: a full buffer hands the record to the
// spool queue when a spool is set, and drops it when that is full too or no
// spool is set.
func (l *Logger) enqueue(r record, kind, id string) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		l.write(r)
		return
	}
	select {
	case l.queue <- r:
		l.mu.RUnlock()
		metrics.AuditQueueDepth.Set(float64(len(l.queue)))
		return
	default:
	}
	if l.spool != nil {
		select {
		case l.overflow <- r:
			l.mu.RUnlock()
			return
		default:
		}
	}
	l.mu.RUnlock()
	l.drop(kind, id)
}

// LogUserAction records one audit entry for an action taken by src.
// Severity defaults to low. Failures are reported to the sink, never returned.
func (l *Logger) LogUserAction(ctx context.Context, src Source, action Action) {
	if !l.config.Enabled {
		return
	}

	severity := action.Severity
	if severity == "" {
		severity = SeverityLow
	}
	if !severity.Valid() {
		l.sink.LogStructured(logging.LevelWarn, "Unknown audit severity, using low", map[string]interface{}{
			"severity": string(severity),
			"action":   action.Name,
		})
		severity = SeverityLow
	}

	actorType := src.ActorType
	if actorType == "" {
		actorType = ActorUser
	}

	entry := &Entry{
		ID:         uuid.New().String(),
		ActorID:    src.ActorID,
		ActorType:  actorType,
		Action:     action.Name,
		TargetType: action.TargetType,
		TargetID:   action.TargetID,
		Changes:    l.marshalDetails(action.Changes, action.Name),
		IPAddress:  src.IPAddress,
		UserAgent:  logging.TruncateUserAgent(src.UserAgent),
		SessionID:  src.SessionID,
		Timestamp:  l.now().UTC(),
		Severity:   severity,
	}

	logging.Ctx(ctx).Debug().
		Str("entry_id", entry.ID).
		Str("action", entry.Action).
		Str("severity", string(entry.Severity)).
		Msg("Audit entry queued")

	l.enqueue(record{entry: entry}, kindEntry, entry.ID)
}

// LogSecurityEvent records one security event. The source's actor, when
// present, is the event's user. Failures are reported to the sink.
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType SecurityEventType, src Source, details map[string]interface{}) {
	if !l.config.Enabled {
		return
	}

	if details == nil {
		details = map[string]interface{}{}
	}

	event := &SecurityEvent{
		ID:        uuid.New().String(),
		UserID:    src.ActorID,
		EventType: eventType,
		IPAddress: src.IPAddress,
		UserAgent: logging.TruncateUserAgent(src.UserAgent),
		Timestamp: l.now().UTC(),
		Details:   l.marshalDetails(details, string(eventType)),
	}

	logging.Ctx(ctx).Debug().
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Msg("Security event queued")

	l.enqueue(record{event: event}, kindSecurityEvent, event.ID)
}

func (l *Logger) marshalDetails(details map[string]interface{}, label string) json.RawMessage {
	if details == nil {
		return nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		l.sink.LogStructured(logging.LevelWarn, "Failed to marshal audit details", map[string]interface{}{
			"error": err,
			"label": label,
		})
		return nil
	}
	return data
}

// Flush blocks until every record queued before the call has been written
// or ctx ends.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		<-l.done
		return nil
	}

	marker := make(chan struct{})
	select {
	case l.queue <- record{flushed: marker}:
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := l.await(ctx, marker); err != nil {
		return err
	}

	// Records that overflowed to the spool queue before the call.
	marker = make(chan struct{})
	select {
	case l.overflow <- record{flushed: marker}:
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	return l.await(ctx, marker)
}

func (l *Logger) await(ctx context.Context, marker chan struct{}) error {
	select {
	case <-marker:
		return nil
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the buffer and stops the writer. Records logged after Close
// are written synchronously.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stopChan)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

// Enabled returns whether audit logging is enabled.
func (l *Logger) Enabled() bool {
	return l.config.Enabled
}

// RiskPolicy returns the thresholds used by DetectSuspiciousActivity.
func (l *Logger) RiskPolicy() RiskPolicy {
	return l.config.Risk
}
