// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package logging

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is the severity of a diagnostic record.
type Level string

// Diagnostic levels.
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Sink is the local diagnostic channel. Components that must not propagate
// failures (audit writes, alert delivery) report them here instead.
type Sink interface {
	LogStructured(level Level, message string, metadata map[string]interface{})
}

// ZerologSink forwards diagnostic records to a zerolog logger.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a sink that writes through the global logger
// with the given component field.
func NewZerologSink(component string) *ZerologSink {
	return &ZerologSink{logger: WithComponent(component)}
}

// NewZerologSinkWithLogger creates a sink around a specific logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewZerologSinkWithLogger(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// LogStructured implements Sink.
func (s *ZerologSink) LogStructured(level Level, message string, metadata map[string]interface{}) {
	var event *zerolog.Event
	switch level {
	case LevelDebug:
		event = s.logger.Debug()
	case LevelWarn:
		event = s.logger.Warn()
	case LevelError:
		event = s.logger.Error()
	default:
		event = s.logger.Info()
	}

	// Stable field order keeps log lines diffable.
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := metadata[k].(type) {
		case error:
			event = event.AnErr(k, v)
		case string:
			event = event.Str(k, SanitizeLogValue(v))
		default:
			event = event.Interface(k, v)
		}
	}
	event.Msg(message)
}

// Record is one captured diagnostic call.
type Record struct {
	Level    Level
	Message  string
	Metadata map[string]interface{}
	Time     time.Time
}

// MemorySink captures diagnostic records for assertions in tests.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty capture sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// LogStructured implements Sink.
func (s *MemorySink) LogStructured(level Level, message string, metadata map[string]interface{}) {
	copied := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{
		Level:    level,
		Message:  message,
		Metadata: copied,
		Time:     time.Now(),
	})
}

// Records returns a copy of everything captured so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns how many records were captured at the given level.
func (s *MemorySink) Count(level Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

// Nop discards diagnostic records.
type Nop struct{}

// LogStructured implements Sink.
func (Nop) LogStructured(Level, string, map[string]interface{}) {}
