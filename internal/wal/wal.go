// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/sentinel/internal/logging"
)

var (
	ErrWALClosed     = errors.New("wal is closed")
	ErrEntryNotFound = errors.New("wal entry not found")
	ErrEmptyEntryID  = errors.New("wal entry id is empty")
	ErrEmptyPayload  = errors.New("wal payload is empty")
)

const prefixPending = "pending:"

// Entry is one spooled record.
type Entry struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// Stats is a snapshot of spool counters.
type Stats struct {
	PendingCount  int64
	TotalWrites   int64
	TotalConfirms int64
	TotalRetries  int64
	LastReplay    time.Time
}

// WAL is a BadgerDB-backed spool of pending records.
type WAL struct {
	db     *badger.DB
	config Config
	now    func() time.Time

	totalWrites   atomic.Int64
	totalConfirms atomic.Int64
	totalRetries  atomic.Int64

	mu         sync.RWMutex
	closed     bool
	lastReplay time.Time

	replaying sync.Mutex
}

// Open validates cfg and opens the spool.
func Open(cfg Config) (*WAL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid WAL config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	w := &WAL{db: db, config: cfg, now: time.Now}
	pending := w.countPending()
	walPendingEntries.Set(float64(pending))

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Int64("pending", pending).
		Msg("Audit WAL opened")
	return w, nil
}

// Config returns the configuration the spool was opened with.
func (w *WAL) Config() Config {
	return w.config
}

func (w *WAL) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWALClosed
	}
	return nil
}

// Write spools payload under kind and returns the entry ID.
func (w *WAL) Write(ctx context.Context, kind string, payload []byte) (string, error) {
	start := time.Now()
	defer func() { walWriteLatency.Observe(time.Since(start).Seconds()) }()

	if err := w.checkOpen(); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate entry id: %w", err)
	}
	entry := &Entry{
		ID:        id.String(),
		Kind:      kind,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: w.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	err = w.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(prefixPending+entry.ID), data).WithTTL(w.config.EntryTTL))
	})
	recordWrite(kind, err)
	if err != nil {
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	w.totalWrites.Add(1)
	walPendingEntries.Inc()
	return entry.ID, nil
}

// Confirm removes an entry after it reached the store.
func (w *WAL) Confirm(_ context.Context, entryID string) error {
	if err := w.remove(entryID); err != nil {
		return err
	}
	w.totalConfirms.Add(1)
	return nil
}

// Delete removes an entry without counting it as confirmed.
func (w *WAL) Delete(_ context.Context, entryID string) error {
	return w.remove(entryID)
}

func (w *WAL) remove(entryID string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	key := []byte(prefixPending + entryID)
	err := w.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}
	walPendingEntries.Dec()
	return nil
}

// UpdateAttempt records a failed replay.
func (w *WAL) UpdateAttempt(_ context.Context, entryID, lastError string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	key := []byte(prefixPending + entryID)
	err := w.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}

		var entry Entry
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}
		entry.Attempts++
		entry.LastAttemptAt = w.now().UTC()
		entry.LastError = lastError

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		// Keep the original expiry.
		e := badger.NewEntry(key, data)
		if exp := item.ExpiresAt(); exp > 0 {
			if remaining := time.Until(time.Unix(int64(exp), 0)); remaining > 0 {
				e = e.WithTTL(remaining)
			}
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return err
	}
	w.totalRetries.Add(1)
	return nil
}

// GetPending returns every pending entry in write order. Entries that do
// not decode are deleted.
func (w *WAL) GetPending(ctx context.Context) ([]*Entry, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	var corrupt [][]byte
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Corrupt WAL entry")
				corrupt = append(corrupt, item.KeyCopy(nil))
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read pending entries: %w", err)
	}

	if len(corrupt) > 0 {
		if err := w.db.Update(func(txn *badger.Txn) error {
			for _, k := range corrupt {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			logging.Error().Err(err).Msg("Failed to delete corrupt WAL entries")
		} else {
			for range corrupt {
				recordDiscard("corrupt")
			}
		}
	}

	walPendingEntries.Set(float64(len(entries)))
	return entries, nil
}

func (w *WAL) countPending() int64 {
	var n int64
	_ = w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Stats returns spool counters.
func (w *WAL) Stats() Stats {
	w.mu.RLock()
	last := w.lastReplay
	closed := w.closed
	w.mu.RUnlock()

	var pending int64
	if !closed {
		pending = w.countPending()
	}
	return Stats{
		PendingCount:  pending,
		TotalWrites:   w.totalWrites.Load(),
		TotalConfirms: w.totalConfirms.Load(),
		TotalRetries:  w.totalRetries.Load(),
		LastReplay:    last,
	}
}

// RunGC reclaims value log space. badger.ErrNoRewrite is not an error.
func (w *WAL) RunGC() error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if w.config.InMemory {
		return nil
	}
	err := w.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the database. Pending entries stay on disk for the next start.
func (w *WAL) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	// Wait for a running replay to finish with the database.
	w.replaying.Lock()
	defer w.replaying.Unlock()

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Audit WAL closed")
	return nil
}
