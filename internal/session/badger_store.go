// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	sessionKeyPrefix      = "session:"
	sessionUserKeyPrefix  = "session_user:"
	sessionTokenKeyPrefix = "session_rt:"
)

// maxTxnRetries bounds optimistic retries on badger.ErrConflict.
const maxTxnRetries = 10

// BadgerStore implements Store using BadgerDB for durable storage.
// Updates run in serializable transactions and retry on conflict.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a BadgerDB-backed session store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

// userIndexPrefix hex-encodes userID so that no user's prefix is a
// prefix of another user's.
func userIndexPrefix(userID string) []byte {
	return []byte(sessionUserKeyPrefix + hex.EncodeToString([]byte(userID)) + ":")
}

func userIndexKey(userID, id string) []byte {
	return append(userIndexPrefix(userID), id...)
}

func tokenIndexKey(refreshTokenID string) []byte {
	return []byte(sessionTokenKeyPrefix + refreshTokenID)
}

// Create stores a new session with its user and refresh-token indexes.
func (b *BadgerStore) Create(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	start := time.Now()
	err = b.retry(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(s.ID)); err == nil {
			return ErrSessionExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check session: %w", err)
		}

		if s.RefreshTokenID != "" {
			prev, err := getByTokenTxn(txn, s.RefreshTokenID)
			switch {
			case err == nil && !prev.IsRevoked():
				return ErrRefreshTokenInUse
			case err != nil && !errors.Is(err, ErrSessionNotFound):
				return err
			}
			if err := txn.Set(tokenIndexKey(s.RefreshTokenID), []byte(s.ID)); err != nil {
				return fmt.Errorf("set refresh token mapping: %w", err)
			}
		}

		if err := txn.Set(sessionKey(s.ID), data); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		if err := txn.Set(userIndexKey(s.UserID, s.ID), []byte(s.ID)); err != nil {
			return fmt.Errorf("set user mapping: %w", err)
		}
		return nil
	})
	metrics.RecordDBQuery("create", "badger_sessions", time.Since(start), ignoreDomainErr(err))
	return err
}

// Get retrieves a session by ID.
func (b *BadgerStore) Get(_ context.Context, id string) (*Session, error) {
	var s *Session
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByRefreshToken retrieves the session bound to a refresh token.
func (b *BadgerStore) GetByRefreshToken(_ context.Context, refreshTokenID string) (*Session, error) {
	var s *Session
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		s, err = getByTokenTxn(txn, refreshTokenID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByUser returns all sessions for a user.
func (b *BadgerStore) ListByUser(_ context.Context, userID string) ([]*Session, error) {
	var sessions []*Session

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := userIndexPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sessionID string
			if err := it.Item().Value(func(val []byte) error {
				sessionID = string(val)
				return nil
			}); err != nil {
				return fmt.Errorf("read user mapping: %w", err)
			}

			s, err := getTxn(txn, sessionID)
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if s.UserID != userID {
				continue
			}
			sessions = append(sessions, s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	sortByCreated(sessions)
	return sessions, nil
}

// List returns every stored session.
func (b *BadgerStore) List(ctx context.Context) ([]*Session, error) {
	var sessions []*Session

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var s Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}
			sessions = append(sessions, &s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}

	sortByCreated(sessions)
	return sessions, nil
}

// Update applies fn inside a serializable transaction, retrying on conflict.
func (b *BadgerStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error) {
	var result *Session

	start := time.Now()
	err := b.retry(ctx, func(txn *badger.Txn) error {
		current, err := getTxn(txn, id)
		if err != nil {
			return err
		}

		updated := current.Clone()
		if err := fn(updated); err != nil {
			return err
		}
		if err := checkTransition(current, updated); err != nil {
			return err
		}

		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		if err := txn.Set(sessionKey(id), data); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		result = updated
		return nil
	})
	metrics.RecordDBQuery("update", "badger_sessions", time.Since(start), ignoreDomainErr(err))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// retry runs fn in read-write transactions until it commits without a
// conflict, fails for another reason, or ctx ends.
func (b *BadgerStore) retry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return ErrTooManyConflicts
}

func getTxn(txn *badger.Txn, id string) (*Session, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &s)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

func getByTokenTxn(txn *badger.Txn, refreshTokenID string) (*Session, error) {
	item, err := txn.Get(tokenIndexKey(refreshTokenID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token mapping: %w", err)
	}

	var id string
	if err := item.Value(func(val []byte) error {
		id = string(val)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read refresh token mapping: %w", err)
	}
	return getTxn(txn, id)
}

// ignoreDomainErr hides expected domain outcomes from storage error metrics.
func ignoreDomainErr(err error) error {
	switch {
	case err == nil,
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionExists),
		errors.Is(err, ErrRefreshTokenInUse),
		errors.Is(err, ErrSessionRevoked),
		errors.Is(err, ErrRevocationPermanent),
		errors.Is(err, ErrImmutableField):
		return nil
	}
	return err
}
