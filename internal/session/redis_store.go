// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/sentinel/internal/metrics"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultRedisPrefix namespaces session keys when no prefix is configured.
const DefaultRedisPrefix = "sentinel"

// RedisStore implements Store on Redis so several processes can share
// session state. Writes use WATCH/MULTI optimistic transactions.
//
// Layout:
//
//	<prefix>:sess:<id>   session JSON
//	<prefix>:user:<uid>  set of session ids
//	<prefix>:rt:<rtid>   session id bound to a refresh token
//	<prefix>:all         set of every session id
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + ":sess:" + id
}

func (r *RedisStore) userKey(userID string) string {
	return r.prefix + ":user:" + userID
}

func (r *RedisStore) tokenKey(refreshTokenID string) string {
	return r.prefix + ":rt:" + refreshTokenID
}

func (r *RedisStore) allKey() string {
	return r.prefix + ":all"
}

// Create stores a new session and its indexes in one transaction.
func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	keys := []string{r.key(s.ID)}
	if s.RefreshTokenID != "" {
		keys = append(keys, r.tokenKey(s.RefreshTokenID))
	}

	start := time.Now()
	err = r.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, r.key(s.ID)).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrSessionExists
		}

		if s.RefreshTokenID != "" {
			prevID, err := tx.Get(ctx, r.tokenKey(s.RefreshTokenID)).Result()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				prev, err := r.getWith(ctx, tx, prevID)
				if err != nil && !errors.Is(err, ErrSessionNotFound) {
					return err
				}
				if prev != nil && !prev.IsRevoked() {
					return ErrRefreshTokenInUse
				}
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(s.ID), data, 0)
			pipe.SAdd(ctx, r.userKey(s.UserID), s.ID)
			pipe.SAdd(ctx, r.allKey(), s.ID)
			if s.RefreshTokenID != "" {
				pipe.Set(ctx, r.tokenKey(s.RefreshTokenID), s.ID, 0)
			}
			return nil
		})
		return err
	}, keys...)
	metrics.RecordDBQuery("create", "redis_sessions", time.Since(start), ignoreDomainErr(err))
	return err
}

// Get retrieves a session by ID.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	s, err := r.getWith(ctx, r.redis, id)
	if err != nil && !isDomainErr(err) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s, err
}

// GetByRefreshToken retrieves the session bound to a refresh token.
func (r *RedisStore) GetByRefreshToken(ctx context.Context, refreshTokenID string) (*Session, error) {
	id, err := r.redis.Get(ctx, r.tokenKey(refreshTokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return r.Get(ctx, id)
}

// ListByUser returns all sessions for a user.
func (r *RedisStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := r.redis.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return r.getMany(ctx, ids)
}

// List returns every stored session.
func (r *RedisStore) List(ctx context.Context) ([]*Session, error) {
	ids, err := r.redis.SMembers(ctx, r.allKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return r.getMany(ctx, ids)
}

// Update applies fn under WATCH and commits with MULTI/EXEC, retrying
// when another writer touched the session first.
func (r *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error) {
	var result *Session

	start := time.Now()
	err := r.watch(ctx, func(tx *redis.Tx) error {
		current, err := r.getWith(ctx, tx, id)
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
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(id), data, 0)
			return nil
		}); err != nil {
			return err
		}
		result = updated
		return nil
	}, r.key(id))
	metrics.RecordDBQuery("update", "redis_sessions", time.Since(start), ignoreDomainErr(err))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// watch runs fn in an optimistic transaction, retrying on redis.TxFailedErr.
func (r *RedisStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err := r.redis.Watch(ctx, fn, keys...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case isDomainErr(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return ErrTooManyConflicts
}

func (r *RedisStore) getWith(ctx context.Context, c redis.Cmdable, id string) (*Session, error) {
	data, err := c.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) getMany(ctx context.Context, ids []string) ([]*Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("unmarshal session %s: %w", ids[i], err)
		}
		sessions = append(sessions, &s)
	}

	sortByCreated(sessions)
	return sessions, nil
}

func isDomainErr(err error) bool {
	return err != nil && ignoreDomainErr(err) == nil
}
