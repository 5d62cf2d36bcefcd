// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

// StoreType selects the session storage backend.
type StoreType string

const (
	// StoreMemory keeps sessions in process memory (default, not persistent).
	StoreMemory StoreType = "memory"

	// StoreBadger persists sessions in an embedded BadgerDB.
	StoreBadger StoreType = "badger"

	// StoreRedis shares sessions between processes through Redis.
	StoreRedis StoreType = "redis"
)

// StoreOptions configures NewStoreFactory.
type StoreOptions struct {
	Type          StoreType
	BadgerPath    string
	RedisAddrs    []string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// StoreFactory opens the configured backend and owns its connection.
type StoreFactory struct {
	storeType StoreType
	db        *badger.DB
	rdb       redis.UniversalClient
	prefix    string
}

// NewStoreFactory opens the backend named by opts.Type. An empty type
// means memory.
func NewStoreFactory(ctx context.Context, opts StoreOptions) (*StoreFactory, error) {
	f := &StoreFactory{storeType: opts.Type, prefix: opts.RedisPrefix}
	if f.storeType == "" {
		f.storeType = StoreMemory
	}

	switch f.storeType {
	case StoreMemory:
	case StoreBadger:
		if opts.BadgerPath == "" {
			return nil, errors.New("badger session store requires a path")
		}
		bopts := badger.DefaultOptions(opts.BadgerPath)
		bopts.Logger = nil

		db, err := badger.Open(bopts)
		if err != nil {
			return nil, fmt.Errorf("open badger db for sessions: %w", err)
		}
		f.db = db
	case StoreRedis:
		if len(opts.RedisAddrs) == 0 {
			return nil, errors.New("redis session store requires at least one address")
		}
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    opts.RedisAddrs,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("%w: ping %s: %v", ErrRedisUnavailable, strings.Join(opts.RedisAddrs, ","), err)
		}
		f.rdb = rdb
	default:
		return nil, fmt.Errorf("unknown session store type %q", opts.Type)
	}

	return f, nil
}

// CreateStore returns a Store on the opened backend.
func (f *StoreFactory) CreateStore() Store {
	switch {
	case f.db != nil:
		return NewBadgerStore(f.db)
	case f.rdb != nil:
		return NewRedisStore(f.rdb, f.prefix)
	}
	return NewMemoryStore()
}

// Type returns the backend in use.
func (f *StoreFactory) Type() StoreType {
	return f.storeType
}

// Close releases the backend connection, if any.
func (f *StoreFactory) Close() error {
	var errs []error
	if f.db != nil {
		errs = append(errs, f.db.Close())
	}
	if f.rdb != nil {
		errs = append(errs, f.rdb.Close())
	}
	return errors.Join(errs...)
}
