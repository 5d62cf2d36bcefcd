// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultLockStripes is the stripe count used when none is configured.
const DefaultLockStripes = 64

// keyLock serializes work per key with a fixed set of mutexes. Keys that
// hash to the same stripe share a mutex.
type keyLock struct {
	stripes []sync.Mutex
}

func newKeyLock(n int) *keyLock {
	if n <= 0 {
		n = DefaultLockStripes
	}
	return &keyLock{stripes: make([]sync.Mutex, n)}
}

func (k *keyLock) stripe(key string) *sync.Mutex {
	return &k.stripes[xxhash.Sum64String(key)%uint64(len(k.stripes))]
}

// Lock locks key and returns the matching unlock function.
func (k *keyLock) Lock(key string) func() {
	mu := k.stripe(key)
	mu.Lock()
	return mu.Unlock
}
