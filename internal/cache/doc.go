// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package cache provides a small TTL cache for expensive read-only query
// results such as the security overview and audit reports.
//
// Entries expire lazily on Get; Cleanup removes expired entries in bulk and
// is run periodically by the supervisor. When the cache is full, Set evicts
// the entry closest to expiry.
//
//	c := cache.New("api", 15*time.Second, 1024)
//	key := cache.GenerateKey("overview", map[string]string{"timeframe": "24h"})
//	if v, ok := c.Get(key); ok {
//	    return v.(*audit.SecurityOverview)
//	}
//
// Hits and misses are exported as sentinel_query_cache_requests_total.
package cache
