// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package wal is a BadgerDB write-ahead spool for audit records that could
not reach the audit store.

The audit logger writes a record here when the store rejects it or when
its in-memory buffer is full. ReplayPending later hands each entry back to
a Replayer (the audit logger) and deletes it once the store accepts it:

	audit.Logger ──store error──► WAL.Write ──► pending:<uuidv7>
	                                               │
	RetryService ──ReplayPending──► Replayer.Replay ─► store
	                                               │
	                                   success ──► Confirm (delete)
	                                   failure ──► UpdateAttempt (backoff)

Entry IDs are UUIDv7, so iteration replays records in write order.

Retry policy:
  - an entry is retried once its exponential backoff
    (RetryBackoff doubled per failed attempt, capped at MaxBackoff) has elapsed
  - an entry older than EntryTTL or past MaxRetries is discarded and
    counted in sentinel_wal_discarded_total

Only one replay runs at a time; a concurrent call returns immediately with
an empty result. Entries left pending at shutdown are replayed after the
next start.
*/
package wal
