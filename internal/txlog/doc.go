// Package txlog provides the durable transaction log: an append-only record
// of every committed change-set, stored in SQLite.
//
// The log is the source of truth for history and for recovery. It is the
// only component that assigns sequence numbers.
//
// # Critical Patterns
//
// Gapless ordering
//   - seq is MAX(seq)+1, computed inside the append transaction
//   - appends are serialized by a mutex and a single connection
//   - rows are never updated or deleted (enforced by triggers)
//
// Durability
//   - Append returns only after the row is committed with synchronous=FULL
//
// Integrity
//   - every row carries fact.EntryHash of its contents; readers verify it and
//     report a CorruptEntryError on mismatch
//
// # Database Configuration
//
//   - WAL mode: readers do not block the appender
//   - synchronous=FULL: a returned seq survives power loss
//   - busy_timeout=5000: wait for locks up to 5 seconds
package txlog
