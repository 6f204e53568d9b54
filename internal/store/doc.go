// Package store provides SQLite-backed storage for health records, medical
// data sources and resources, priority lists and access logs.
//
// Every statement is built from query-builder requests (package queryir)
// and compiled with bound parameters (package querysql); no method here
// formats values into SQL text.
//
// # Invariants
//
// Upsert conflict resolution
//   - A content duplicate (same dedupe hash, different uuid) keeps the
//     stored uuid and is always overwritten
//   - A same-uuid write overwrites only when its client record version is
//     at least the stored one
//   - Overwrite replaces every column and re-inserts all child rows
//
// Permission-filtered reads
//   - Visibility is resolved by identity.Resolve and rendered as a self
//     leg, an any-owner leg, or a UNION of both
//   - Reads that can see other apps' data write an access log entry in the
//     same transaction
//
// Deletes
//   - Read, check the matched count, then delete by sub-select, all in one
//     transaction
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity and cascades
//   - One open connection: SQLite has a single writer
package store
