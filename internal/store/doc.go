// Package store provides SQLite-backed persistence for patterns, apply jobs
// and structural operations.
//
// # Tables
//
//   - patterns: compiled step records as canonical JSON, plus summary columns
//   - jobs, job_steps: the latest snapshot of every apply job
//   - structural_operations: the row/column operation log
//
// Writers upsert: SaveJob and RecordOperations replace the stored row for the
// same id, so the engine and the operation log can persist every transition
// without tracking what was written before.
//
// # Ordering
//
// List queries are deterministic: patterns and jobs by created_at then id,
// operations by seq.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
