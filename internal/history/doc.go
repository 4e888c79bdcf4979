// Package history keeps an append-only SQLite log of recording passes.
//
// Every pass the lifecycle controller completes is stored with its impact
// level, so regressions in a provider's API can be traced across runs.
//
// # Ordering
//
// Rows carry a logical seq assigned on insert. All queries order by
// seq ASC, id ASC COLLATE BINARY; timestamps are never used for ordering.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - a single open connection, since SQLite allows one writer
package history
