// Package recording provides the persisted data model for recorded HTTP traffic.
//
// A recording file is a JSON document addressed by index key and content hash:
//
//	{
//	  "profile/provider/usecase": {
//	    "<content hash>": [ { "scope": "...", "method": "GET", ... } ]
//	  }
//	}
//
// # File Layout
//
// For a fixture base path `<dir>/<name>` the store uses:
//   - main file:      <dir>/<name>.json
//   - candidate file: <dir>/<name>-new.json
//   - archives:       <dir>/old/<name>_<n>.json (n is the first unused integer)
//
// # Invariants
//
//   - At most one InteractionSet per (index, hash) in a file.
//   - A write replaces the hash entry wholesale; entries are never merged field by field.
//   - Interaction order is significant. Sets are compared positionally.
//
// # Concurrency
//
// The store performs read-modify-write sequences without locking. PromoteCandidate
// reads, renames and deletes several files in turn. Callers must have exclusive
// access to a fixture path for the duration of a test run.
//
// Content hashes for test inputs are computed via HashInput using RFC 8785
// canonical JSON and SHA-256 with domain separation.
package recording
