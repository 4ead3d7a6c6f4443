// Package config loads the reportvault configuration from a YAML file.
//
// Sections:
//   - server: HTTP port, API-key auth, WebSocket status push interval
//   - store: data root, strict parsing, bounded retry of file operations
//   - queue: ingestion directory, target collection, rescan, dead letters
//   - cache: default read-cache TTL and per-collection overrides
//   - ledger: SQLite journal path (empty disables it)
//
// Load(path) applies defaults before unmarshalling, then validates. Watch
// reloads the file on change so cache TTLs can be tuned without a restart.
package config
