// Package sqlite provides the SQLite-backed run history store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files; applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.deepone/runs.db
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite locking in WAL
// mode with a busy timeout, so concurrent CLI and MCP processes can share it.
package sqlite
