// Package main is the entry point for the live React preview server.
//
// The server keeps editing workspaces in memory, compiles their files into
// a single sandboxed HTML document and mounts it behind an unguessable
// preview URL. Saved projects live in SQLite.
//
// Configuration:
//   - Defaults for development
//   - TOML file (-config or CONFIG_FILE)
//   - Environment variables (override the file)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -config /etc/react-editor.toml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
