// Package testutil provides shared test doubles: a deterministic
// embedder, a scripted generator, an SSE stream parser, a quiet
// logger, and a disposable PostgreSQL container for integration tests.
package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output.
// Use this in tests to reduce noise.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
