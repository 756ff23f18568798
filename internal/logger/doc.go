// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error.
// Entries are written through zap's console encoder; each entry carries a
// timestamp, level, message and, when given, the node ID as a structured
// "node" field.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Simulation started")
//	logger.Info("node-1", "Crashed in round %d", round)
//	logger.Error("node-1", "Failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("node-1", "Debug message")
//
// # Log Levels
//
// Messages below the configured level are filtered:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// ParseLevel converts CLI flag values such as "debug" or "warn".
//
// # Thread Safety
//
// The underlying writer is locked by zap and the level is atomic, so all
// logging operations are safe for concurrent use.
package logger
