// Package log provides structured session logging for urcl-go.
//
// This package defines the Logger interface and Event types for capturing
// session-level events across the client's channels (dashboard, RTDE,
// reverse channel, session orchestration). It is separate from operational
// logging (slog) - session capture provides a complete machine-readable
// event trace for post-mortem analysis of a control run.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.SessionLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.SessionLogger, _ = log.NewFileLogger("/var/log/urcl/session.rlog")
//
//	// Both: use MultiLogger
//	cfg.SessionLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files use CBOR encoding with integer keys for compactness.
package log
