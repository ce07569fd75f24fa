// Package logging assembles structured slog loggers and formatting helpers used
// across aegis.
//
// It owns the console and JSON handlers, the tee that mirrors terminal output
// into the JSON log file, and context-aware helpers that tag log lines with
// chunk IDs, modalities, stages, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
