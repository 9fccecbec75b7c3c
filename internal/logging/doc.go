// Package logging assembles structured slog loggers and helpers used across
// filmroom.
//
// Console output is rendered by tint (coloured only when every target is a
// terminal); JSON output uses slog's JSON handler with ts/level/msg keys.
// Context-aware helpers tag log lines with run IDs, stages, and correlation
// IDs. The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
