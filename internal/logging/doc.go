// Package logging assembles the structured slog loggers used by mangarecap.
//
// It owns the console and JSON handlers, the size-rotated log file sink, and
// context helpers that tag records with chapter IDs, stages, providers and
// batch run IDs. A no-op logger is provided for tests and for wiring code
// that has no logger yet.
package logging
