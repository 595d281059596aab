// Package logging configures structured logging for Ganymede.
//
// It builds a log/slog logger from configuration (level and format) and
// installs it as the process default. Components derive child loggers with
// a "component" attribute:
//
//	logger := slog.Default().With("component", "admission")
package logging
