// Package logging assembles structured slog loggers and formatting helpers used
// across twitchrec processes.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so capture code can tag log
// lines with the streamer and recording session. When developer debugging is
// enabled every record is additionally mirrored into the debug log file.
//
// Prefer these constructors over hand-rolled slog setup so supervisor and
// worker output share one shape.
package logging
