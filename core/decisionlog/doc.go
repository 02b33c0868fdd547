// Package decisionlog records every charge time recommendation so answers can
// be audited and savings aggregated later. Records are stored as JSON lines,
// optionally rotated with lumberjack, or in SQLite.
package decisionlog
