// Package diag provides the structured, opt-in diagnostic logging used by
// the sqlite2csv and sqlite2parquet commands: page reads, schema
// resolution, and overflow-chain reassembly, at slog.LevelDebug.
package diag

import (
	"io"
	"log/slog"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Init installs the package logger. Verbose output (page/cell/table
// tracing) goes to stderr at debug level so it never interleaves with a
// CSV or Parquet stream written to stdout; without verbose, only
// warnings and above are shown.
func Init(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Page logs a page-level read: page number, B-tree role, and cell count.
func Page(pageNum uint32, role string, cellCount int) {
	logger.Debug("page", "page", pageNum, "role", role, "cells", cellCount)
}

// Overflow logs reassembly of a spilled payload across an overflow chain.
func Overflow(firstPage uint32, totalBytes, chainLength int) {
	logger.Debug("overflow", "first_page", firstPage, "bytes", totalBytes, "chain_length", chainLength)
}

// Schema logs resolution of one sqlite_schema table entry, using
// goccy/go-json to render the parsed column list compactly in the log
// line rather than slog's reflection-based attr encoding.
func Schema(table string, rootPage uint32, columns []string) {
	cols, err := json.Marshal(columns)
	if err != nil {
		cols = []byte("[]")
	}
	logger.Debug("schema", "table", table, "root_page", rootPage, "columns", string(cols))
}

// Warn logs a non-fatal condition (e.g. a row skipped by a sink).
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}
