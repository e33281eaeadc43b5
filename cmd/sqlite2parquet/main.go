// Command sqlite2parquet streams one table, or every table, of a SQLite
// database file into Parquet files.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	sqlite3dump "github.com/jordanwade90/sqlite3dump"
	"github.com/jordanwade90/sqlite3dump/internal/diag"
	"github.com/jordanwade90/sqlite3dump/parquetsink"
)

var cli struct {
	Database  string `arg:"" help:"Path to SQLite database file" type:"existingfile"`
	Table     string `arg:"" optional:"" help:"Table to export; omit to export every table"`
	Output    string `short:"o" help:"Output file (single table) or directory (all tables)" required:""`
	BatchSize int    `name:"batch-size" short:"b" default:"10000" help:"Rows per Parquet row group"`
	Verbose   bool   `short:"v" help:"Log page/schema diagnostics to stderr"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("sqlite2parquet"),
		kong.Description("Export SQLite tables to Parquet"),
		kong.UsageOnError(),
	)
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sqlite2parquet:", err)
		os.Exit(1)
	}
}

func run() error {
	diag.Init(cli.Verbose)

	db, err := sqlite3dump.Open(cli.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(os.Stderr, "sqlite2parquet: page size %d bytes, encoding %s, batch size %d\n",
		db.PageSize(), db.TextEncoding(), cli.BatchSize)

	if cli.Table != "" {
		return exportSingle(db, cli.Table, cli.Output)
	}
	return exportAll(db, cli.Output)
}

func exportSingle(db *sqlite3dump.DB, table, output string) error {
	rows, dur, size, err := exportTable(db, table, output)
	if err != nil {
		return fmt.Errorf("table %q: %w", table, err)
	}
	printSummary(table, rows, dur, size)
	return nil
}

func exportAll(db *sqlite3dump.DB, outputDir string) error {
	tables, err := db.Tables()
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Fprintln(os.Stderr, "sqlite2parquet: no tables found")
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	start := time.Now()
	totalRows := 0
	succeeded := 0
	for _, table := range tables {
		output := filepath.Join(outputDir, table+".parquet")
		rows, dur, size, err := exportTable(db, table, output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlite2parquet: table %q failed: %v\n", table, err)
			continue
		}
		succeeded++
		totalRows += rows
		printSummary(table, rows, dur, size)
	}

	elapsed := time.Since(start)
	fmt.Fprintf(os.Stderr, "sqlite2parquet: %d/%d tables, %d rows total, %s\n", succeeded, len(tables), totalRows, elapsed.Round(time.Millisecond))
	if succeeded == 0 {
		return fmt.Errorf("no tables exported successfully")
	}
	return nil
}

func exportTable(db *sqlite3dump.DB, table, output string) (rows int, dur time.Duration, size int64, err error) {
	columns, err := db.Columns(table)
	if err != nil {
		return 0, 0, 0, err
	}
	rowidAlias, err := db.RowidAlias(table)
	if err != nil {
		return 0, 0, 0, err
	}
	it, err := db.Scan(table)
	if err != nil {
		return 0, 0, 0, err
	}

	f, err := os.Create(output)
	if err != nil {
		return 0, 0, 0, err
	}

	sink := parquetsink.New(f, columns, rowidAlias, cli.BatchSize)
	start := time.Now()
	for it.Next() {
		if err := sink.Add(it.Row()); err != nil {
			sink.Close()
			return 0, 0, 0, err
		}
	}
	if it.Err() != nil {
		sink.Close()
		return 0, 0, 0, it.Err()
	}
	if err := sink.Close(); err != nil {
		return 0, 0, 0, err
	}

	dur = time.Since(start)
	info, statErr := os.Stat(output)
	if statErr == nil {
		size = info.Size()
	}
	return sink.Rows(), dur, size, nil
}

func printSummary(table string, rows int, dur time.Duration, size int64) {
	rowsPerSec := float64(0)
	if dur.Seconds() > 0 {
		rowsPerSec = float64(rows) / dur.Seconds()
	}
	fmt.Fprintf(os.Stderr, "sqlite2parquet: %s: %d rows, %.2f MB, %s (%.0f rows/sec)\n",
		table, rows, float64(size)/(1024*1024), dur.Round(time.Millisecond), rowsPerSec)
}
