// Command sqlite2csv streams one table of a SQLite database file to CSV,
// or lists the database's tables when no table is named.
package main

import (
	"bufio"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/alecthomas/kong"

	sqlite3dump "github.com/jordanwade90/sqlite3dump"
	"github.com/jordanwade90/sqlite3dump/internal/diag"
)

var cli struct {
	Database   string `arg:"" help:"Path to SQLite database file" type:"existingfile"`
	Table      string `short:"t" help:"Table to export; omit to list tables"`
	Output     string `short:"o" help:"Output CSV path (defaults to stdout)" type:"path"`
	BlobFormat string `name:"blob-format" enum:"hex,base64" default:"hex" help:"Encoding for BLOB columns"`
	Verbose    bool   `short:"v" help:"Log page/schema diagnostics to stderr"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("sqlite2csv"),
		kong.Description("Dump a SQLite table to CSV, or list its tables"),
		kong.UsageOnError(),
	)
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sqlite2csv:", err)
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

	if cli.Table == "" {
		return listTables(db)
	}
	return dumpTable(db, cli.Table)
}

func listTables(db *sqlite3dump.DB) error {
	tables, err := db.Tables()
	if err != nil {
		return err
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}

func dumpTable(db *sqlite3dump.DB, table string) error {
	columns, err := db.Columns(table)
	if err != nil {
		return err
	}
	rowidAlias, err := db.RowidAlias(table)
	if err != nil {
		return err
	}
	it, err := db.Scan(table)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cli.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	w := bufio.NewWriterSize(out, 256*1024)
	if err := writeHeader(w, columns); err != nil {
		return err
	}

	start := time.Now()
	rows := 0
	for it.Next() {
		if err := writeDataRow(w, it.Row(), rowidAlias, cli.BlobFormat); err != nil {
			return err
		}
		rows++
	}
	if it.Err() != nil {
		return it.Err()
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "sqlite2csv: wrote %d rows from %q in %s\n", rows, table, time.Since(start).Round(time.Millisecond))
	return nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeHeader(w *bufio.Writer, columns []string) error {
	for i, c := range columns {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := writeCSVField(w, c); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func writeDataRow(w *bufio.Writer, row *sqlite3dump.Row, rowidAlias int, blobFormat string) error {
	for i := 0; i < row.Len(); i++ {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := writeValue(w, row, i, rowidAlias, blobFormat); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func writeValue(w *bufio.Writer, row *sqlite3dump.Row, i, rowidAlias int, blobFormat string) error {
	if row.IsNull(i) {
		if i == rowidAlias {
			_, err := w.WriteString(strconv.FormatInt(row.Rowid(), 10))
			return err
		}
		return nil
	}
	if n, err := row.Int(i); err == nil {
		_, err := w.WriteString(strconv.FormatInt(n, 10))
		return err
	}
	if f, err := row.Float(i); err == nil {
		_, err := w.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		return err
	}
	if s, err := row.Text(i); err == nil {
		return writeCSVField(w, s)
	}
	b, err := row.Blob(i)
	if err != nil {
		return err
	}
	if blobFormat == "base64" {
		_, err := w.WriteString(base64.StdEncoding.EncodeToString(b))
		return err
	}
	_, err = w.WriteString(hex.EncodeToString(b))
	return err
}

// writeCSVField writes s as one RFC 4180 field: quoted (with doubled
// embedded quotes) whenever it contains a comma, quote, or newline.
func writeCSVField(w *bufio.Writer, s string) error {
	needsQuoting := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',', '"', '\n', '\r':
			needsQuoting = true
		}
	}
	if !needsQuoting {
		_, err := w.WriteString(s)
		return err
	}
	if err := w.WriteByte('"'); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			if _, err := w.WriteString(`""`); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteByte(s[i]); err != nil {
			return err
		}
	}
	return w.WriteByte('"')
}
