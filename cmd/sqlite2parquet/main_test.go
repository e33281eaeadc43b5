package main

import (
	"os"
	"path/filepath"
	"testing"

	sqlite3dump "github.com/jordanwade90/sqlite3dump"
	"github.com/jordanwade90/sqlite3dump/internal/pagebuf"
	"github.com/jordanwade90/sqlite3dump/internal/svarint"
	"github.com/jordanwade90/sqlite3dump/record"
)

// buildTinyDB writes a one-table, one-page database with a couple of
// rows, for exercising exportTable without a real sqlite3 binary on
// hand.
func buildTinyDB(t *testing.T) string {
	t.Helper()
	const pageSize = 4096

	leaf := pagebuf.NewTableLeaf(pageSize)
	rows := []struct {
		rowid int64
		n     int64
		s     string
	}{
		{1, 10, "alpha"},
		{2, 20, "beta"},
	}
	for _, row := range rows {
		var rec record.Record
		rec.AppendInt(row.n)
		rec.AppendString(row.s)
		payload := rec.AppendTo(nil)
		cell := svarint.Append(nil, len(payload))
		cell = svarint.Append(cell, row.rowid)
		cell = append(cell, payload...)
		if !leaf.Add(cell) {
			t.Fatalf("row %d does not fit", row.rowid)
		}
	}
	tablePage := append([]byte(nil), leaf.Finish()...)

	header := pagebuf.NewDatabaseHeader(pageSize)
	var schemaRec record.Record
	schemaRec.AppendString("table")
	schemaRec.AppendString("t")
	schemaRec.AppendString("t")
	schemaRec.AppendInt(2)
	schemaRec.AppendString("CREATE TABLE t (n INTEGER, s TEXT)")
	schemaPayload := schemaRec.AppendTo(nil)
	schemaCell := svarint.Append(nil, len(schemaPayload))
	schemaCell = svarint.Append(schemaCell, 1)
	schemaCell = append(schemaCell, schemaPayload...)
	if !header.Add(schemaCell) {
		t.Fatal("schema row does not fit")
	}
	headerPage := append([]byte(nil), header.Finish(0)...)

	buf := make([]byte, 2*pageSize)
	copy(buf[0:pageSize], headerPage)
	copy(buf[pageSize:], tablePage)

	path := filepath.Join(t.TempDir(), "tiny.db")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestExportSingleTable(t *testing.T) {
	dbPath := buildTinyDB(t)
	outPath := filepath.Join(t.TempDir(), "t.parquet")

	cli.BatchSize = 10000
	defer func() { cli.BatchSize = 0 }()

	db, err := sqlite3dump.Open(dbPath)
	if err != nil {
		t.Fatalf("sqlite3dump.Open: %v", err)
	}
	defer db.Close()

	rows, _, size, err := exportTable(db, "t", outPath)
	if err != nil {
		t.Fatalf("exportTable: %v", err)
	}
	if rows != 2 {
		t.Errorf("rows = %d, want 2", rows)
	}
	if size == 0 {
		t.Error("exportTable produced an empty file")
	}
	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != size {
		t.Errorf("reported size %d != actual file size %d", size, info.Size())
	}
}
