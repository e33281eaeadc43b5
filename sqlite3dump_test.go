package sqlite3dump

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jordanwade90/sqlite3dump/internal/pagebuf"
	"github.com/jordanwade90/sqlite3dump/record"
)

func TestScanEmptyTable(t *testing.T) {
	path := buildFixtureDB(t, 4096, []fixtureTable{
		{name: "t", sql: "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)"},
	})

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	cols, err := db.Columns("t")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if strings.Join(cols, ",") != "id,v" {
		t.Errorf("Columns = %v, want [id v]", cols)
	}

	it, err := db.Scan("t")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if it.Next() {
		t.Fatalf("Next on empty table returned true")
	}
	if it.Err() != nil {
		t.Fatalf("Err after empty scan: %v", it.Err())
	}
}

func TestScanBasicRows(t *testing.T) {
	path := buildFixtureDB(t, 4096, []fixtureTable{
		{
			name: "t",
			sql:  "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)",
			rows: []fixtureRow{
				{rowid: 1, payload: rowPayload(func(r *record.Record) {
					r.AppendNull()
					r.AppendString("a")
				})},
				{rowid: 2, payload: rowPayload(func(r *record.Record) {
					r.AppendNull()
					r.AppendString("b")
				})},
				{rowid: 3, payload: rowPayload(func(r *record.Record) {
					r.AppendNull()
					r.AppendNull()
				})},
			},
		},
	})

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	alias, err := db.RowidAlias("t")
	if err != nil {
		t.Fatalf("RowidAlias: %v", err)
	}
	if alias != 0 {
		t.Fatalf("RowidAlias = %d, want 0", alias)
	}

	it, err := db.Scan("t")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	type want struct {
		rowid  int64
		v      string
		vIsNil bool
	}
	wants := []want{{1, "a", false}, {2, "b", false}, {3, "", true}}
	var got []want
	for it.Next() {
		row := it.Row()
		if !row.IsNull(0) {
			t.Errorf("rowid=%d: id column is not NULL on disk, want rowid-alias NULL", row.Rowid())
		}
		w := want{rowid: row.Rowid(), vIsNil: row.IsNull(1)}
		if !w.vIsNil {
			s, err := row.Text(1)
			if err != nil {
				t.Fatalf("Text(1): %v", err)
			}
			w.v = s
		}
		got = append(got, w)
	}
	if it.Err() != nil {
		t.Fatalf("Err: %v", it.Err())
	}
	if len(got) != len(wants) {
		t.Fatalf("got %d rows, want %d", len(got), len(wants))
	}
	for i, g := range got {
		if g != wants[i] {
			t.Errorf("row %d = %+v, want %+v", i, g, wants[i])
		}
	}
}

func TestScanOverflowText(t *testing.T) {
	var big strings.Builder
	for i := 0; i < 10000; i++ {
		big.WriteByte(byte('a' + i%26))
	}
	text := big.String()

	path := buildFixtureDB(t, 512, []fixtureTable{
		{
			name: "big",
			sql:  "CREATE TABLE big (v TEXT)",
			rows: []fixtureRow{
				{rowid: 1, payload: rowPayload(func(r *record.Record) {
					r.AppendString(text)
				})},
			},
		},
	})

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	it, err := db.Scan("big")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !it.Next() {
		t.Fatalf("Next: no rows, err=%v", it.Err())
	}
	got, err := it.Row().Text(0)
	if err != nil {
		t.Fatalf("Text(0): %v", err)
	}
	if got != text {
		t.Fatalf("overflowed text mismatch: got %d bytes, want %d bytes", len(got), len(text))
	}
	if it.Next() {
		t.Fatalf("expected exactly one row")
	}
	if it.Err() != nil {
		t.Fatalf("Err: %v", it.Err())
	}
}

func TestMultiTableSchema(t *testing.T) {
	path := buildFixtureDB(t, 4096, []fixtureTable{
		{
			name: "a",
			sql:  "CREATE TABLE a (x INTEGER)",
			rows: []fixtureRow{{rowid: 1, payload: rowPayload(func(r *record.Record) { r.AppendInt(7) })}},
		},
		{
			name: "b",
			sql:  "CREATE TABLE b (y TEXT, z BLOB)",
			rows: []fixtureRow{{rowid: 1, payload: rowPayload(func(r *record.Record) {
				r.AppendString("hi")
				r.AppendBlob([]byte{1, 2, 3})
			})}},
		},
	})

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	tables, err := db.Tables()
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if strings.Join(tables, ",") != "a,b" {
		t.Fatalf("Tables = %v, want [a b]", tables)
	}

	colsA, err := db.Columns("a")
	if err != nil || strings.Join(colsA, ",") != "x" {
		t.Errorf("Columns(a) = %v, %v", colsA, err)
	}
	colsB, err := db.Columns("b")
	if err != nil || strings.Join(colsB, ",") != "y,z" {
		t.Errorf("Columns(b) = %v, %v", colsB, err)
	}

	it, err := db.Scan("b")
	if err != nil {
		t.Fatalf("Scan(b): %v", err)
	}
	if !it.Next() {
		t.Fatalf("Scan(b): no rows")
	}
	z, err := it.Row().Blob(1)
	if err != nil || string(z) != "\x01\x02\x03" {
		t.Errorf("Blob(1) = %v, %v", z, err)
	}
}

func TestResolveTableNotFound(t *testing.T) {
	path := buildFixtureDB(t, 4096, []fixtureTable{
		{name: "t", sql: "CREATE TABLE t (x INTEGER)"},
	})

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	_, err = db.Columns("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Columns(nope) = %v, want ErrNotFound", err)
	}
}

func TestOpenBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.db")
	buf := make([]byte, 512)
	copy(buf, "not a sqlite file at all")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Open(path)
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("Open(bad header) = %v, want ErrBadHeader", err)
	}
}

// TestScanInteriorBTree exercises the interior-page descent path in
// RowIter.Next (every other test here roots a table directly at a leaf
// page): one interior root page with one explicit cell plus a
// right-most pointer, fanning out to two leaf pages.
func TestScanInteriorBTree(t *testing.T) {
	const pageSize = 512
	fb := newFixtureBuilder(pageSize)

	leafA := pagebuf.NewTableLeaf(pageSize)
	for _, row := range []struct {
		rowid int64
		n     int64
	}{{1, 10}, {2, 20}} {
		cell := fb.buildCell(row.rowid, rowPayload(func(r *record.Record) { r.AppendInt(row.n) }))
		if !leafA.Add(cell) {
			t.Fatalf("leaf A: row %d does not fit", row.rowid)
		}
	}
	pageA := fb.allocPage()
	fb.setPage(pageA, append([]byte(nil), leafA.Finish()...))

	leafB := pagebuf.NewTableLeaf(pageSize)
	for _, row := range []struct {
		rowid int64
		n     int64
	}{{3, 30}, {4, 40}} {
		cell := fb.buildCell(row.rowid, rowPayload(func(r *record.Record) { r.AppendInt(row.n) }))
		if !leafB.Add(cell) {
			t.Fatalf("leaf B: row %d does not fit", row.rowid)
		}
	}
	pageB := fb.allocPage()
	fb.setPage(pageB, append([]byte(nil), leafB.Finish()...))

	ti := pagebuf.NewTableInterior(pageSize)
	ti.Add(pagebuf.PageNumber(pageA), 2)
	ti.Add(pagebuf.PageNumber(pageB), 4)
	interior := make([]byte, pageSize)
	_, empty := ti.Put(interior)
	if !empty {
		t.Fatal("TableInterior.Put left cells buffered after a 2-child node")
	}
	rootPage := fb.allocPage()
	fb.setPage(rootPage, interior)

	header := pagebuf.NewDatabaseHeader(pageSize)
	schemaPayload := rowPayload(func(r *record.Record) {
		r.AppendString("table")
		r.AppendString("m")
		r.AppendString("m")
		r.AppendInt(int64(rootPage))
		r.AppendString("CREATE TABLE m (n INTEGER)")
	})
	if !header.Add(fb.buildCell(1, schemaPayload)) {
		t.Fatal("schema row does not fit on the header page")
	}
	fb.setPage(1, append([]byte(nil), header.Finish(0)...))

	path := fb.write(t)

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	it, err := db.Scan("m")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var gotRowids []int64
	var gotN []int64
	for it.Next() {
		row := it.Row()
		n, err := row.Int(0)
		if err != nil {
			t.Fatalf("Int(0): %v", err)
		}
		gotRowids = append(gotRowids, row.Rowid())
		gotN = append(gotN, n)
	}
	if it.Err() != nil {
		t.Fatalf("Err: %v", it.Err())
	}
	wantRowids := []int64{1, 2, 3, 4}
	wantN := []int64{10, 20, 30, 40}
	if len(gotRowids) != len(wantRowids) {
		t.Fatalf("got %d rows, want %d", len(gotRowids), len(wantRowids))
	}
	for i := range wantRowids {
		if gotRowids[i] != wantRowids[i] || gotN[i] != wantN[i] {
			t.Errorf("row %d: rowid=%d n=%d, want rowid=%d n=%d", i, gotRowids[i], gotN[i], wantRowids[i], wantN[i])
		}
	}
}

func TestOpenTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.db")
	if err := os.WriteFile(path, []byte("short"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// The file is too short even to read a full header, so Open fails
	// before header validation gets a chance to run.
	if _, err := Open(path); err == nil {
		t.Fatal("Open(short file) succeeded, want error")
	}
}
