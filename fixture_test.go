package sqlite3dump

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jordanwade90/sqlite3dump/internal/pagebuf"
	"github.com/jordanwade90/sqlite3dump/internal/svarint"
	"github.com/jordanwade90/sqlite3dump/record"
)

// fixtureBuilder hand-assembles a minimal valid SQLite database file, one
// page at a time, for exercising Open/Scan/Columns end to end without a
// real sqlite3 binary on hand. Page 1 is reserved for the database
// header and sqlite_schema root; every other page is allocated on
// demand, including table roots and any overflow pages a spilled cell
// needs.
type fixtureBuilder struct {
	pageSize int
	pages    map[uint32][]byte
	next     uint32
}

func newFixtureBuilder(pageSize int) *fixtureBuilder {
	return &fixtureBuilder{pageSize: pageSize, pages: map[uint32][]byte{}, next: 2}
}

func (fb *fixtureBuilder) allocPage() uint32 {
	n := fb.next
	fb.next++
	return n
}

func (fb *fixtureBuilder) setPage(n uint32, data []byte) {
	if len(data) > fb.pageSize {
		panic("fixture page overflow")
	}
	fb.pages[n] = data
}

// write renders every allocated page into one contiguous file, in the
// order a real database would lay them out, and returns its path.
func (fb *fixtureBuilder) write(t *testing.T) string {
	t.Helper()
	total := int(fb.next - 1)
	buf := make([]byte, total*fb.pageSize)
	for n, data := range fb.pages {
		off := (int(n) - 1) * fb.pageSize
		copy(buf[off:off+len(data)], data)
	}
	path := filepath.Join(t.TempDir(), "fixture.db")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}
	return path
}

// buildCell encodes one table-leaf cell (varint payload length, varint
// rowid, inline payload, and — if the payload spills — a chain of
// overflow pages), following the same spill formula the reader itself
// uses to decide where the split falls.
func (fb *fixtureBuilder) buildCell(rowid int64, payload []byte) []byte {
	usable := fb.pageSize
	local := localPayloadSize(usable, len(payload))

	cell := svarint.Append(nil, len(payload))
	cell = svarint.Append(cell, rowid)
	cell = append(cell, payload[:local]...)
	if local == len(payload) {
		return cell
	}

	remaining := payload[local:]
	chunk := usable - 4
	n := (len(remaining) + chunk - 1) / chunk
	nums := make([]uint32, n)
	for i := range nums {
		nums[i] = fb.allocPage()
	}
	for i := 0; i < n; i++ {
		start := i * chunk
		end := start + chunk
		if end > len(remaining) {
			end = len(remaining)
		}
		page := make([]byte, 4+(end-start))
		var next uint32
		if i+1 < n {
			next = nums[i+1]
		}
		binary.BigEndian.PutUint32(page, next)
		copy(page[4:], remaining[start:end])
		fb.setPage(nums[i], page)
	}
	return binary.BigEndian.AppendUint32(cell, nums[0])
}

// rowPayload builds one record payload via the normal encoder, for use
// as a cell's body.
func rowPayload(build func(r *record.Record)) []byte {
	var rec record.Record
	build(&rec)
	return rec.AppendTo(nil)
}

// fixtureRow is one row destined for a table leaf, in ascending rowid
// order (table B-trees store cells that way; the reader trusts it).
type fixtureRow struct {
	rowid   int64
	payload []byte
}

// fixtureTable describes one table: its CREATE TABLE text (used to
// resolve columns and detect a rowid alias, exactly as a real
// sqlite_schema row would) and its rows.
type fixtureTable struct {
	name string
	sql  string
	rows []fixtureRow
}

// buildFixtureDB assembles a full single-leaf-per-table database (no
// interior B-tree pages; every table's root is a leaf) and returns the
// path to the resulting file.
func buildFixtureDB(t *testing.T, pageSize int, tables []fixtureTable) string {
	t.Helper()
	fb := newFixtureBuilder(pageSize)

	rootPages := make([]uint32, len(tables))
	for i, tbl := range tables {
		root := fb.allocPage()
		rootPages[i] = root
		leaf := pagebuf.NewTableLeaf(pageSize)
		for _, row := range tbl.rows {
			cell := fb.buildCell(row.rowid, row.payload)
			if !leaf.Add(cell) {
				t.Fatalf("fixture table %q: row rowid=%d does not fit on one leaf page", tbl.name, row.rowid)
			}
		}
		fb.setPage(root, append([]byte(nil), leaf.Finish()...))
	}

	header := pagebuf.NewDatabaseHeader(pageSize)
	for i, tbl := range tables {
		schemaPayload := rowPayload(func(r *record.Record) {
			r.AppendString("table")
			r.AppendString(tbl.name)
			r.AppendString(tbl.name)
			r.AppendInt(int64(rootPages[i]))
			r.AppendString(tbl.sql)
		})
		cell := fb.buildCell(int64(i+1), schemaPayload)
		if !header.Add(cell) {
			t.Fatalf("fixture: schema row for %q does not fit on the header page", tbl.name)
		}
	}
	fb.setPage(1, append([]byte(nil), header.Finish(0)...))

	return fb.write(t)
}
