// Package parquetsink writes a stream of decoded table rows to a Parquet
// file. It mirrors the column-type inference and row-group batching of
// the Rust reference's parquet_writer (export_table_to_parquet): each
// column's Parquet type is fixed from the first non-null value in the
// first row group written (see Writer), and rows are buffered into row
// groups of a caller-chosen size.
package parquetsink

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	sqlite3dump "github.com/jordanwade90/sqlite3dump"
)

// ColumnKind is the Parquet-facing type assigned to one output column.
type ColumnKind int

const (
	KindUnknown ColumnKind = iota
	KindInt64
	KindFloat64
	KindUTF8
	KindBinary
)

// cell is a column value copied out of a Row so it can be buffered past
// the row-lifetime boundary Row itself enforces.
type cell struct {
	null bool
	kind ColumnKind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Writer accumulates decoded rows and flushes them to a Parquet file in
// row groups of batchSize rows. The schema (one field per table column)
// is fixed the first time a row group is flushed: each column's type is
// whichever ColumnKind its first non-null cell in that opening batch
// implies, and a column that is NULL throughout the opening batch falls
// back to KindBinary, matching SQLite's own byte-array treatment of an
// all-NULL column.
type Writer struct {
	columns    []string
	rowidAlias int // index of the INTEGER PRIMARY KEY column, or -1
	batchSize  int

	out      io.WriteCloser
	buffered [][]cell
	kinds    []ColumnKind
	schema   *parquet.Schema
	pw       *parquet.Writer
	rows     int
}

// New returns a Writer for a table with the given column names, writing
// to out. rowidAlias is the index of the table's INTEGER PRIMARY KEY
// column (see sqlite3dump.DB.RowidAlias), or -1 if it has none.
func New(out io.WriteCloser, columns []string, rowidAlias, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = 10000
	}
	return &Writer{
		columns:    columns,
		rowidAlias: rowidAlias,
		batchSize:  batchSize,
		out:        out,
		kinds:      make([]ColumnKind, len(columns)),
	}
}

// Add snapshots one row's values and buffers it, flushing a row group
// once batchSize rows have accumulated.
func (w *Writer) Add(row *sqlite3dump.Row) error {
	cells := make([]cell, len(w.columns))
	for i := range w.columns {
		cells[i] = snapshotCell(row, i, w.rowidAlias)
	}
	w.buffered = append(w.buffered, cells)
	if len(w.buffered) >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Close flushes any remaining buffered rows and closes the underlying
// Parquet writer (and, via out, the file).
func (w *Writer) Close() error {
	if len(w.buffered) > 0 {
		if err := w.flush(); err != nil {
			return err
		}
	}
	if w.pw == nil {
		// No rows were ever written; still produce a valid, empty file
		// with a best-effort schema (every column typed Binary).
		w.establishSchema(nil)
	}
	if err := w.pw.Close(); err != nil {
		return err
	}
	return w.out.Close()
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int { return w.rows }

func (w *Writer) flush() error {
	if w.pw == nil {
		w.establishSchema(w.buffered)
	}
	rows := make([]parquet.Row, len(w.buffered))
	for i, cells := range w.buffered {
		rows[i] = buildRow(w.kinds, cells)
	}
	if _, err := w.pw.WriteRows(rows); err != nil {
		return fmt.Errorf("parquetsink: writing row group: %w", err)
	}
	w.rows += len(w.buffered)
	w.buffered = w.buffered[:0]
	return nil
}

func (w *Writer) establishSchema(sample [][]cell) {
	for _, cells := range sample {
		for i, c := range cells {
			if w.kinds[i] == KindUnknown && !c.null {
				w.kinds[i] = c.kind
			}
		}
	}
	for i, k := range w.kinds {
		if k == KindUnknown {
			w.kinds[i] = KindBinary
		}
	}
	group := make(parquet.Group, len(w.columns))
	for i, name := range w.columns {
		group[name] = parquet.Optional(leafNode(w.kinds[i]))
	}
	w.schema = parquet.NewSchema("row", group)
	w.pw = parquet.NewWriter(w.out, w.schema)
}

func leafNode(k ColumnKind) parquet.Node {
	switch k {
	case KindInt64:
		return parquet.Leaf(parquet.Int64Type)
	case KindFloat64:
		return parquet.Leaf(parquet.DoubleType)
	case KindUTF8:
		return parquet.String()
	default:
		return parquet.Leaf(parquet.ByteArrayType)
	}
}

func buildRow(kinds []ColumnKind, cells []cell) parquet.Row {
	row := make(parquet.Row, 0, len(cells))
	for i, c := range cells {
		if c.null {
			row = append(row, parquet.NullValue())
			continue
		}
		switch kinds[i] {
		case KindInt64:
			row = append(row, parquet.ValueOf(c.i))
		case KindFloat64:
			row = append(row, parquet.ValueOf(c.f))
		case KindUTF8:
			row = append(row, parquet.ValueOf(c.s))
		default:
			row = append(row, parquet.ValueOf(c.b))
		}
	}
	return row
}

func snapshotCell(row *sqlite3dump.Row, i, rowidAlias int) cell {
	if row.IsNull(i) {
		if i == rowidAlias {
			return cell{kind: KindInt64, i: row.Rowid()}
		}
		return cell{null: true}
	}
	if n, err := row.Int(i); err == nil {
		return cell{kind: KindInt64, i: n}
	}
	if f, err := row.Float(i); err == nil {
		return cell{kind: KindFloat64, f: f}
	}
	if s, err := row.Text(i); err == nil {
		return cell{kind: KindUTF8, s: s}
	}
	if b, err := row.Blob(i); err == nil {
		return cell{kind: KindBinary, b: append([]byte(nil), b...)}
	}
	return cell{null: true}
}
