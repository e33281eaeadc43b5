package sqlite3dump

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/jordanwade90/sqlite3dump/record"
)

// Row is one decoded table row: a rowid plus a positional value sequence.
// A Row returned by RowIter.Row is only valid until the next call to Next;
// copy out anything that must outlive the step (see the package doc).
type Row struct {
	rowid    int64
	values   []record.Value
	encoding TextEncoding
}

// Rowid returns the row's 64-bit primary key.
func (r *Row) Rowid() int64 { return r.rowid }

// Len returns the number of columns in the row.
func (r *Row) Len() int { return len(r.values) }

// IsNull reports whether column i holds SQL NULL.
func (r *Row) IsNull(i int) bool {
	return i >= 0 && i < len(r.values) && r.values[i].Kind == record.KindNull
}

// Int coerces column i to an integer. It fails with a TypeMismatchError
// for any column not stored as an integer; SQLite's 0/1 "constant"
// serial types also decode as KindInt, so boolean-ish columns read
// naturally through this accessor.
func (r *Row) Int(i int) (int64, error) {
	v, err := r.at(i)
	if err != nil {
		return 0, err
	}
	if v.Kind != record.KindInt {
		return 0, &TypeMismatchError{Column: i, Have: v.Kind.String(), Want: "int"}
	}
	return v.Int, nil
}

// Float coerces column i to a float64. Integer columns widen to float
// without error, matching SQLite's own dynamic typing; any other kind
// fails with a TypeMismatchError.
func (r *Row) Float(i int) (float64, error) {
	v, err := r.at(i)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case record.KindFloat:
		return v.Float, nil
	case record.KindInt:
		return float64(v.Int), nil
	default:
		return 0, &TypeMismatchError{Column: i, Have: v.Kind.String(), Want: "float"}
	}
}

// Text coerces column i to a string, decoding it from the database's
// declared text encoding (UTF-8, UTF-16LE, or UTF-16BE) into UTF-8. It
// fails with a TypeMismatchError for any column not stored as text.
func (r *Row) Text(i int) (string, error) {
	v, err := r.at(i)
	if err != nil {
		return "", err
	}
	if v.Kind != record.KindText {
		return "", &TypeMismatchError{Column: i, Have: v.Kind.String(), Want: "text"}
	}
	return decodeText(v.Bytes, r.encoding), nil
}

// Blob returns column i's raw bytes. It fails with a TypeMismatchError
// for any column not stored as a blob.
func (r *Row) Blob(i int) ([]byte, error) {
	v, err := r.at(i)
	if err != nil {
		return nil, err
	}
	if v.Kind != record.KindBlob {
		return nil, &TypeMismatchError{Column: i, Have: v.Kind.String(), Want: "blob"}
	}
	return v.Bytes, nil
}

func (r *Row) at(i int) (record.Value, error) {
	if i < 0 || i >= len(r.values) {
		return record.Value{}, &TypeMismatchError{Column: i, Have: "out of range", Want: "valid column index"}
	}
	return r.values[i], nil
}

// decodeText converts raw record bytes into a Go string according to the
// database's declared encoding. UTF-8 is passed through without
// validation, leaving encoding validation to the sink.
func decodeText(b []byte, enc TextEncoding) string {
	switch enc {
	case EncodingUTF16LE:
		return string(utf16.Decode(decodeUTF16Units(b, binary.LittleEndian)))
	case EncodingUTF16BE:
		return string(utf16.Decode(decodeUTF16Units(b, binary.BigEndian)))
	default:
		return string(b)
	}
}

func decodeUTF16Units(b []byte, order binary.ByteOrder) []uint16 {
	n := len(b) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = order.Uint16(b[2*i : 2*i+2])
	}
	return units
}
