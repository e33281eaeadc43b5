package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/jordanwade90/sqlite3dump/internal/svarint"
)

// ErrReservedSerialType is returned by Decode when a record header names
// serial type 10 or 11, which SQLite reserves and never produces.
var ErrReservedSerialType = errors.New("record: reserved serial type")

// Kind identifies the logical type of a decoded Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Value is a single decoded column value. Bytes is populated for KindText
// and KindBlob; it aliases the payload slice passed to Decode (the page
// buffer for on-page payloads, or an owned reassembly buffer for
// overflowed ones) and must not outlive it.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bytes []byte
}

// intWidths maps serial types 1-6 to their body width in bytes.
var intWidths = [7]int{0, 1, 2, 3, 4, 6, 8}

// Decode parses a SQLite record payload — a varint header length, a
// sequence of varint serial types filling the header, and the
// concatenated body bytes in the same order — into one Value per column.
// payload must be a single contiguous slice: the on-page cell payload
// when it did not spill to overflow pages, or the fully reassembled
// overflow buffer otherwise.
func Decode(payload []byte) ([]Value, error) {
	headerLen, n, err := svarint.Uvarint(payload)
	if err != nil {
		return nil, fmt.Errorf("record: reading header length: %w", err)
	}
	if headerLen < uint64(n) || headerLen > uint64(len(payload)) {
		return nil, fmt.Errorf("record: header length %d out of range for %d-byte payload", headerLen, len(payload))
	}

	var serials []uint64
	pos := n
	for pos < int(headerLen) {
		st, m, err := svarint.Uvarint(payload[pos:headerLen])
		if err != nil {
			return nil, fmt.Errorf("record: reading serial type: %w", err)
		}
		serials = append(serials, st)
		pos += m
	}
	if pos != int(headerLen) {
		return nil, fmt.Errorf("record: serial types overrun declared header length")
	}

	body := payload[headerLen:]
	values := make([]Value, len(serials))
	offset := 0

	for i, st := range serials {
		switch {
		case st == 0:
			values[i] = Value{Kind: KindNull}

		case st >= 1 && st <= 6:
			width := intWidths[st]
			if offset+width > len(body) {
				return nil, fmt.Errorf("record: column %d: int body truncated", i)
			}
			values[i] = Value{Kind: KindInt, Int: svarint.BigEndianInt(body[offset:offset+width], width)}
			offset += width

		case st == 7:
			if offset+8 > len(body) {
				return nil, fmt.Errorf("record: column %d: float body truncated", i)
			}
			bits := binary.BigEndian.Uint64(body[offset : offset+8])
			values[i] = Value{Kind: KindFloat, Float: math.Float64frombits(bits)}
			offset += 8

		case st == 8:
			values[i] = Value{Kind: KindInt, Int: 0}

		case st == 9:
			values[i] = Value{Kind: KindInt, Int: 1}

		case st == 10 || st == 11:
			return nil, fmt.Errorf("record: column %d: %w", i, ErrReservedSerialType)

		case st >= 12 && st%2 == 0:
			length := int((st - 12) / 2)
			if offset+length > len(body) {
				return nil, fmt.Errorf("record: column %d: blob body truncated", i)
			}
			values[i] = Value{Kind: KindBlob, Bytes: body[offset : offset+length]}
			offset += length

		case st >= 13 && st%2 == 1:
			length := int((st - 13) / 2)
			if offset+length > len(body) {
				return nil, fmt.Errorf("record: column %d: text body truncated", i)
			}
			values[i] = Value{Kind: KindText, Bytes: body[offset : offset+length]}
			offset += length

		default:
			return nil, fmt.Errorf("record: column %d: impossible serial type %d", i, st)
		}
	}

	return values, nil
}
