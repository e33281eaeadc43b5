package sqlite3dump

import "encoding/binary"

// headerSize is the fixed size of the database header at the start of
// page 1.
const headerSize = 100

const magic = "SQLite format 3\x00"

// TextEncoding identifies the per-database text encoding declared in the
// database header.
type TextEncoding uint32

const (
	EncodingUTF8    TextEncoding = 1
	EncodingUTF16LE TextEncoding = 2
	EncodingUTF16BE TextEncoding = 3
)

func (e TextEncoding) String() string {
	switch e {
	case EncodingUTF8:
		return "UTF-8"
	case EncodingUTF16LE:
		return "UTF-16LE"
	case EncodingUTF16BE:
		return "UTF-16BE"
	default:
		return "unknown"
	}
}

// dbHeader holds the fields of the 100-byte database header this package
// cares about. Fields SQLite uses only for writing (file change counter,
// freelist bookkeeping, application ID, ...) are not retained.
type dbHeader struct {
	pageSize     int
	reservedSize int
	pageCount    uint32
	encoding     TextEncoding
}

// usableSize returns U, the portion of a page available for B-tree content.
func (h *dbHeader) usableSize() int {
	return h.pageSize - h.reservedSize
}

// parseHeader validates and decodes the 100-byte database header. buf must
// be at least headerSize bytes; fileSize is used to derive the page count
// when the header's page-count field is zero (legacy databases).
func parseHeader(buf []byte, fileSize int64) (*dbHeader, error) {
	if len(buf) < headerSize {
		return nil, &HeaderError{Reason: "file shorter than database header"}
	}
	if string(buf[0:16]) != magic {
		return nil, &HeaderError{Reason: "bad magic bytes"}
	}

	rawPageSize := binary.BigEndian.Uint16(buf[16:18])
	pageSize, err := decodePageSize(rawPageSize)
	if err != nil {
		return nil, err
	}

	reservedSize := int(buf[20])
	if reservedSize >= pageSize {
		return nil, &HeaderError{Reason: "reserved-bytes-per-page exceeds page size"}
	}

	rawEncoding := binary.BigEndian.Uint32(buf[56:60])
	encoding := TextEncoding(rawEncoding)
	switch encoding {
	case EncodingUTF8, EncodingUTF16LE, EncodingUTF16BE:
	default:
		return nil, &HeaderError{Reason: "unknown text encoding"}
	}

	pageCount := binary.BigEndian.Uint32(buf[28:32])
	if pageCount == 0 {
		pageCount = uint32(fileSize / int64(pageSize))
	}

	return &dbHeader{
		pageSize:     pageSize,
		reservedSize: reservedSize,
		pageCount:    pageCount,
		encoding:     encoding,
	}, nil
}

// decodePageSize interprets the header's raw 16-bit page-size field,
// including the SQLite convention that a stored value of 1 means 65536,
// and rejects anything that isn't a power of two in [512, 65536].
func decodePageSize(raw uint16) (int, error) {
	size := int(raw)
	if raw == 1 {
		size = 65536
	}
	if size < 512 || size > 65536 || size&(size-1) != 0 {
		return 0, &HeaderError{Reason: "illegal page size"}
	}
	return size, nil
}
