package sqlite3dump

import (
	"encoding/binary"

	"github.com/jordanwade90/sqlite3dump/internal/diag"
	"github.com/jordanwade90/sqlite3dump/internal/svarint"
	"github.com/jordanwade90/sqlite3dump/record"
)

// localPayloadSize computes K, the number of payload bytes a table leaf
// cell stores inline before spilling the remainder to overflow pages.
// This is the same "alternate form" of the SQLite spill formula the
// write path used to decide where to spill; reading runs it the other
// direction, against the payload length a cell already declares.
func localPayloadSize(usable, payloadLen int) int {
	x := usable - 35
	if payloadLen <= x {
		return payloadLen
	}
	m := ((usable-12)*32/255 - 23)
	k := m + (payloadLen-m)%(usable-4)
	if k <= x {
		return k
	}
	return m
}

// readLeafCell decodes one table-leaf cell starting at offset within
// page, reassembling an overflow chain if the cell's payload spilled.
func (db *DB) readLeafCell(pageNum uint32, page []byte, offset int) (int64, []record.Value, error) {
	payloadLen, n1, err := svarint.Uvarint(page[offset:])
	if err != nil {
		return 0, nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: "truncated cell payload-length varint", Err: err}
	}
	pos := offset + n1

	rowid, n2, err := svarint.Varint(page[pos:])
	if err != nil {
		return 0, nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: "truncated cell rowid varint", Err: err}
	}
	pos += n2

	usable := db.header.usableSize()
	local := localPayloadSize(usable, int(payloadLen))
	if local < 0 || pos+local > len(page) {
		return 0, nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: "local payload runs past end of page"}
	}
	localBytes := page[pos : pos+local]

	var payload []byte
	if local == int(payloadLen) {
		payload = localBytes
	} else {
		after := pos + local
		if after+4 > len(page) {
			return 0, nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: "missing overflow page pointer"}
		}
		firstOverflow := binary.BigEndian.Uint32(page[after : after+4])
		tail, err := db.readOverflowChain(firstOverflow, int(payloadLen)-local)
		if err != nil {
			return 0, nil, err
		}
		payload = make([]byte, 0, payloadLen)
		payload = append(payload, localBytes...)
		payload = append(payload, tail...)
	}

	values, err := record.Decode(payload)
	if err != nil {
		return 0, nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: "decoding record: " + err.Error(), Err: err}
	}
	return rowid, values, nil
}

// readOverflowChain walks the linked list of overflow pages starting at
// first, returning the next total bytes of payload. Each overflow page
// carries a 4-byte big-endian pointer to the next page (0 terminates the
// chain) followed by up to usableSize()-4 bytes of payload. A page
// visited twice is reported as corruption rather than looped forever.
func (db *DB) readOverflowChain(first uint32, total int) ([]byte, error) {
	buf := make([]byte, 0, total)
	visited := make(map[uint32]bool)
	next := first
	chainLength := 0

	for len(buf) < total {
		if next == 0 {
			return nil, &CorruptionError{Page: next, Cell: -1, Reason: "overflow chain ended before payload was fully read"}
		}
		if err := checkOverflowPage(next, db.header.pageCount); err != nil {
			return nil, err
		}
		if visited[next] {
			return nil, &CorruptionError{Page: next, Cell: -1, Reason: "cycle in overflow chain"}
		}
		visited[next] = true
		chainLength++

		page, err := db.pager.Page(next)
		if err != nil {
			return nil, err
		}
		if len(page) < 4 {
			return nil, &CorruptionError{Page: next, Cell: -1, Reason: "overflow page shorter than its own header"}
		}
		nextPtr := binary.BigEndian.Uint32(page[0:4])

		avail := db.header.usableSize() - 4
		chunk := page[4:]
		if avail < len(chunk) {
			chunk = chunk[:avail]
		}
		if remaining := total - len(buf); remaining < len(chunk) {
			chunk = chunk[:remaining]
		}
		buf = append(buf, chunk...)
		next = nextPtr
	}
	diag.Overflow(first, total, chainLength)
	return buf, nil
}

func checkOverflowPage(n uint32, pageCount uint32) error {
	if n < 1 || n > pageCount {
		return &CorruptionError{Page: n, Cell: -1, Reason: "overflow page number out of range"}
	}
	return nil
}
