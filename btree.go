package sqlite3dump

import (
	"encoding/binary"
	"fmt"

	"github.com/jordanwade90/sqlite3dump/internal/diag"
	"github.com/jordanwade90/sqlite3dump/record"
)

const (
	pageInteriorIndex = 2
	pageInteriorTable = 5
	pageLeafIndex     = 10
	pageLeafTable     = 13
)

// btreePageHeader is the parsed form of the 8- or 12-byte B-tree page
// header. headerStart is 0 for every page except page 1, where the
// 100-byte database header pushes it to offset 100.
type btreePageHeader struct {
	kind         byte
	cellCount    int
	headerStart  int
	cellPtrStart int
	rightChild   uint32 // interior pages only
}

func readBtreePageHeader(pageNum uint32, page []byte) (*btreePageHeader, error) {
	start := 0
	if pageNum == 1 {
		start = headerSize
	}
	if start+8 > len(page) {
		return nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: "page too short for B-tree header"}
	}

	hdr := &btreePageHeader{
		kind:        page[start],
		cellCount:   int(binary.BigEndian.Uint16(page[start+3 : start+5])),
		headerStart: start,
	}

	switch hdr.kind {
	case pageInteriorTable, pageInteriorIndex:
		if start+12 > len(page) {
			return nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: "page too short for interior B-tree header"}
		}
		hdr.rightChild = binary.BigEndian.Uint32(page[start+8 : start+12])
		hdr.cellPtrStart = start + 12
	case pageLeafTable, pageLeafIndex:
		hdr.cellPtrStart = start + 8
	default:
		return nil, &CorruptionError{Page: pageNum, Cell: -1, Reason: fmt.Sprintf("unknown B-tree page type %d", hdr.kind)}
	}
	return hdr, nil
}

// cellPointer returns the byte offset (from the start of the page) of the
// i'th cell, per the page's cell-pointer array.
func cellPointer(pageNum uint32, page []byte, hdr *btreePageHeader, i int) (int, error) {
	off := hdr.cellPtrStart + 2*i
	if off+2 > len(page) {
		return 0, &CorruptionError{Page: pageNum, Cell: i, Reason: "cell pointer array runs past end of page"}
	}
	ptr := int(binary.BigEndian.Uint16(page[off : off+2]))
	if ptr <= 0 || ptr > len(page) {
		return 0, &CorruptionError{Page: pageNum, Cell: i, Reason: "cell pointer out of range"}
	}
	return ptr, nil
}

// leafRow is one decoded leaf cell, buffered until RowIter hands it out.
type leafRow struct {
	rowid  int64
	values []record.Value
}

// btreeFrame is one entry of RowIter's explicit descent stack: the page
// to visit and how many of its children have already been pushed.
// nextChild running from 0 to cellCount-1 walks the left child of each
// cell in turn; nextChild == cellCount visits the page's right-most
// child pointer; beyond that the frame is exhausted.
type btreeFrame struct {
	page      uint32
	nextChild int
}

// RowIter is a pull-based, in-order iterator over a table B-tree's rows,
// returned by DB.Scan. Call Next until it returns false, then check Err.
// The Row returned by Row is only valid until the next call to Next.
type RowIter struct {
	db      *DB
	stack   []btreeFrame
	visited []bool

	pending []leafRow
	pos     int

	row  Row
	err  error
	done bool
}

func (db *DB) newRowIter(root uint32) *RowIter {
	visited := make([]bool, db.header.pageCount+1)
	if root >= 1 && root < uint32(len(visited)) {
		visited[root] = true
	}
	return &RowIter{
		db:      db,
		stack:   []btreeFrame{{page: root}},
		visited: visited,
	}
}

// Next advances to the next row in rowid order, returning false when the
// scan is exhausted or has failed; Err distinguishes the two.
func (it *RowIter) Next() bool {
	if it.err != nil || it.done {
		return false
	}
	for {
		if it.pos < len(it.pending) {
			cell := it.pending[it.pos]
			it.pos++
			it.row = Row{rowid: cell.rowid, values: cell.values, encoding: it.db.header.encoding}
			return true
		}

		if len(it.stack) == 0 {
			it.done = true
			return false
		}

		top := &it.stack[len(it.stack)-1]
		page, err := it.db.pager.Page(top.page)
		if err != nil {
			it.err = err
			return false
		}
		hdr, err := readBtreePageHeader(top.page, page)
		if err != nil {
			it.err = err
			return false
		}

		if hdr.kind == pageLeafTable {
			pending, err := it.drainLeaf(top.page, page, hdr)
			if err != nil {
				it.err = err
				return false
			}
			it.pending = pending
			it.pos = 0
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		if hdr.kind != pageInteriorTable {
			it.err = &CorruptionError{Page: top.page, Cell: -1, Reason: "expected table B-tree page, found index page"}
			return false
		}

		if top.nextChild < hdr.cellCount {
			ptr, err := cellPointer(top.page, page, hdr, top.nextChild)
			if err != nil {
				it.err = err
				return false
			}
			if ptr+4 > len(page) {
				it.err = &CorruptionError{Page: top.page, Cell: top.nextChild, Reason: "interior cell truncated before child pointer"}
				return false
			}
			child := binary.BigEndian.Uint32(page[ptr : ptr+4])
			top.nextChild++
			if err := it.pushChild(child); err != nil {
				it.err = err
				return false
			}
			continue
		}
		if top.nextChild == hdr.cellCount {
			top.nextChild++
			if hdr.rightChild != 0 {
				if err := it.pushChild(hdr.rightChild); err != nil {
					it.err = err
					return false
				}
				continue
			}
		}
		it.stack = it.stack[:len(it.stack)-1]
	}
}

// drainLeaf decodes every cell of a table leaf page in cell-pointer-array
// order, which is already rowid-ascending for well-formed table B-trees.
func (it *RowIter) drainLeaf(pageNum uint32, page []byte, hdr *btreePageHeader) ([]leafRow, error) {
	diag.Page(pageNum, "leaf", hdr.cellCount)
	rows := make([]leafRow, 0, hdr.cellCount)
	for i := 0; i < hdr.cellCount; i++ {
		ptr, err := cellPointer(pageNum, page, hdr, i)
		if err != nil {
			return nil, err
		}
		rowid, values, err := it.db.readLeafCell(pageNum, page, ptr)
		if err != nil {
			return nil, err
		}
		rows = append(rows, leafRow{rowid: rowid, values: values})
	}
	return rows, nil
}

func (it *RowIter) pushChild(page uint32) error {
	if page < 1 || page >= uint32(len(it.visited)) {
		return &CorruptionError{Page: page, Cell: -1, Reason: "child page number out of range"}
	}
	if it.visited[page] {
		return &CorruptionError{Page: page, Cell: -1, Reason: "cycle in B-tree traversal"}
	}
	it.visited[page] = true
	it.stack = append(it.stack, btreeFrame{page: page})
	return nil
}

// Row returns the current row. Valid only after a call to Next returned
// true, and only until the following call to Next.
func (it *RowIter) Row() *Row { return &it.row }

// Err returns the error that stopped the scan, if any.
func (it *RowIter) Err() error { return it.err }
