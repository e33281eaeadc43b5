package sqlite3dump

import (
	"fmt"
	"os"
	"sort"

	"github.com/jordanwade90/sqlite3dump/internal/pager"
)

// DB is a read-only handle on a SQLite database file. It is not safe for
// concurrent use: the schema cache is filled lazily and the buffered page
// cache updates its LRU on every read, both without locking. Neither a DB
// nor a RowIter may be shared between goroutines.
type DB struct {
	pager  pager.Pager
	header *dbHeader
	schema map[string]*tableSchema
}

// Open parses the database header at path and prepares a page cache for
// it. It does not read sqlite_schema; that happens lazily on the first
// call to Columns, Scan, or Tables.
func Open(path string) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	hdrBuf := make([]byte, headerSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("sqlite3dump: reading database header: %w", err)
	}
	hdr, err := parseHeader(hdrBuf, info.Size())
	if err != nil {
		return nil, err
	}

	pg, err := pager.Open(path, hdr.pageSize, hdr.pageCount)
	if err != nil {
		return nil, fmt.Errorf("sqlite3dump: opening page cache: %w", err)
	}

	return &DB{pager: pg, header: hdr}, nil
}

// Close releases the page cache (and, for the mmap backend, unmaps the
// file). A DB must not be used after Close.
func (db *DB) Close() error {
	return db.pager.Close()
}

// PageSize returns the database's page size in bytes.
func (db *DB) PageSize() int { return db.header.pageSize }

// TextEncoding returns the database's declared text encoding.
func (db *DB) TextEncoding() TextEncoding { return db.header.encoding }

// Tables returns the names of every ordinary table in sqlite_schema, in
// lexical order. Internal sqlite_ tables (sqlite_sequence and similar)
// are included, matching what a direct sqlite_schema query would return.
func (db *DB) Tables() ([]string, error) {
	if err := db.loadSchema(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(db.schema))
	for name := range db.schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Columns returns the column names of table, in declaration order, as
// parsed from its CREATE TABLE statement in sqlite_schema.
func (db *DB) Columns(table string) ([]string, error) {
	sch, err := db.resolveTable(table)
	if err != nil {
		return nil, err
	}
	if sch.parseErr != nil {
		return nil, sch.parseErr
	}
	return sch.columns, nil
}

// RowidAlias returns the index of table's INTEGER PRIMARY KEY column, if
// it declares one, or -1. SQLite stores no value for that column (its
// record slot decodes as NULL); the column's true value is the row's
// Rowid.
func (db *DB) RowidAlias(table string) (int, error) {
	sch, err := db.resolveTable(table)
	if err != nil {
		return -1, err
	}
	return sch.rowidAlias, nil
}

// Scan returns an iterator over table's rows in rowid order. The
// returned RowIter must be drained (or abandoned) before the next call
// that mutates db's schema cache; it holds no resources of its own
// beyond what the page cache already owns.
func (db *DB) Scan(table string) (*RowIter, error) {
	sch, err := db.resolveTable(table)
	if err != nil {
		return nil, err
	}
	return db.newRowIter(sch.rootPage), nil
}
