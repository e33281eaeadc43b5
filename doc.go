// Package sqlite3dump reads a SQLite3 database file directly from its
// on-disk representation, bypassing any SQLite engine, and streams the
// rows of a single named table in primary-key order.
//
// First, skim the description of the SQLite file format at
// https://sqlite.org/fileformat2.html. This package implements just
// enough of it to enumerate rows: the database header, the table B-tree
// page layout, the varint and record encodings, and overflow-page
// reassembly. It deliberately does not implement writing, indexes,
// views, triggers, virtual tables, or the write-ahead log.
//
// Opening a database parses the 100-byte header and validates its magic,
// page size, and text encoding. Resolving a table walks sqlite_schema
// (the B-tree rooted at page 1) for a row whose type is "table" and whose
// name matches, and parses the column list out of the row's CREATE TABLE
// text. Scanning a table then performs a depth-first, left-to-right
// traversal of the table's own B-tree, decoding each leaf cell's record
// into a typed value sequence and reassembling any payload that spilled
// into overflow pages.
//
// Values returned from a Row alias the page cache's buffers where the
// page cache allows it (the default memory-mapped backend keeps every
// page resident for the life of the Db, so this is usually free); callers
// that need a value to outlive the next Next call must copy it first.
package sqlite3dump
