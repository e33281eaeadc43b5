// Package pager maps 1-based SQLite page numbers to page-sized byte
// slices, reading lazily from the database file. It prefers a zero-copy
// memory map and falls back to a small bounded LRU of page buffers when
// mmap is unavailable (non-unix platforms, or when the mmap syscall
// itself fails).
package pager

import "fmt"

// Pager returns the byte slice for a 1-based page number. The slice is
// exactly pageSize bytes. Callers must not retain a page slice past the
// point the contract of the caller's own API allows (see the root
// package's row-lifetime documentation); the mmap-backed implementation
// happens to keep pages valid for the pager's whole lifetime, but the
// buffered implementation does not, and callers must not rely on the
// stronger guarantee.
type Pager interface {
	Page(n uint32) ([]byte, error)
	Close() error
}

// Open returns the best available Pager for the file at path.
func Open(path string, pageSize int, pageCount uint32) (Pager, error) {
	if p, err := openMmap(path, pageSize, pageCount); err == nil {
		return p, nil
	}
	return openBuffered(path, pageSize, pageCount)
}

func checkPage(n uint32, pageCount uint32) error {
	if n < 1 || n > pageCount {
		return fmt.Errorf("page %d out of range [1,%d]", n, pageCount)
	}
	return nil
}
