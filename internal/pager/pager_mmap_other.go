//go:build !unix

package pager

import "fmt"

// openMmap is unavailable on non-unix platforms; Open falls back to the
// buffered LRU pager.
func openMmap(path string, pageSize int, pageCount uint32) (Pager, error) {
	return nil, fmt.Errorf("pager: mmap not supported on this platform")
}
