//go:build unix

package pager

import (
	"fmt"
	"os"
	"syscall"
)

// mmapPager maps the whole database file once and slices pages directly
// out of the mapping, avoiding a copy per page. Grounded on the direct
// syscall.Mmap usage in other toy database engines in the example pack
// (no third-party mmap wrapper appears anywhere in the retrieved corpus
// for this exact concern).
type mmapPager struct {
	data      []byte
	file      *os.File
	pageSize  int
	pageCount uint32
}

func openMmap(path string, pageSize int, pageCount uint32) (Pager, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := int(info.Size())
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("pager: empty file")
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &mmapPager{data: data, file: f, pageSize: pageSize, pageCount: pageCount}, nil
}

func (p *mmapPager) Page(n uint32) ([]byte, error) {
	if err := checkPage(n, p.pageCount); err != nil {
		return nil, err
	}
	start := int(n-1) * p.pageSize
	end := start + p.pageSize
	if end > len(p.data) {
		return nil, fmt.Errorf("pager: page %d extends past end of file", n)
	}
	return p.data[start:end], nil
}

func (p *mmapPager) Close() error {
	err := syscall.Munmap(p.data)
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}
