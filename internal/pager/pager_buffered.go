package pager

import (
	"container/list"
	"os"
)

// bufferedCacheSize is the number of decoded pages kept resident. Scans are
// sequential, so interior-node locality is what this cache buys.
const bufferedCacheSize = 8

// bufferedPager reads pages from file on demand and keeps a small LRU of
// the most recently used ones. Unlike mmapPager, a page slice returned by
// Page is only valid until the cache evicts it; callers honor the
// row-lifetime contract documented on the Pager interface so this is safe
// in practice (at most one leaf page plus one overflow chain pinned at a
// time).
type bufferedPager struct {
	file      *os.File
	pageSize  int
	pageCount uint32

	lru   *list.List // front = most recently used
	index map[uint32]*list.Element
}

type bufferedEntry struct {
	page uint32
	data []byte
}

func openBuffered(path string, pageSize int, pageCount uint32) (Pager, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &bufferedPager{
		file:      f,
		pageSize:  pageSize,
		pageCount: pageCount,
		lru:       list.New(),
		index:     make(map[uint32]*list.Element, bufferedCacheSize),
	}, nil
}

func (p *bufferedPager) Page(n uint32) ([]byte, error) {
	if err := checkPage(n, p.pageCount); err != nil {
		return nil, err
	}

	if el, ok := p.index[n]; ok {
		p.lru.MoveToFront(el)
		return el.Value.(*bufferedEntry).data, nil
	}

	buf := make([]byte, p.pageSize)
	off := int64(n-1) * int64(p.pageSize)
	if _, err := p.file.ReadAt(buf, off); err != nil {
		return nil, err
	}

	el := p.lru.PushFront(&bufferedEntry{page: n, data: buf})
	p.index[n] = el
	if p.lru.Len() > bufferedCacheSize {
		p.evictOldest()
	}
	return buf, nil
}

func (p *bufferedPager) evictOldest() {
	oldest := p.lru.Back()
	if oldest == nil {
		return
	}
	p.lru.Remove(oldest)
	delete(p.index, oldest.Value.(*bufferedEntry).page)
}

func (p *bufferedPager) Close() error {
	return p.file.Close()
}
