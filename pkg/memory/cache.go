package memory

import (
	"sync"

	"cipherdb/pkg/dberror"
	"cipherdb/pkg/primitives"
	"cipherdb/pkg/storage/page"
)

// PageCache holds pages in memory. It knows nothing about transactions,
// locks or durability; the buffer pool layers those on top.
type PageCache interface {
	// Get returns the page and marks it most recently used.
	Get(pid primitives.PageID) (page.Page, bool)

	// Peek returns the page without touching recency.
	Peek(pid primitives.PageID) (page.Page, bool)

	// Put inserts or replaces a page. Inserting past capacity fails.
	Put(pid primitives.PageID, p page.Page) error

	Remove(pid primitives.PageID)

	Size() int

	Clear()

	// GetAll lists cached page ids, least recently used first.
	GetAll() []primitives.PageID
}

type node struct {
	pid  primitives.PageID
	page page.Page
	prev *node
	next *node
}

// LRUPageCache is a fixed-capacity map plus a doubly linked recency list
// with sentinel head (most recent) and tail (least recent) nodes. It never
// evicts on its own: choosing a victim is the buffer pool's job.
type LRUPageCache struct {
	maxSize int
	cache   map[primitives.PageID]*node
	head    *node
	tail    *node
	mutex   sync.RWMutex
}

func NewLRUPageCache(maxSize int) *LRUPageCache {
	head, tail := &node{}, &node{}
	head.next = tail
	tail.prev = head

	return &LRUPageCache{
		maxSize: maxSize,
		cache:   make(map[primitives.PageID]*node),
		head:    head,
		tail:    tail,
	}
}

func (c *LRUPageCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRUPageCache) unlink(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRUPageCache) Get(pid primitives.PageID) (page.Page, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n, ok := c.cache[pid]
	if !ok {
		return nil, false
	}
	c.unlink(n)
	c.addToFront(n)
	return n.page, true
}

func (c *LRUPageCache) Peek(pid primitives.PageID) (page.Page, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if n, ok := c.cache[pid]; ok {
		return n.page, true
	}
	return nil, false
}

func (c *LRUPageCache) Put(pid primitives.PageID, p page.Page) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, ok := c.cache[pid]; ok {
		n.page = p
		c.unlink(n)
		c.addToFront(n)
		return nil
	}

	if len(c.cache) >= c.maxSize {
		return dberror.BufferFull("page cache holds %d pages", c.maxSize)
	}

	n := &node{pid: pid, page: p}
	c.cache[pid] = n
	c.addToFront(n)
	return nil
}

// Remove drops pid and reports whether it was cached.
func (c *LRUPageCache) Remove(pid primitives.PageID) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n, ok := c.cache[pid]
	if ok {
		delete(c.cache, pid)
		c.unlink(n)
	}
	return ok
}

func (c *LRUPageCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

func (c *LRUPageCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	clear(c.cache)
	c.head.next = c.tail
	c.tail.prev = c.head
}

func (c *LRUPageCache) GetAll() []primitives.PageID {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	pids := make([]primitives.PageID, 0, len(c.cache))
	for cur := c.tail.prev; cur != c.head; cur = cur.prev {
		pids = append(pids, cur.pid)
	}
	return pids
}
