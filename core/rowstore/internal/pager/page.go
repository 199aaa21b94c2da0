package pager

import (
	"sync"
)

// Pgno represents a page number in the database file.
// Page numbers start at 0; page 0 holds the root when the file is created.
type Pgno uint32

// Page flags
const (
	// PageFlagClean indicates the page is not dirty (not modified).
	PageFlagClean = 0x001

	// PageFlagDirty indicates the page has been modified.
	PageFlagDirty = 0x002
)

// DbPage represents a single cached page.
type DbPage struct {
	// Page number (0-based)
	Pgno Pgno

	// Page data (actual content)
	Data []byte

	// Flags indicating page state
	Flags uint16

	// Dirty list linkage (for maintaining list of dirty pages)
	dirtyNext *DbPage
	dirtyPrev *DbPage
}

// NewDbPage creates a new database page with the given page number and size.
func NewDbPage(pgno Pgno, pageSize int) *DbPage {
	return &DbPage{
		Pgno:  pgno,
		Data:  make([]byte, pageSize),
		Flags: PageFlagClean,
	}
}

// IsDirty returns true if the page has been modified.
func (p *DbPage) IsDirty() bool {
	return p.Flags&PageFlagDirty != 0
}

// IsClean returns true if the page has not been modified.
func (p *DbPage) IsClean() bool {
	return !p.IsDirty()
}

// GetData returns the page data.
func (p *DbPage) GetData() []byte {
	return p.Data
}

// GetPgno returns the page number.
func (p *DbPage) GetPgno() uint32 {
	return uint32(p.Pgno)
}

// Size returns the size of the page in bytes.
func (p *DbPage) Size() int {
	return len(p.Data)
}

// PageCache maps page numbers to resident pages and tracks the dirty ones.
// Pages are never evicted: the cache is sized to the pager's page limit, so
// buffers handed out stay valid until the cache is cleared.
type PageCache struct {
	// Map of page number to page
	pages map[Pgno]*DbPage

	// Head of dirty page list
	dirtyHead *DbPage

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Maximum number of pages to cache
	maxPages int
}

// NewPageCache creates a new page cache.
func NewPageCache(maxPages int) *PageCache {
	return &PageCache{
		pages:    make(map[Pgno]*DbPage),
		maxPages: maxPages,
	}
}

// Get retrieves a page from the cache.
// Returns nil if the page is not in the cache.
func (c *PageCache) Get(pgno Pgno) *DbPage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pages[pgno]
}

// Put adds a page to the cache.
func (c *PageCache) Put(page *DbPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pages[page.Pgno]; !ok && len(c.pages) >= c.maxPages {
		return ErrCacheFull
	}

	c.pages[page.Pgno] = page

	if page.IsDirty() {
		c.addToDirtyList(page)
	}

	return nil
}

// MakeDirty marks a resident page dirty and links it into the dirty list.
func (c *PageCache) MakeDirty(page *DbPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if page.IsDirty() {
		return
	}
	page.Flags &^= PageFlagClean
	page.Flags |= PageFlagDirty
	c.addToDirtyList(page)
}

// MakePageClean clears the dirty flag on a single page.
func (c *PageCache) MakePageClean(page *DbPage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if page.IsClean() {
		return
	}
	c.removeFromDirtyList(page)
	page.Flags &^= PageFlagDirty
	page.Flags |= PageFlagClean
}

// Clear removes all pages from the cache.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pages = make(map[Pgno]*DbPage)
	c.dirtyHead = nil
}

// GetDirtyPages returns a list of all dirty pages.
func (c *PageCache) GetDirtyPages() []*DbPage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var dirty []*DbPage
	current := c.dirtyHead
	for current != nil {
		dirty = append(dirty, current)
		current = current.dirtyNext
	}

	return dirty
}

// Size returns the number of pages in the cache.
func (c *PageCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// addToDirtyList adds a page to the dirty page list.
// Must be called with cache lock held.
func (c *PageCache) addToDirtyList(page *DbPage) {
	c.removeFromDirtyList(page)

	page.dirtyNext = c.dirtyHead
	page.dirtyPrev = nil

	if c.dirtyHead != nil {
		c.dirtyHead.dirtyPrev = page
	}

	c.dirtyHead = page
}

// removeFromDirtyList removes a page from the dirty page list.
// Must be called with cache lock held.
func (c *PageCache) removeFromDirtyList(page *DbPage) {
	if page.dirtyPrev != nil {
		page.dirtyPrev.dirtyNext = page.dirtyNext
	} else if c.dirtyHead == page {
		c.dirtyHead = page.dirtyNext
	}

	if page.dirtyNext != nil {
		page.dirtyNext.dirtyPrev = page.dirtyPrev
	}

	page.dirtyNext = nil
	page.dirtyPrev = nil
}
