package pager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/internal/logging"
)

// Default values
const (
	DefaultPageSize = 4096 // Fixed by the on-disk format
	DefaultMaxPages = 100  // Page limit for one table file
)

// Common errors
var (
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidPageNum  = errors.New("invalid page number")
	ErrCacheFull       = errors.New("cache full")
	ErrTableFull       = errs.ErrTableFull
	ErrReadOnly        = errs.ErrReadOnly
	ErrClosed          = errs.ErrClosed
)

// Options configures a Pager.
type Options struct {
	PageSize int    // Bytes per page; 0 means DefaultPageSize
	MaxPages uint32 // Page limit; 0 means DefaultMaxPages
	ReadOnly bool
}

// Pager manages reading and writing pages from/to a database file.
// It keeps every loaded page resident and writes dirty pages back on Flush
// or Close.
type Pager struct {
	// File handle for the database file
	file *os.File

	// Database filename
	filename string

	// Page cache
	cache *PageCache

	// Page size in bytes
	pageSize int

	// Number of pages in the database, including pages allocated but not
	// yet flushed
	dbSize Pgno

	// Page limit
	maxPages Pgno

	// Read-only flag
	readOnly bool

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// Open opens a database file and creates a new Pager.
// If the file doesn't exist and readOnly is false, it is created empty.
func Open(filename string, readOnly bool) (*Pager, error) {
	return OpenWithOptions(filename, Options{ReadOnly: readOnly})
}

// OpenWithOptions opens a database file with explicit options.
func OpenWithOptions(filename string, opts Options) (*Pager, error) {
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if !isValidPageSize(opts.PageSize) {
		return nil, ErrInvalidPageSize
	}

	pager := &Pager{
		filename: filename,
		pageSize: opts.PageSize,
		maxPages: Pgno(opts.MaxPages),
		readOnly: opts.ReadOnly,
		cache:    NewPageCache(int(opts.MaxPages)),
	}

	var err error
	if opts.ReadOnly {
		pager.file, err = os.OpenFile(filename, os.O_RDONLY, 0)
	} else {
		pager.file, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0644)
	}
	if err != nil {
		return nil, errs.NewIO("open", filename, err)
	}

	info, err := pager.file.Stat()
	if err != nil {
		pager.file.Close()
		return nil, errs.NewIO("stat", filename, err)
	}

	if info.Size()%int64(pager.pageSize) != 0 {
		pager.file.Close()
		return nil, errs.NewCorruption(-1, "file size %d is not a multiple of page size %d",
			info.Size(), pager.pageSize)
	}

	pager.dbSize = Pgno(info.Size() / int64(pager.pageSize))
	if pager.dbSize > pager.maxPages {
		pager.file.Close()
		return nil, errs.NewCorruption(-1, "file holds %d pages, limit is %d", pager.dbSize, pager.maxPages)
	}

	logging.Debug("pager_open", "path", filename, "pages", uint32(pager.dbSize), "read_only", opts.ReadOnly)
	return pager, nil
}

// Close flushes every dirty page, syncs the file and releases all resources.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return ErrClosed
	}

	var flushErr error
	if !p.readOnly {
		flushErr = p.writeDirtyPages()
		if flushErr == nil {
			if err := p.file.Sync(); err != nil {
				flushErr = errs.NewIO("sync", p.filename, err)
			}
		}
	}

	p.cache.Clear()

	closeErr := p.file.Close()
	p.file = nil

	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return errs.NewIO("close", p.filename, closeErr)
	}
	return nil
}

// Get retrieves a page. A page past the end of the file comes back zeroed
// and extends the page count.
func (p *Pager) Get(pgno Pgno) (*DbPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.getLocked(pgno)
}

func (p *Pager) getLocked(pgno Pgno) (*DbPage, error) {
	if p.file == nil {
		return nil, ErrClosed
	}
	if pgno >= p.maxPages {
		return nil, fmt.Errorf("%w: %d (limit %d)", ErrInvalidPageNum, pgno, p.maxPages)
	}

	if page := p.cache.Get(pgno); page != nil {
		return page, nil
	}

	page, err := p.readPage(pgno)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Put(page); err != nil {
		return nil, err
	}

	return page, nil
}

// Allocate returns a new zeroed page numbered PageCount(). It fails with
// ErrTableFull once the page limit is reached.
func (p *Pager) Allocate() (*DbPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readOnly {
		return nil, ErrReadOnly
	}
	if p.dbSize >= p.maxPages {
		return nil, ErrTableFull
	}

	page, err := p.getLocked(p.dbSize)
	if err != nil {
		return nil, err
	}
	p.cache.MakeDirty(page)
	return page, nil
}

// Write marks a page as modified so it is written back on Flush or Close.
func (p *Pager) Write(page *DbPage) error {
	if p.readOnly {
		return ErrReadOnly
	}
	if page == nil {
		return errors.New("nil page")
	}

	p.cache.MakeDirty(page)
	return nil
}

// MarkDirty marks a resident page as modified.
func (p *Pager) MarkDirty(pgno Pgno) error {
	page := p.cache.Get(pgno)
	if page == nil {
		return fmt.Errorf("%w: page %d is not resident", ErrInvalidPageNum, pgno)
	}
	return p.Write(page)
}

// Flush writes one cached page back to its file offset.
func (p *Pager) Flush(pgno Pgno) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return ErrClosed
	}
	page := p.cache.Get(pgno)
	if page == nil {
		return fmt.Errorf("%w: page %d is not resident", ErrInvalidPageNum, pgno)
	}
	if err := p.writePage(page); err != nil {
		return err
	}
	p.cache.MakePageClean(page)
	return nil
}

// PageSize returns the page size of the database.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// PageCount returns the number of pages in the database.
func (p *Pager) PageCount() Pgno {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dbSize
}

// MaxPages returns the page limit.
func (p *Pager) MaxPages() Pgno {
	return p.maxPages
}

// IsReadOnly returns true if the pager is read-only.
func (p *Pager) IsReadOnly() bool {
	return p.readOnly
}

// Filename returns the path of the database file.
func (p *Pager) Filename() string {
	return p.filename
}

// readPage reads a page from the database file.
func (p *Pager) readPage(pgno Pgno) (*DbPage, error) {
	page := NewDbPage(pgno, p.pageSize)

	if pgno >= p.dbSize {
		// New page: nothing on disk yet
		p.dbSize = pgno + 1
		return page, nil
	}

	offset := int64(pgno) * int64(p.pageSize)
	n, err := p.file.ReadAt(page.Data, offset)
	if err != nil && err != io.EOF {
		return nil, errs.NewIO("read", p.filename, fmt.Errorf("page %d: %w", pgno, err))
	}
	if n < p.pageSize {
		return nil, errs.NewCorruption(int64(pgno), "short read: %d of %d bytes", n, p.pageSize)
	}

	logging.Debug("page_load", "page", uint32(pgno))
	return page, nil
}

// writePage writes a page to the database file.
func (p *Pager) writePage(page *DbPage) error {
	if p.readOnly {
		return ErrReadOnly
	}

	offset := int64(page.Pgno) * int64(p.pageSize)
	if _, err := p.file.WriteAt(page.Data, offset); err != nil {
		return errs.NewIO("write", p.filename, fmt.Errorf("page %d: %w", page.Pgno, err))
	}

	logging.Debug("page_flush", "page", uint32(page.Pgno))
	return nil
}

// writeDirtyPages writes all dirty pages to the database file.
func (p *Pager) writeDirtyPages() error {
	for _, page := range p.cache.GetDirtyPages() {
		if err := p.writePage(page); err != nil {
			return err
		}
		p.cache.MakePageClean(page)
	}
	return nil
}

// isValidPageSize reports whether size is a power of two in [512, 65536].
func isValidPageSize(size int) bool {
	if size < 512 || size > 65536 {
		return false
	}
	return size&(size-1) == 0
}
