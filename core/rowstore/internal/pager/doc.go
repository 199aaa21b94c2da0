/*
Package pager implements the page store beneath the rowstore B-tree.

The pager is responsible for reading and writing fixed-size pages from/to a
single database file and for keeping loaded pages in an in-memory cache.

# Database File Format

The file is a flat array of pages with no file header:
  - Page size is fixed (4096 bytes by default)
  - Page N lives at byte offset N * pageSize
  - The page count is implicit: file length / page size
  - A file whose length is not a multiple of the page size is corrupt

# Page Management

  - Each page has a unique page number (0-based)
  - Pages are clean (unchanged) or dirty (modified)
  - Dirty pages are tracked in a list and written back on Flush or Close
  - Pages past the end of the file read as zeroes
  - Allocation is monotonic: the next page is always PageCount()
  - A page limit caps the file; allocating past it returns ErrTableFull

The cache never evicts. It is sized to the page limit, so every buffer the
B-tree holds stays valid until Close.

# Usage

	p, err := pager.Open("table.db", false)
	if err != nil {
		return err
	}
	defer p.Close()

	page, err := p.Allocate()
	if err != nil {
		return err
	}
	copy(page.Data, payload)
	// Allocate already marked the page dirty; Close writes it.
*/
package pager
