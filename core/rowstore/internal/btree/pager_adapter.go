package btree

import (
	"github.com/FocuswithJustin/rowstore/core/rowstore/internal/pager"
)

// PagerAdapter adapts a pager to the PageProvider interface
type PagerAdapter struct {
	pager *pager.Pager
}

// NewPagerAdapter creates a new adapter
func NewPagerAdapter(p *pager.Pager) *PagerAdapter {
	return &PagerAdapter{pager: p}
}

// GetPageData retrieves page data from the pager
func (pa *PagerAdapter) GetPageData(pgno uint32) ([]byte, error) {
	page, err := pa.pager.Get(pager.Pgno(pgno))
	if err != nil {
		return nil, err
	}
	return page.GetData(), nil
}

// AllocatePageData allocates a new page
func (pa *PagerAdapter) AllocatePageData() (uint32, []byte, error) {
	page, err := pa.pager.Allocate()
	if err != nil {
		return 0, nil, err
	}
	return page.GetPgno(), page.GetData(), nil
}

// MarkDirty marks a page as dirty
func (pa *PagerAdapter) MarkDirty(pgno uint32) error {
	return pa.pager.MarkDirty(pager.Pgno(pgno))
}

// PageCount returns the number of pages in the store.
func (pa *PagerAdapter) PageCount() uint32 {
	return uint32(pa.pager.PageCount())
}

// MaxPages returns the page limit of the store.
func (pa *PagerAdapter) MaxPages() uint32 {
	return uint32(pa.pager.MaxPages())
}
