package btree

import (
	"fmt"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/internal/logging"
)

// PageProvider is an interface for page access (can be pager or in-memory)
type PageProvider interface {
	GetPageData(pgno uint32) ([]byte, error)
	AllocatePageData() (uint32, []byte, error)
	MarkDirty(pgno uint32) error
	PageCount() uint32
	MaxPages() uint32
}

// Config tunes the tree. The zero value uses the physical node capacities.
type Config struct {
	// InternalMaxKeys is the key count at which an internal node splits.
	// 0 means InternalNodeMaxKeys; the minimum is 2.
	InternalMaxKeys uint32
}

// Tree is a B+tree of fixed-size rows keyed by uint32, stored one node per page.
type Tree struct {
	provider PageProvider
	root     uint32
	maxKeys  uint32
}

// Open attaches a tree to provider. An empty store gets page 0 as a fresh
// root leaf; otherwise the root is found by following parent pointers from
// page 0 to the node flagged as root.
func Open(provider PageProvider, cfg Config) (*Tree, error) {
	maxKeys := cfg.InternalMaxKeys
	if maxKeys == 0 {
		maxKeys = InternalNodeMaxKeys
	}
	if maxKeys < 2 || maxKeys > InternalNodeMaxKeys {
		return nil, errs.NewValidation("internal_max_keys",
			fmt.Sprintf("must be between 2 and %d, got %d", InternalNodeMaxKeys, maxKeys))
	}

	t := &Tree{provider: provider, maxKeys: maxKeys}

	if provider.PageCount() == 0 {
		pgno, data, err := provider.AllocatePageData()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate root page: %w", err)
		}
		root := node(data)
		root.initLeaf()
		root.setRoot(true)
		if err := provider.MarkDirty(pgno); err != nil {
			return nil, err
		}
		t.root = pgno
		return t, nil
	}

	root, err := t.locateRoot()
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// locateRoot climbs parent pointers from page 0.
func (t *Tree) locateRoot() (uint32, error) {
	pgno := uint32(0)
	for steps := uint32(0); ; steps++ {
		if steps > t.provider.PageCount() {
			return 0, errs.NewCorruption(-1, "no root reachable from page 0")
		}
		n, err := t.node(pgno)
		if err != nil {
			return 0, err
		}
		if n.isRoot() {
			return pgno, nil
		}
		pgno = n.parent()
	}
}

// Root returns the page number of the root node.
func (t *Tree) Root() uint32 {
	return t.root
}

// InternalMaxKeys returns the internal split threshold in use.
func (t *Tree) InternalMaxKeys() uint32 {
	return t.maxKeys
}

// node loads and validates page pgno.
func (t *Tree) node(pgno uint32) (node, error) {
	data, err := t.provider.GetPageData(pgno)
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d: %w", pgno, err)
	}
	n := node(data)
	if err := n.validate(pgno); err != nil {
		return nil, err
	}
	return n, nil
}

// Find returns a cursor at the cell holding key, or at the position where
// key would be inserted.
func (t *Tree) Find(key uint32) (*Cursor, error) {
	pgno := t.root
	for depth := uint32(0); ; depth++ {
		if depth > t.provider.PageCount() {
			return nil, errs.NewCorruption(int64(pgno), "tree depth exceeds page count")
		}

		n, err := t.node(pgno)
		if err != nil {
			return nil, err
		}

		if n.nodeType() == NodeLeaf {
			idx := n.leafFind(key)
			return &Cursor{
				tree:       t,
				PageNum:    pgno,
				CellIndex:  idx,
				EndOfTable: idx >= n.numCells(),
			}, nil
		}

		pgno = n.child(n.internalFind(key))
	}
}

// First returns a cursor at the smallest key (the start of a full scan).
func (t *Tree) First() (*Cursor, error) {
	pgno := t.root
	for depth := uint32(0); ; depth++ {
		if depth > t.provider.PageCount() {
			return nil, errs.NewCorruption(int64(pgno), "tree depth exceeds page count")
		}

		n, err := t.node(pgno)
		if err != nil {
			return nil, err
		}

		if n.nodeType() == NodeLeaf {
			return &Cursor{
				tree:       t,
				PageNum:    pgno,
				CellIndex:  0,
				EndOfTable: n.numCells() == 0,
			}, nil
		}

		pgno = n.child(0)
	}
}

// Insert stores value under key. It fails with ErrDuplicateKey when key is
// present and with ErrTableFull when the split it needs cannot be allocated;
// in both cases nothing is modified.
func (t *Tree) Insert(key uint32, value []byte) error {
	if len(value) != LeafNodeValueSize {
		return fmt.Errorf("value is %d bytes, want %d", len(value), LeafNodeValueSize)
	}

	c, err := t.Find(key)
	if err != nil {
		return err
	}

	leaf, err := t.node(c.PageNum)
	if err != nil {
		return err
	}

	if c.CellIndex < leaf.numCells() && leaf.leafKey(c.CellIndex) == key {
		return fmt.Errorf("%w: %d", errs.ErrDuplicateKey, key)
	}

	if leaf.numCells() < LeafNodeMaxCells {
		leafInsertAt(leaf, c.CellIndex, key, value)
		return t.provider.MarkDirty(c.PageNum)
	}

	if err := t.reserveSplit(c.PageNum); err != nil {
		return err
	}
	return t.splitLeafAndInsert(c.PageNum, c.CellIndex, key, value)
}

// leafInsertAt shifts cells [idx, numCells) one slot right and writes the
// new cell at idx. The leaf must have spare capacity.
func leafInsertAt(n node, idx, key uint32, value []byte) {
	num := n.numCells()
	if idx < num {
		copy(n.leafCells(idx+1, num+1), n.leafCells(idx, num))
	}
	n.setLeafKey(idx, key)
	copy(n.leafValue(idx), value)
	n.setNumCells(num + 1)
}

// reserveSplit counts the pages a split starting at leaf pgno will allocate
// and fails with ErrTableFull when they exceed the provider's limit.
func (t *Tree) reserveSplit(pgno uint32) error {
	need := uint32(0)
	for {
		need++ // new sibling for pgno

		n, err := t.node(pgno)
		if err != nil {
			return err
		}
		if n.isRoot() {
			need++ // new root
			break
		}

		parent, err := t.node(n.parent())
		if err != nil {
			return err
		}
		if parent.numKeys() < t.maxKeys {
			break
		}
		pgno = n.parent()
	}

	if t.provider.PageCount()+need > t.provider.MaxPages() {
		return fmt.Errorf("%w: split needs %d pages, %d of %d in use",
			errs.ErrTableFull, need, t.provider.PageCount(), t.provider.MaxPages())
	}
	return nil
}

func (t *Tree) markDirty(pgnos ...uint32) error {
	for _, pgno := range pgnos {
		if err := t.provider.MarkDirty(pgno); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) logSplit(kind string, page, sibling uint32, args ...any) {
	logging.NodeSplit(kind, page, sibling, args...)
}
