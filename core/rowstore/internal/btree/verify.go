package btree

import (
	errs "github.com/FocuswithJustin/rowstore/core/errors"
)

// Stats summarises the shape of a tree.
type Stats struct {
	Depth    int // Levels, counting the leaf level
	Leaves   int
	Internal int
	Rows     int
}

// Check walks the whole tree and returns the first structural violation as
// a CorruptionError.
func (t *Tree) Check() (Stats, error) {
	c := &checker{
		tree:      t,
		visited:   make(map[uint32]bool),
		leafDepth: -1,
	}

	if _, _, err := c.walk(t.root, t.root, 1); err != nil {
		return Stats{}, err
	}
	if err := c.checkChain(); err != nil {
		return Stats{}, err
	}
	if n := uint32(len(c.visited)); n != t.provider.PageCount() {
		return Stats{}, errs.NewCorruption(-1, "%d pages reachable from the root, file has %d", n, t.provider.PageCount())
	}

	c.stats.Depth = c.leafDepth
	return c.stats, nil
}

type checker struct {
	tree      *Tree
	visited   map[uint32]bool
	leafDepth int
	leaves    []uint32 // in key order
	stats     Stats
}

// walk verifies the subtree at pgno and returns its smallest and largest key.
func (c *checker) walk(pgno, parent uint32, depth int) (uint32, uint32, error) {
	if pgno >= c.tree.provider.PageCount() {
		return 0, 0, errs.NewCorruption(int64(parent), "child pointer %d beyond page count %d", pgno, c.tree.provider.PageCount())
	}
	if c.visited[pgno] {
		return 0, 0, errs.NewCorruption(int64(pgno), "page reachable twice")
	}
	c.visited[pgno] = true

	n, err := c.tree.node(pgno)
	if err != nil {
		return 0, 0, err
	}

	isRoot := pgno == c.tree.root
	if n.isRoot() != isRoot {
		return 0, 0, errs.NewCorruption(int64(pgno), "is_root = %v", n.isRoot())
	}
	if !isRoot && n.parent() != parent {
		return 0, 0, errs.NewCorruption(int64(pgno), "parent pointer %d, want %d", n.parent(), parent)
	}

	if n.nodeType() == NodeLeaf {
		return c.walkLeaf(pgno, n, isRoot, depth)
	}
	return c.walkInternal(pgno, n, depth)
}

func (c *checker) walkLeaf(pgno uint32, n node, isRoot bool, depth int) (uint32, uint32, error) {
	num := n.numCells()
	if num == 0 && !isRoot {
		return 0, 0, errs.NewCorruption(int64(pgno), "empty non-root leaf")
	}
	for i := uint32(1); i < num; i++ {
		if n.leafKey(i-1) >= n.leafKey(i) {
			return 0, 0, errs.NewCorruption(int64(pgno), "keys out of order at cell %d: %d >= %d", i, n.leafKey(i-1), n.leafKey(i))
		}
	}

	if c.leafDepth == -1 {
		c.leafDepth = depth
	} else if c.leafDepth != depth {
		return 0, 0, errs.NewCorruption(int64(pgno), "leaf at depth %d, others at %d", depth, c.leafDepth)
	}

	c.leaves = append(c.leaves, pgno)
	c.stats.Leaves++
	c.stats.Rows += int(num)

	if num == 0 {
		return 0, 0, nil
	}
	return n.leafKey(0), n.leafKey(num - 1), nil
}

func (c *checker) walkInternal(pgno uint32, n node, depth int) (uint32, uint32, error) {
	num := n.numKeys()
	if num == 0 {
		return 0, 0, errs.NewCorruption(int64(pgno), "internal node without keys")
	}
	c.stats.Internal++

	var lo, hi uint32
	for i := uint32(0); i <= num; i++ {
		cmin, cmax, err := c.walk(n.child(i), pgno, depth+1)
		if err != nil {
			return 0, 0, err
		}
		if i == 0 {
			lo = cmin
		} else if cmin <= n.internalKey(i-1) {
			return 0, 0, errs.NewCorruption(int64(pgno), "child %d holds key %d, not above separator %d", i, cmin, n.internalKey(i-1))
		}
		if i < num && cmax != n.internalKey(i) {
			return 0, 0, errs.NewCorruption(int64(pgno), "key %d is %d, child max is %d", i, n.internalKey(i), cmax)
		}
		hi = cmax
	}
	return lo, hi, nil
}

// checkChain verifies that next_leaf threads the leaves in key order,
// starting from page 0.
func (c *checker) checkChain() error {
	if len(c.leaves) == 0 {
		return errs.NewCorruption(-1, "tree has no leaves")
	}
	if c.leaves[0] != 0 {
		return errs.NewCorruption(int64(c.leaves[0]), "leftmost leaf is not page 0")
	}
	for i, pgno := range c.leaves {
		n, err := c.tree.node(pgno)
		if err != nil {
			return err
		}
		want := uint32(0)
		if i+1 < len(c.leaves) {
			want = c.leaves[i+1]
		}
		if n.nextLeaf() != want {
			return errs.NewCorruption(int64(pgno), "next_leaf %d, want %d", n.nextLeaf(), want)
		}
	}
	return nil
}
