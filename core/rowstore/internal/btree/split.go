package btree

import (
	"encoding/binary"
	"fmt"
	"slices"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
)

// splitLeafAndInsert splits the full leaf pgno and places the new cell at
// idx of the combined cell sequence. The upper half moves to a new right
// sibling; the lower half stays on pgno.
func (t *Tree) splitLeafAndInsert(pgno, idx, key uint32, value []byte) error {
	old, err := t.node(pgno)
	if err != nil {
		return err
	}

	newPg, data, err := t.provider.AllocatePageData()
	if err != nil {
		return fmt.Errorf("failed to allocate leaf sibling: %w", err)
	}
	sibling := node(data)
	sibling.initLeaf()
	sibling.setParent(old.parent())
	sibling.setNextLeaf(old.nextLeaf())
	old.setNextLeaf(newPg)

	// All cells in key order, the new one included.
	cells := make([]byte, 0, (LeafNodeMaxCells+1)*LeafNodeCellSize)
	cells = append(cells, old.leafCells(0, idx)...)
	cells = binary.LittleEndian.AppendUint32(cells, key)
	cells = append(cells, value...)
	cells = append(cells, old.leafCells(idx, LeafNodeMaxCells)...)

	split := LeafNodeLeftSplitCount * LeafNodeCellSize
	copy(old.leafCells(0, LeafNodeLeftSplitCount), cells[:split])
	clear(old.leafCells(LeafNodeLeftSplitCount, LeafNodeMaxCells))
	old.setNumCells(LeafNodeLeftSplitCount)

	copy(sibling.leafCells(0, LeafNodeRightSplitCount), cells[split:])
	sibling.setNumCells(LeafNodeRightSplitCount)

	if err := t.markDirty(pgno, newPg); err != nil {
		return err
	}
	t.logSplit("leaf", pgno, newPg, "key", key)

	return t.insertSeparator(pgno, old.leafKey(LeafNodeLeftSplitCount-1), newPg)
}

// insertSeparator records that leftPg was split into leftPg (max key
// leftMax) and its new right sibling rightPg. Full parents are split in turn
// until a parent with room or a new root absorbs the separator.
func (t *Tree) insertSeparator(leftPg, leftMax, rightPg uint32) error {
	for {
		left, err := t.node(leftPg)
		if err != nil {
			return err
		}
		if left.isRoot() {
			return t.createNewRoot(leftPg, leftMax, rightPg)
		}

		parentPg := left.parent()
		parent, err := t.node(parentPg)
		if err != nil {
			return err
		}
		if parent.nodeType() != NodeInternal {
			return errs.NewCorruption(int64(parentPg), "parent of page %d is a %s", leftPg, parent.nodeType())
		}
		pos, ok := parent.childIndex(leftPg)
		if !ok {
			return errs.NewCorruption(int64(parentPg), "page %d is not a child of its parent", leftPg)
		}

		if parent.numKeys() < t.maxKeys {
			insertInternalAt(parent, pos, leftPg, leftMax, rightPg)
			right, err := t.node(rightPg)
			if err != nil {
				return err
			}
			right.setParent(parentPg)
			return t.markDirty(parentPg, rightPg)
		}

		promoted, siblingPg, err := t.splitInternal(parentPg, pos, leftPg, leftMax, rightPg)
		if err != nil {
			return err
		}
		leftPg, leftMax, rightPg = parentPg, promoted, siblingPg
	}
}

// insertInternalAt replaces child pos (left) by the pair left, right. The
// separator for left becomes leftMax; right inherits the separator left used
// to have, so the annotation of the right half stays correct.
func insertInternalAt(n node, pos, left, leftMax, right uint32) {
	num := n.numKeys()
	if pos < num {
		start := internalCellOffset(pos)
		end := internalCellOffset(num)
		copy(n[start+InternalNodeCellSize:end+InternalNodeCellSize], n[start:end])
	}
	n.setInternalCell(pos, left, leftMax)
	n.setNumKeys(num + 1)
	n.setChild(pos+1, right)
}

// splitInternal splits the full internal node pgno while inserting the pair
// (left, leftMax, right) at child position pos. The median key is promoted:
// it is returned together with the new right sibling.
func (t *Tree) splitInternal(pgno, pos, left, leftMax, right uint32) (uint32, uint32, error) {
	n, err := t.node(pgno)
	if err != nil {
		return 0, 0, err
	}

	num := n.numKeys()
	keys := make([]uint32, 0, num+1)
	children := make([]uint32, 0, num+2)
	for i := uint32(0); i < num; i++ {
		keys = append(keys, n.internalKey(i))
		children = append(children, n.child(i))
	}
	children = append(children, n.rightChild())

	keys = slices.Insert(keys, int(pos), leftMax)
	children[pos] = left
	children = slices.Insert(children, int(pos)+1, right)

	s := len(keys) / 2

	siblingPg, data, err := t.provider.AllocatePageData()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to allocate internal sibling: %w", err)
	}
	sibling := node(data)
	sibling.initInternal()
	sibling.setParent(n.parent())

	writeInternal(n, keys[:s], children[:s+1])
	writeInternal(sibling, keys[s+1:], children[s+1:])

	if err := t.reparent(pgno, children[:s+1]); err != nil {
		return 0, 0, err
	}
	if err := t.reparent(siblingPg, children[s+1:]); err != nil {
		return 0, 0, err
	}
	if err := t.markDirty(pgno, siblingPg); err != nil {
		return 0, 0, err
	}
	t.logSplit("internal", pgno, siblingPg, "promoted", keys[s])

	return keys[s], siblingPg, nil
}

// writeInternal rewrites the body of n. len(children) must be len(keys)+1.
// The common header is kept.
func writeInternal(n node, keys, children []uint32) {
	clear(n[InternalNodeHeaderSize:])
	n.setNumKeys(uint32(len(keys)))
	for i, key := range keys {
		n.setInternalCell(uint32(i), children[i], key)
	}
	n.setRightChild(children[len(keys)])
}

func (t *Tree) reparent(parentPg uint32, children []uint32) error {
	for _, c := range children {
		child, err := t.node(c)
		if err != nil {
			return err
		}
		if child.parent() == parentPg {
			continue
		}
		child.setParent(parentPg)
		if err := t.provider.MarkDirty(c); err != nil {
			return err
		}
	}
	return nil
}

// createNewRoot installs a new internal root above leftPg and rightPg.
func (t *Tree) createNewRoot(leftPg, leftMax, rightPg uint32) error {
	rootPg, data, err := t.provider.AllocatePageData()
	if err != nil {
		return fmt.Errorf("failed to allocate root: %w", err)
	}
	root := node(data)
	root.initInternal()
	root.setRoot(true)
	root.setInternalCell(0, leftPg, leftMax)
	root.setNumKeys(1)
	root.setRightChild(rightPg)

	left, err := t.node(leftPg)
	if err != nil {
		return err
	}
	right, err := t.node(rightPg)
	if err != nil {
		return err
	}
	left.setRoot(false)
	left.setParent(rootPg)
	right.setRoot(false)
	right.setParent(rootPg)

	if err := t.markDirty(rootPg, leftPg, rightPg); err != nil {
		return err
	}
	t.logSplit("root", leftPg, rightPg, "root", rootPg)

	t.root = rootPg
	return nil
}

// maxKey returns the largest key in the subtree rooted at pgno.
func (t *Tree) maxKey(pgno uint32) (uint32, error) {
	for depth := uint32(0); ; depth++ {
		if depth > t.provider.PageCount() {
			return 0, errs.NewCorruption(int64(pgno), "tree depth exceeds page count")
		}
		n, err := t.node(pgno)
		if err != nil {
			return 0, err
		}
		if n.nodeType() == NodeLeaf {
			if n.numCells() == 0 {
				return 0, errs.NewCorruption(int64(pgno), "empty leaf")
			}
			return n.leafKey(n.numCells() - 1), nil
		}
		pgno = n.rightChild()
	}
}
