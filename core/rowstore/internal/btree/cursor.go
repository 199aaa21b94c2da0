package btree

import (
	"fmt"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
)

// Cursor is a position in the leaf level of a tree.
type Cursor struct {
	tree *Tree

	PageNum    uint32 // Current leaf page
	CellIndex  uint32 // Cell index in the leaf
	EndOfTable bool   // True once the cursor has moved past the last cell

	hops uint32 // Leaves visited, bounds a corrupt next_leaf cycle
}

// Key returns the key under the cursor.
func (c *Cursor) Key() (uint32, error) {
	n, err := c.cell()
	if err != nil {
		return 0, err
	}
	return n.leafKey(c.CellIndex), nil
}

// Value returns the row bytes under the cursor. The slice aliases the page
// buffer: callers that write to it must call MarkDirty.
func (c *Cursor) Value() ([]byte, error) {
	n, err := c.cell()
	if err != nil {
		return nil, err
	}
	return n.leafValue(c.CellIndex), nil
}

// MarkDirty schedules the current leaf for write-back.
func (c *Cursor) MarkDirty() error {
	return c.tree.provider.MarkDirty(c.PageNum)
}

// Advance moves to the next cell, following next_leaf across leaves.
func (c *Cursor) Advance() error {
	if c.EndOfTable {
		return nil
	}

	n, err := c.tree.node(c.PageNum)
	if err != nil {
		return err
	}

	c.CellIndex++
	if c.CellIndex < n.numCells() {
		return nil
	}

	next := n.nextLeaf()
	if next == 0 {
		c.EndOfTable = true
		return nil
	}

	c.hops++
	if c.hops > c.tree.provider.PageCount() {
		return errs.NewCorruption(int64(c.PageNum), "next_leaf chain does not terminate")
	}

	nextNode, err := c.tree.node(next)
	if err != nil {
		return err
	}
	if nextNode.nodeType() != NodeLeaf {
		return errs.NewCorruption(int64(next), "next_leaf of page %d is a %s", c.PageNum, nextNode.nodeType())
	}

	c.PageNum = next
	c.CellIndex = 0
	c.EndOfTable = nextNode.numCells() == 0
	return nil
}

func (c *Cursor) cell() (node, error) {
	if c.EndOfTable {
		return nil, fmt.Errorf("cursor is at end of table")
	}
	n, err := c.tree.node(c.PageNum)
	if err != nil {
		return nil, err
	}
	if c.CellIndex >= n.numCells() {
		return nil, fmt.Errorf("cell %d out of range on page %d (%d cells)", c.CellIndex, c.PageNum, n.numCells())
	}
	return n, nil
}
