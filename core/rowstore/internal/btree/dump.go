package btree

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
)

// NodeInfo is a read-only copy of one node and, recursively, its subtree.
type NodeInfo struct {
	Page     uint32
	Type     NodeType
	IsRoot   bool
	Parent   uint32
	NextLeaf uint32      // leaves only
	Keys     []uint32    // leaf keys, or internal separators
	Children []*NodeInfo // internal only, right child last
}

// Describe returns the structure of the whole tree.
func (t *Tree) Describe() (*NodeInfo, error) {
	return t.describe(t.root, 0)
}

func (t *Tree) describe(pgno uint32, depth uint32) (*NodeInfo, error) {
	if depth > t.provider.PageCount() {
		return nil, errs.NewCorruption(int64(pgno), "tree depth exceeds page count")
	}
	n, err := t.node(pgno)
	if err != nil {
		return nil, err
	}

	info := &NodeInfo{
		Page:   pgno,
		Type:   n.nodeType(),
		IsRoot: n.isRoot(),
		Parent: n.parent(),
	}

	if info.Type == NodeLeaf {
		info.NextLeaf = n.nextLeaf()
		info.Keys = make([]uint32, n.numCells())
		for i := range info.Keys {
			info.Keys[i] = n.leafKey(uint32(i))
		}
		return info, nil
	}

	num := n.numKeys()
	info.Keys = make([]uint32, num)
	info.Children = make([]*NodeInfo, 0, num+1)
	for i := uint32(0); i <= num; i++ {
		if i < num {
			info.Keys[i] = n.internalKey(i)
		}
		child, err := t.describe(n.child(i), depth+1)
		if err != nil {
			return nil, err
		}
		info.Children = append(info.Children, child)
	}
	return info, nil
}

// LastKey returns the largest key in the tree; ok is false for an empty tree.
func (t *Tree) LastKey() (key uint32, ok bool, err error) {
	root, err := t.node(t.root)
	if err != nil {
		return 0, false, err
	}
	if root.nodeType() == NodeLeaf && root.numCells() == 0 {
		return 0, false, nil
	}
	key, err = t.maxKey(t.root)
	if err != nil {
		return 0, false, err
	}
	return key, true, nil
}

// Dump writes the indented tree listing used by the .btree command.
func (t *Tree) Dump(w io.Writer) error {
	info, err := t.Describe()
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	writeNode(bw, info, 0)
	return bw.Flush()
}

func writeNode(w *bufio.Writer, info *NodeInfo, level int) {
	indent := strings.Repeat("  ", level)
	if info.Type == NodeLeaf {
		fmt.Fprintf(w, "%s- leaf (size %d)\n", indent, len(info.Keys))
		for _, k := range info.Keys {
			fmt.Fprintf(w, "%s  - %d\n", indent, k)
		}
		return
	}

	fmt.Fprintf(w, "%s- internal (size %d)\n", indent, len(info.Keys))
	for i, k := range info.Keys {
		writeNode(w, info.Children[i], level+1)
		fmt.Fprintf(w, "%s  - key %d\n", indent, k)
	}
	writeNode(w, info.Children[len(info.Keys)], level+1)
}
