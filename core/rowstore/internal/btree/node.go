package btree

import (
	"encoding/binary"
	"fmt"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/core/rowstore/internal/pager"
	"github.com/FocuswithJustin/rowstore/core/rowstore/row"
)

// NodeType is the one-byte tag at the start of every node page.
type NodeType uint8

// Node type tags
const (
	NodeInternal NodeType = 0
	NodeLeaf     NodeType = 1
)

func (t NodeType) String() string {
	switch t {
	case NodeInternal:
		return "internal"
	case NodeLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// PageSize is the size of every node page.
const PageSize = pager.DefaultPageSize

// Common node header layout
const (
	NodeTypeSize         = 1
	NodeTypeOffset       = 0
	IsRootSize           = 1
	IsRootOffset         = NodeTypeOffset + NodeTypeSize
	ParentPointerSize    = 4
	ParentPointerOffset  = IsRootOffset + IsRootSize
	CommonNodeHeaderSize = NodeTypeSize + IsRootSize + ParentPointerSize
)

// Leaf node header layout
const (
	LeafNodeNumCellsSize   = 4
	LeafNodeNumCellsOffset = CommonNodeHeaderSize
	LeafNodeNextLeafSize   = 4
	LeafNodeNextLeafOffset = LeafNodeNumCellsOffset + LeafNodeNumCellsSize
	LeafNodeHeaderSize     = CommonNodeHeaderSize + LeafNodeNumCellsSize + LeafNodeNextLeafSize
)

// Leaf node body layout
const (
	LeafNodeKeySize         = 4
	LeafNodeKeyOffset       = 0
	LeafNodeValueSize       = row.Size
	LeafNodeValueOffset     = LeafNodeKeyOffset + LeafNodeKeySize
	LeafNodeCellSize        = LeafNodeKeySize + LeafNodeValueSize
	LeafNodeSpaceForCells   = PageSize - LeafNodeHeaderSize
	LeafNodeMaxCells        = LeafNodeSpaceForCells / LeafNodeCellSize
	LeafNodeRightSplitCount = (LeafNodeMaxCells + 1) / 2
	LeafNodeLeftSplitCount  = (LeafNodeMaxCells + 1) - LeafNodeRightSplitCount
)

// Internal node header layout
const (
	InternalNodeNumKeysSize      = 4
	InternalNodeNumKeysOffset    = CommonNodeHeaderSize
	InternalNodeRightChildSize   = 4
	InternalNodeRightChildOffset = InternalNodeNumKeysOffset + InternalNodeNumKeysSize
	InternalNodeHeaderSize       = CommonNodeHeaderSize + InternalNodeNumKeysSize + InternalNodeRightChildSize
)

// Internal node body layout
const (
	InternalNodeChildSize = 4
	InternalNodeKeySize   = 4
	InternalNodeCellSize  = InternalNodeChildSize + InternalNodeKeySize
	InternalNodeMaxKeys   = (PageSize - InternalNodeHeaderSize) / InternalNodeCellSize
)

// Constant is a named layout value, listed by the .constants meta command.
type Constant struct {
	Name  string
	Value int
}

// Constants returns the persisted layout constants.
func Constants() []Constant {
	return []Constant{
		{"ROW_SIZE", row.Size},
		{"COMMON_NODE_HEADER_SIZE", CommonNodeHeaderSize},
		{"LEAF_NODE_HEADER_SIZE", LeafNodeHeaderSize},
		{"LEAF_NODE_CELL_SIZE", LeafNodeCellSize},
		{"LEAF_NODE_SPACE_FOR_CELLS", LeafNodeSpaceForCells},
		{"LEAF_NODE_MAX_CELLS", LeafNodeMaxCells},
		{"INTERNAL_NODE_HEADER_SIZE", InternalNodeHeaderSize},
		{"INTERNAL_NODE_CELL_SIZE", InternalNodeCellSize},
		{"INTERNAL_NODE_MAX_KEYS", InternalNodeMaxKeys},
	}
}

// node interprets a page buffer as a leaf or internal node.
type node []byte

func (n node) nodeType() NodeType {
	return NodeType(n[NodeTypeOffset])
}

func (n node) setNodeType(t NodeType) {
	n[NodeTypeOffset] = byte(t)
}

func (n node) isRoot() bool {
	return n[IsRootOffset] != 0
}

func (n node) setRoot(root bool) {
	if root {
		n[IsRootOffset] = 1
	} else {
		n[IsRootOffset] = 0
	}
}

func (n node) parent() uint32 {
	return binary.LittleEndian.Uint32(n[ParentPointerOffset:])
}

func (n node) setParent(pgno uint32) {
	binary.LittleEndian.PutUint32(n[ParentPointerOffset:], pgno)
}

// Leaf accessors

func (n node) numCells() uint32 {
	return binary.LittleEndian.Uint32(n[LeafNodeNumCellsOffset:])
}

func (n node) setNumCells(count uint32) {
	binary.LittleEndian.PutUint32(n[LeafNodeNumCellsOffset:], count)
}

func (n node) nextLeaf() uint32 {
	return binary.LittleEndian.Uint32(n[LeafNodeNextLeafOffset:])
}

func (n node) setNextLeaf(pgno uint32) {
	binary.LittleEndian.PutUint32(n[LeafNodeNextLeafOffset:], pgno)
}

func leafCellOffset(i uint32) uint32 {
	return LeafNodeHeaderSize + i*LeafNodeCellSize
}

func (n node) leafCell(i uint32) []byte {
	off := leafCellOffset(i)
	return n[off : off+LeafNodeCellSize]
}

func (n node) leafKey(i uint32) uint32 {
	return binary.LittleEndian.Uint32(n[leafCellOffset(i)+LeafNodeKeyOffset:])
}

func (n node) setLeafKey(i, key uint32) {
	binary.LittleEndian.PutUint32(n[leafCellOffset(i)+LeafNodeKeyOffset:], key)
}

func (n node) leafValue(i uint32) []byte {
	off := leafCellOffset(i) + LeafNodeValueOffset
	return n[off : off+LeafNodeValueSize]
}

// leafCells returns the cell area holding cells [from, to).
func (n node) leafCells(from, to uint32) []byte {
	return n[leafCellOffset(from):leafCellOffset(to)]
}

// leafFind returns the index of the first cell whose key is >= key.
func (n node) leafFind(key uint32) uint32 {
	lo, hi := uint32(0), n.numCells()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if n.leafKey(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Internal accessors

func (n node) numKeys() uint32 {
	return binary.LittleEndian.Uint32(n[InternalNodeNumKeysOffset:])
}

func (n node) setNumKeys(count uint32) {
	binary.LittleEndian.PutUint32(n[InternalNodeNumKeysOffset:], count)
}

func (n node) rightChild() uint32 {
	return binary.LittleEndian.Uint32(n[InternalNodeRightChildOffset:])
}

func (n node) setRightChild(pgno uint32) {
	binary.LittleEndian.PutUint32(n[InternalNodeRightChildOffset:], pgno)
}

func internalCellOffset(i uint32) uint32 {
	return InternalNodeHeaderSize + i*InternalNodeCellSize
}

func (n node) internalKey(i uint32) uint32 {
	return binary.LittleEndian.Uint32(n[internalCellOffset(i)+InternalNodeChildSize:])
}

func (n node) setInternalKey(i, key uint32) {
	binary.LittleEndian.PutUint32(n[internalCellOffset(i)+InternalNodeChildSize:], key)
}

// child returns child pointer i; i == numKeys() is the right child.
func (n node) child(i uint32) uint32 {
	if i == n.numKeys() {
		return n.rightChild()
	}
	return binary.LittleEndian.Uint32(n[internalCellOffset(i):])
}

// setChild sets child pointer i; i == numKeys() is the right child.
func (n node) setChild(i, pgno uint32) {
	if i == n.numKeys() {
		n.setRightChild(pgno)
		return
	}
	binary.LittleEndian.PutUint32(n[internalCellOffset(i):], pgno)
}

func (n node) setInternalCell(i, child, key uint32) {
	off := internalCellOffset(i)
	binary.LittleEndian.PutUint32(n[off:], child)
	binary.LittleEndian.PutUint32(n[off+InternalNodeChildSize:], key)
}

// internalFind returns the index of the child that covers key: the first
// separator >= key, or numKeys() for the right child.
func (n node) internalFind(key uint32) uint32 {
	lo, hi := uint32(0), n.numKeys()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if n.internalKey(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// childIndex returns the position of pgno among the node's children.
func (n node) childIndex(pgno uint32) (uint32, bool) {
	for i := uint32(0); i <= n.numKeys(); i++ {
		if n.child(i) == pgno {
			return i, true
		}
	}
	return 0, false
}

// Initialisation

func (n node) initLeaf() {
	clear(n)
	n.setNodeType(NodeLeaf)
	n.setRoot(false)
	n.setNumCells(0)
	n.setNextLeaf(0)
}

func (n node) initInternal() {
	clear(n)
	n.setNodeType(NodeInternal)
	n.setRoot(false)
	n.setNumKeys(0)
}

// validate checks the type tag and the cell count of page pgno.
func (n node) validate(pgno uint32) error {
	if len(n) != PageSize {
		return errs.NewCorruption(int64(pgno), "page is %d bytes, want %d", len(n), PageSize)
	}
	switch n.nodeType() {
	case NodeLeaf:
		if n.numCells() > LeafNodeMaxCells {
			return errs.NewCorruption(int64(pgno), "leaf holds %d cells, max %d", n.numCells(), LeafNodeMaxCells)
		}
	case NodeInternal:
		if n.numKeys() > InternalNodeMaxKeys {
			return errs.NewCorruption(int64(pgno), "internal node holds %d keys, max %d", n.numKeys(), InternalNodeMaxKeys)
		}
	default:
		return errs.NewCorruption(int64(pgno), "unknown node type 0x%02x", uint8(n.nodeType()))
	}
	return nil
}
