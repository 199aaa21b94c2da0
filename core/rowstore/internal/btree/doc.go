// Package btree implements the B+tree that stores rows, one node per page.
//
// Every node starts with a 6-byte common header:
//
//	offset 0  node_type       1 byte (0 internal, 1 leaf)
//	offset 1  is_root         1 byte
//	offset 2  parent_pointer  4 bytes
//
// Leaves add num_cells and next_leaf (14-byte header) followed by an array of
// 297-byte cells, a 4-byte key and a 293-byte row. Internal nodes add
// num_keys and right_child_pointer followed by (child_pointer, key) pairs,
// where each key is the largest key in the child at the same index. All
// integers are little-endian.
//
// Page 0 is the root of a new tree and always remains the leftmost leaf, so a
// next_leaf of 0 marks the end of the leaf chain. When the root splits, a new
// root is allocated at the end of the file; Open finds it again by following
// parent pointers up from page 0.
//
// Usage:
//
//	p, _ := pager.Open("rows.db", false)
//	tree, _ := btree.Open(btree.NewPagerAdapter(p), btree.Config{})
//	_ = tree.Insert(1, value)
//	c, _ := tree.First()
//	for !c.EndOfTable {
//		v, _ := c.Value()
//		...
//		_ = c.Advance()
//	}
package btree
