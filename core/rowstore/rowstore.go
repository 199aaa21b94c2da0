// Package rowstore is a durable single-table row store on a B+tree file.
//
// The table has a fixed schema (id, username, email) keyed by id. Rows are
// kept in pages of the database file and written back on Close.
//
//	t, err := rowstore.Open("rows.db")
//	if err != nil { ... }
//	defer t.Close()
//
//	r, _ := row.New(1, "alice", "alice@example.com")
//	if err := t.Insert(r); errors.Is(err, errs.ErrDuplicateKey) { ... }
//
//	rows, _ := t.Select()
//	for rows.Next() {
//		fmt.Println(rows.Row())
//	}
package rowstore

import (
	"fmt"
	"io"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/core/rowstore/internal/btree"
	"github.com/FocuswithJustin/rowstore/core/rowstore/internal/pager"
	"github.com/FocuswithJustin/rowstore/core/rowstore/row"
	"github.com/FocuswithJustin/rowstore/internal/logging"
)

// Defaults
const (
	PageSize        = pager.DefaultPageSize
	DefaultMaxPages = pager.DefaultMaxPages
)

// ErrClosed is returned by every operation on a closed table.
var ErrClosed = errs.ErrClosed

// Options configures a table.
type Options struct {
	MaxPages        uint32 // Page limit of the file; 0 means DefaultMaxPages
	InternalMaxKeys uint32 // Internal node split threshold; 0 means the physical capacity
	ReadOnly        bool
}

// Table is an open database file.
type Table struct {
	pager *pager.Pager
	tree  *btree.Tree
	path  string
}

// Stats describes the table's file and tree shape.
type Stats struct {
	Pages    uint32 `json:"pages"`
	MaxPages uint32 `json:"max_pages"`
	Root     uint32 `json:"root"`
	Depth    int    `json:"depth"`
	Leaves   int    `json:"leaves"`
	Internal int    `json:"internal"`
	Rows     int    `json:"rows"`
}

// Constant is a named layout value.
type Constant = btree.Constant

// Constants returns the on-disk layout constants.
func Constants() []Constant {
	return btree.Constants()
}

// Open opens or creates the table file at path with default options.
func Open(path string) (*Table, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions opens or creates the table file at path.
func OpenWithOptions(path string, opts Options) (*Table, error) {
	p, err := pager.OpenWithOptions(path, pager.Options{
		PageSize: PageSize,
		MaxPages: opts.MaxPages,
		ReadOnly: opts.ReadOnly,
	})
	if err != nil {
		return nil, err
	}

	tree, err := btree.Open(btree.NewPagerAdapter(p), btree.Config{InternalMaxKeys: opts.InternalMaxKeys})
	if err != nil {
		p.Close()
		return nil, err
	}

	logging.TableOpened(path, uint32(p.PageCount()), tree.Root(), "read_only", opts.ReadOnly)
	return &Table{pager: p, tree: tree, path: path}, nil
}

// Path returns the file path of the table.
func (t *Table) Path() string {
	return t.path
}

// Insert adds r. It returns a ValidationError for an invalid row,
// ErrDuplicateKey when the id exists and ErrTableFull when the file has no
// room for the split the insert needs. No page changes on error.
func (t *Table) Insert(r row.Row) error {
	if t.tree == nil {
		return ErrClosed
	}
	if t.pager.IsReadOnly() {
		return errs.ErrReadOnly
	}

	value, err := row.Marshal(r)
	if err != nil {
		return err
	}
	return t.tree.Insert(r.ID, value)
}

// Get returns the row stored under id. ok is false when there is none.
func (t *Table) Get(id uint32) (r row.Row, ok bool, err error) {
	if t.tree == nil {
		return row.Row{}, false, ErrClosed
	}

	c, err := t.tree.Find(id)
	if err != nil {
		return row.Row{}, false, err
	}
	if c.EndOfTable {
		return row.Row{}, false, nil
	}
	key, err := c.Key()
	if err != nil || key != id {
		return row.Row{}, false, err
	}
	v, err := c.Value()
	if err != nil {
		return row.Row{}, false, err
	}
	r, err = row.Decode(v)
	if err != nil {
		return row.Row{}, false, err
	}
	return r, true, nil
}

// Select returns every row in ascending id order.
func (t *Table) Select() (*Rows, error) {
	if t.tree == nil {
		return nil, ErrClosed
	}
	c, err := t.tree.First()
	if err != nil {
		return nil, err
	}
	return &Rows{cursor: c}, nil
}

// Check verifies every structural invariant of the tree.
func (t *Table) Check() error {
	if t.tree == nil {
		return ErrClosed
	}
	_, err := t.tree.Check()
	return err
}

// Stats verifies the tree and reports its shape.
func (t *Table) Stats() (Stats, error) {
	if t.tree == nil {
		return Stats{}, ErrClosed
	}
	s, err := t.tree.Check()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Pages:    uint32(t.pager.PageCount()),
		MaxPages: uint32(t.pager.MaxPages()),
		Root:     t.tree.Root(),
		Depth:    s.Depth,
		Leaves:   s.Leaves,
		Internal: s.Internal,
		Rows:     s.Rows,
	}, nil
}

// Dump writes the indented tree listing to w.
func (t *Table) Dump(w io.Writer) error {
	if t.tree == nil {
		return ErrClosed
	}
	return t.tree.Dump(w)
}

// Close flushes all modified pages and closes the file.
func (t *Table) Close() error {
	if t.tree == nil {
		return ErrClosed
	}
	t.tree = nil
	if err := t.pager.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", t.path, err)
	}
	logging.Debug("table_closed", "path", t.path)
	return nil
}

// Rows iterates over the rows of a Select.
type Rows struct {
	cursor  *btree.Cursor
	cur     row.Row
	err     error
	started bool
	done    bool
}

// Next advances to the next row. It returns false at the end of the table
// or on error; check Err afterwards.
func (rs *Rows) Next() bool {
	if rs.done || rs.err != nil {
		return false
	}
	if rs.started {
		if err := rs.cursor.Advance(); err != nil {
			rs.err = err
			return false
		}
	}
	rs.started = true

	if rs.cursor.EndOfTable {
		rs.done = true
		return false
	}

	v, err := rs.cursor.Value()
	if err != nil {
		rs.err = err
		return false
	}
	rs.cur, err = row.Decode(v)
	if err != nil {
		rs.err = err
		return false
	}
	return true
}

// Row returns the current row.
func (rs *Rows) Row() row.Row {
	return rs.cur
}

// Err returns the error that stopped the iteration, if any.
func (rs *Rows) Err() error {
	return rs.err
}

// Close ends the iteration.
func (rs *Rows) Close() error {
	rs.done = true
	return nil
}
