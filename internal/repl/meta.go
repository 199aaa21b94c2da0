package repl

import (
	"fmt"

	"github.com/FocuswithJustin/rowstore/core/rowstore"
)

// meta runs a command starting with '.'.
func (s *Session) meta(line string) (stop bool, err error) {
	switch line {
	case ".exit":
		return true, nil

	case ".btree":
		s.println("Btree ->")
		return false, s.table.Dump(s.out)

	case ".constants":
		s.println("Constants ->")
		for _, c := range rowstore.Constants() {
			fmt.Fprintf(s.out, "%s: %d\n", c.Name, c.Value)
		}
		return false, nil

	case ".stats":
		st, err := s.table.Stats()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "pages: %d/%d\nroot: %d\ndepth: %d\nleaves: %d\ninternal: %d\nrows: %d\n",
			st.Pages, st.MaxPages, st.Root, st.Depth, st.Leaves, st.Internal, st.Rows)
		return false, nil

	default:
		s.println(fmt.Sprintf(MsgUnrecognizedMeta, line))
		return false, nil
	}
}
