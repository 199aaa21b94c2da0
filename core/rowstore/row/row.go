// Package row packs and unpacks the fixed-width tuple stored in each leaf cell.
//
// Layout (293 bytes):
//
//	offset 0   id        4 bytes, little-endian
//	offset 4   username  32 bytes, NUL-padded
//	offset 36  email     255 bytes, NUL-padded
package row

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
)

// Column sizes and offsets
const (
	IDSize         = 4
	UsernameSize   = 32
	EmailSize      = 255
	IDOffset       = 0
	UsernameOffset = IDOffset + IDSize
	EmailOffset    = UsernameOffset + UsernameSize
	Size           = IDSize + UsernameSize + EmailSize
)

// Validation messages, rendered verbatim by the command loop.
const (
	MsgIDNotPositive = "ID must be positive"
	MsgIDTooLarge    = "ID is too large"
	MsgStringTooLong = "string is too long"
)

// Row is one tuple of the fixed schema.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

// New builds a validated row. The id is taken as int64 so negative input can
// be reported rather than wrapped.
func New(id int64, username, email string) (Row, error) {
	if id <= 0 {
		return Row{}, errs.NewValidation("id", MsgIDNotPositive)
	}
	if id > math.MaxUint32 {
		return Row{}, errs.NewValidation("id", MsgIDTooLarge)
	}
	r := Row{ID: uint32(id), Username: username, Email: email}
	if err := r.Validate(); err != nil {
		return Row{}, err
	}
	return r, nil
}

// Validate checks the row against the schema bounds.
func (r Row) Validate() error {
	if r.ID == 0 {
		return errs.NewValidation("id", MsgIDNotPositive)
	}
	if len(r.Username) > UsernameSize {
		return errs.NewValidation("username", MsgStringTooLong)
	}
	if len(r.Email) > EmailSize {
		return errs.NewValidation("email", MsgStringTooLong)
	}
	return nil
}

// Encode packs r into dst, which must hold at least Size bytes.
// dst is left untouched when r is invalid.
func Encode(r Row, dst []byte) error {
	if len(dst) < Size {
		return fmt.Errorf("row buffer too small: %d bytes, need %d", len(dst), Size)
	}
	if err := r.Validate(); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(dst[IDOffset:], r.ID)
	putPadded(dst[UsernameOffset:UsernameOffset+UsernameSize], r.Username)
	putPadded(dst[EmailOffset:EmailOffset+EmailSize], r.Email)
	return nil
}

// Marshal returns the packed form of r.
func Marshal(r Row) ([]byte, error) {
	buf := make([]byte, Size)
	if err := Encode(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode unpacks a row, trimming each string at its first NUL.
func Decode(src []byte) (Row, error) {
	if len(src) < Size {
		return Row{}, fmt.Errorf("row buffer too small: %d bytes, need %d", len(src), Size)
	}
	return Row{
		ID:       binary.LittleEndian.Uint32(src[IDOffset:]),
		Username: trimNUL(src[UsernameOffset : UsernameOffset+UsernameSize]),
		Email:    trimNUL(src[EmailOffset : EmailOffset+EmailSize]),
	}, nil
}

// String renders the row in its text form.
func (r Row) String() string {
	return fmt.Sprintf("(%d, %s, %s)", r.ID, r.Username, r.Email)
}

func putPadded(field []byte, s string) {
	n := copy(field, s)
	clear(field[n:])
}

func trimNUL(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
