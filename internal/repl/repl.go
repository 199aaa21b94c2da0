// Package repl runs the line-oriented command loop over a table.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/core/rowstore"
	"github.com/FocuswithJustin/rowstore/internal/logging"
	"github.com/FocuswithJustin/rowstore/internal/statement"
)

// Prompt is printed before every input line.
const Prompt = "db > "

// Result lines
const (
	MsgExecuted          = "executed"
	MsgDuplicateKey      = "Error: duplicate key"
	MsgTableFull         = "Error: table is full"
	MsgSyntaxError       = "Syntax error. Could not parse statement."
	MsgUnrecognizedStart = "Unrecognized keyword at start of '%s'."
	MsgUnrecognizedMeta  = "Unrecognized command '%s'"
)

// maxLineSize bounds one input line.
const maxLineSize = 1 << 20

// Session is one run of the command loop.
type Session struct {
	table *rowstore.Table
	out   *bufio.Writer
}

// Run reads commands from in until .exit or end of input, writing results
// to out. The table is left open; the caller closes it. Run returns an
// error only when the session must abort: a corrupt table, an I/O failure
// or a broken output stream.
func Run(ctx context.Context, table *rowstore.Table, in io.Reader, out io.Writer) error {
	ctx = logging.WithSessionID(ctx, logging.NewSessionID())
	logging.InfoContext(ctx, "session_started", "path", table.Path())

	s := &Session{table: table, out: bufio.NewWriter(out)}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.out.WriteString(Prompt)
		if err := s.out.Flush(); err != nil {
			return fmt.Errorf("failed to write prompt: %w", err)
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			logging.InfoContext(ctx, "session_ended", "reason", "eof")
			return nil
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		stop, err := s.handle(ctx, line)
		if flushErr := s.out.Flush(); flushErr != nil && err == nil {
			err = fmt.Errorf("failed to write output: %w", flushErr)
		}
		if err != nil {
			logging.ErrorContext(ctx, "session_aborted", "error", err.Error())
			return err
		}
		if stop {
			logging.InfoContext(ctx, "session_ended", "reason", "exit")
			return nil
		}
	}
}

// handle executes one line. stop is true after .exit.
func (s *Session) handle(ctx context.Context, line string) (stop bool, err error) {
	if strings.HasPrefix(line, ".") {
		return s.meta(line)
	}

	stmt, err := statement.Parse(line)
	if err != nil {
		return false, s.report(ctx, line, err)
	}

	switch stmt.Kind {
	case statement.KindInsert:
		if err := s.table.Insert(stmt.Row); err != nil {
			return false, s.report(ctx, line, err)
		}
	case statement.KindSelect:
		if err := s.selectAll(); err != nil {
			return false, s.report(ctx, line, err)
		}
	}
	s.println(MsgExecuted)
	return false, nil
}

func (s *Session) selectAll() error {
	rows, err := s.table.Select()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		s.println(rows.Row().String())
	}
	return rows.Err()
}

// report prints the result line for a rejected statement. Errors without a
// result line abort the session and are returned.
func (s *Session) report(ctx context.Context, line string, err error) error {
	msg, ok := Message(line, err)
	if !ok {
		return err
	}
	logging.StatementFailed(ctx, line, err)
	s.println(msg)
	return nil
}

// Message returns the result line for a statement error. ok is false for
// errors that end the session, such as corruption.
func Message(line string, err error) (msg string, ok bool) {
	var (
		ve *errs.ValidationError
		pe *errs.ParseError
		ue *errs.UnsupportedError
	)
	switch {
	case errors.Is(err, errs.ErrCorrupt):
		return "", false
	case errors.As(err, &ve):
		return ve.Message, true
	case errors.As(err, &pe):
		return MsgSyntaxError, true
	case errors.As(err, &ue):
		return fmt.Sprintf(MsgUnrecognizedStart, line), true
	case errors.Is(err, errs.ErrDuplicateKey):
		return MsgDuplicateKey, true
	case errors.Is(err, errs.ErrTableFull):
		return MsgTableFull, true
	case errors.Is(err, errs.ErrReadOnly):
		return "Error: table is read-only", true
	default:
		return "", false
	}
}

func (s *Session) println(line string) {
	s.out.WriteString(line)
	s.out.WriteByte('\n')
}
