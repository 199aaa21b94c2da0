// Package statement parses the two statements of the command loop:
//
//	insert <id> <username> <email>
//	select
package statement

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	errs "github.com/FocuswithJustin/rowstore/core/errors"
	"github.com/FocuswithJustin/rowstore/core/rowstore/row"
)

// Kind identifies a statement.
type Kind int

// Statement kinds
const (
	KindInsert Kind = iota + 1
	KindSelect
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindSelect:
		return "select"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Statement is a parsed, validated statement.
type Statement struct {
	Kind Kind
	Row  row.Row // insert only
}

//nolint:govet // participle grammar tags are not standard struct tags
type grammar struct {
	Insert *insertGrammar `  "insert" @@`
	Select bool           `| @"select"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type insertGrammar struct {
	ID       string `@Word`
	Username string `@Word`
	Email    string `@Word`
}

// Fields are whitespace separated, so a field may hold any other byte.
var statementLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `\S+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[grammar](
	participle.Lexer(statementLexer),
	participle.Elide("Whitespace"),
)

// Parse parses one input line. It returns an UnsupportedError when the
// line does not start with a known keyword, a ParseError when the
// statement is malformed and a ValidationError when the row is out of
// bounds.
func Parse(line string) (Statement, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || (fields[0] != "insert" && fields[0] != "select") {
		return Statement{}, errs.NewUnsupported("statement", line)
	}

	parsed, err := parser.ParseString("", line)
	if err != nil {
		return Statement{}, errs.NewParse("statement", line, err.Error())
	}

	if parsed.Select {
		return Statement{Kind: KindSelect}, nil
	}

	id, err := strconv.ParseInt(parsed.Insert.ID, 10, 64)
	if err != nil {
		if !errs.Is(err, strconv.ErrRange) {
			return Statement{}, errs.NewParse("statement", line, fmt.Sprintf("id %q is not a number", parsed.Insert.ID))
		}
		if strings.HasPrefix(parsed.Insert.ID, "-") {
			return Statement{}, errs.NewValidation("id", row.MsgIDNotPositive)
		}
		return Statement{}, errs.NewValidation("id", row.MsgIDTooLarge)
	}
	r, err := row.New(id, parsed.Insert.Username, parsed.Insert.Email)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Kind: KindInsert, Row: r}, nil
}
