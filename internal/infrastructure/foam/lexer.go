// Package foam reads and writes the small subset of the OpenFOAM ASCII
// file format meshdecomp needs: dictionaries such as
// system/myManualDecomposeDict, vector fields such as 0/C, and the
// constant/cellDecomposition labelList consumed by decomposePar's manual
// method.  Binary-format files are not supported.
package foam

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokPunct
	tokDirective
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) is(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// lexer splits OpenFOAM text into words, quoted strings, punctuation
// ( ) { } [ ] ; and #directives.  Comments are dropped.
type lexer struct {
	r      *bufio.Reader
	line   int
	peeked *token
}

func newLexer(r io.Reader) *lexer {
	return &lexer{r: bufio.NewReaderSize(r, 64*1024), line: 1}
}

func isPunct(r rune) bool {
	switch r {
	case '(', ')', '{', '}', '[', ']', ';':
		return true
	}
	return false
}

func (lx *lexer) read() (rune, error) {
	r, _, err := lx.r.ReadRune()
	if err == nil && r == '\n' {
		lx.line++
	}
	return r, err
}

func (lx *lexer) unread(r rune) {
	_ = lx.r.UnreadRune()
	if r == '\n' {
		lx.line--
	}
}

func (lx *lexer) peek() (token, error) {
	if lx.peeked == nil {
		t, err := lx.scan()
		if err != nil {
			return t, err
		}
		lx.peeked = &t
	}
	return *lx.peeked, nil
}

func (lx *lexer) next() (token, error) {
	if lx.peeked != nil {
		t := *lx.peeked
		lx.peeked = nil
		return t, nil
	}
	return lx.scan()
}

func (lx *lexer) syntaxError(line int, format string, args ...interface{}) error {
	return errors.New(errors.CodeMeshParse, "malformed OpenFOAM file").
		WithDetailf("line %d: "+format, append([]interface{}{line}, args...)...)
}

func (lx *lexer) scan() (token, error) {
	for {
		r, err := lx.read()
		if err == io.EOF {
			return token{kind: tokEOF, line: lx.line}, nil
		}
		if err != nil {
			return token{}, errors.Wrap(err, errors.CodeMeshRead, "read failed")
		}
		switch {
		case unicode.IsSpace(r):
			continue
		case r == '/':
			skipped, err := lx.skipComment()
			if err != nil {
				return token{}, err
			}
			if skipped {
				continue
			}
			return lx.word('/')
		case r == '"':
			return lx.quoted()
		case r == '#':
			line := lx.line
			text, err := lx.restOfLine()
			if err != nil {
				return token{}, err
			}
			return token{kind: tokDirective, text: "#" + strings.TrimSpace(text), line: line}, nil
		case isPunct(r):
			return token{kind: tokPunct, text: string(r), line: lx.line}, nil
		default:
			return lx.word(r)
		}
	}
}

// skipComment is called after '/'.  It consumes a // or /* */ comment and
// reports whether one was present.
func (lx *lexer) skipComment() (bool, error) {
	r, err := lx.read()
	if err != nil {
		return false, nil
	}
	switch r {
	case '/':
		_, err := lx.restOfLine()
		return true, err
	case '*':
		start := lx.line
		var prev rune
		for {
			c, err := lx.read()
			if err == io.EOF {
				return false, lx.syntaxError(start, "unterminated block comment")
			}
			if err != nil {
				return false, errors.Wrap(err, errors.CodeMeshRead, "read failed")
			}
			if prev == '*' && c == '/' {
				return true, nil
			}
			prev = c
		}
	default:
		lx.unread(r)
		return false, nil
	}
}

func (lx *lexer) restOfLine() (string, error) {
	var sb strings.Builder
	for {
		r, err := lx.read()
		if err == io.EOF || r == '\n' {
			return sb.String(), nil
		}
		if err != nil {
			return "", errors.Wrap(err, errors.CodeMeshRead, "read failed")
		}
		sb.WriteRune(r)
	}
}

func (lx *lexer) quoted() (token, error) {
	start := lx.line
	var sb strings.Builder
	for {
		r, err := lx.read()
		if err == io.EOF {
			return token{}, lx.syntaxError(start, "unterminated string")
		}
		if err != nil {
			return token{}, errors.Wrap(err, errors.CodeMeshRead, "read failed")
		}
		if r == '"' {
			return token{kind: tokString, text: sb.String(), line: start}, nil
		}
		sb.WriteRune(r)
	}
}

// word reads until whitespace or punctuation.  '<' and '>' stay inside
// words so List<vector> is one token.
func (lx *lexer) word(first rune) (token, error) {
	line := lx.line
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		r, err := lx.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return token{}, errors.Wrap(err, errors.CodeMeshRead, "read failed")
		}
		if unicode.IsSpace(r) || isPunct(r) || r == '"' {
			lx.unread(r)
			break
		}
		sb.WriteRune(r)
	}
	return token{kind: tokWord, text: sb.String(), line: line}, nil
}

// expect consumes the next token and fails unless it is punctuation p.
func (lx *lexer) expect(p string) (token, error) {
	t, err := lx.next()
	if err != nil {
		return t, err
	}
	if !t.is(p) {
		return t, lx.syntaxError(t.line, "expected %q, found %q", p, t.text)
	}
	return t, nil
}
