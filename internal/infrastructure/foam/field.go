package foam

import (
	"io"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// ReadCenters reads cell centres from either a volVectorField (the
// internalField of 0/C as written by `postProcess -func writeCellCentres`)
// or a bare vector list `N ( (x y z) ... )`.  A uniform internalField is
// expanded to cellCount copies; with cellCount <= 0 it is an error.
func ReadCenters(r io.Reader, cellCount int) ([]r3.Vec, error) {
	lx := newLexer(r)
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokEOF:
			return nil, errors.New(errors.CodeMeshParse, "no internalField or vector list found")
		case t.kind == tokDirective:
			continue
		case t.kind == tokWord && t.text == "FoamFile":
			if err := checkHeader(lx); err != nil {
				return nil, err
			}
		case t.kind == tokWord && t.text == "internalField":
			return readInternalField(lx, cellCount)
		case t.kind == tokWord && isCount(t.text):
			n, err := listSize(lx, t)
			if err != nil {
				return nil, err
			}
			return readVectorList(lx, n)
		case t.is("("):
			return readVectorElements(lx, -1, ")")
		case t.kind == tokWord:
			if err := skipEntry(lx); err != nil {
				return nil, err
			}
		default:
			return nil, lx.syntaxError(t.line, "unexpected %q", t.text)
		}
	}
}

// checkHeader parses the FoamFile block and refuses binary files.
func checkHeader(lx *lexer) error {
	if _, err := lx.expect("{"); err != nil {
		return err
	}
	hdr := newDictionary()
	if err := hdr.parse(lx, true); err != nil {
		return err
	}
	if f, err := hdr.Word("format"); err == nil && f != "ascii" {
		return errors.New(errors.CodeUnsupportedFormat, "only ascii OpenFOAM files are supported").WithDetailf("format %s", f)
	}
	return nil
}

// skipEntry discards the rest of a keyword entry: either a {} block or
// tokens up to ';'.
func skipEntry(lx *lexer) error {
	t, err := lx.peek()
	if err != nil {
		return err
	}
	if t.is("{") {
		_, _ = lx.next()
		return newDictionary().parse(lx, true)
	}
	_, err = parseEntry(lx, token{kind: tokWord, text: "<skipped>", line: t.line})
	return err
}

func readInternalField(lx *lexer, cellCount int) ([]r3.Vec, error) {
	kind, err := lx.next()
	if err != nil {
		return nil, err
	}
	switch kind.text {
	case "uniform":
		v, err := readVector(lx)
		if err != nil {
			return nil, err
		}
		if cellCount <= 0 {
			return nil, errors.New(errors.CodeMeshParse, "uniform internalField needs a known cell count")
		}
		if cellCount > maxListSize {
			return nil, errors.New(errors.CodeMeshParse, "cell count is too large").
				WithDetailf("%d (limit %d)", cellCount, maxListSize)
		}
		out := make([]r3.Vec, cellCount)
		for i := range out {
			out[i] = v
		}
		return out, nil
	case "nonuniform":
		typ, err := lx.next()
		if err != nil {
			return nil, err
		}
		if typ.text != "List<vector>" {
			return nil, errors.New(errors.CodeUnsupportedFormat, "internalField is not a vector list").WithDetail(typ.text)
		}
		cnt, err := lx.next()
		if err != nil {
			return nil, err
		}
		if cnt.is("(") {
			return readVectorElements(lx, -1, ")")
		}
		if !isCount(cnt.text) {
			return nil, lx.syntaxError(cnt.line, "expected list size, found %q", cnt.text)
		}
		n, err := listSize(lx, cnt)
		if err != nil {
			return nil, err
		}
		return readVectorList(lx, n)
	default:
		return nil, lx.syntaxError(kind.line, "expected uniform or nonuniform, found %q", kind.text)
	}
}

// readVectorList reads `( v... )` or the compact `{v}` form after a size.
func readVectorList(lx *lexer, n int) ([]r3.Vec, error) {
	open, err := lx.next()
	if err != nil {
		return nil, err
	}
	switch {
	case open.is("("):
		return readVectorElements(lx, n, ")")
	case open.is("{"):
		v, err := readVector(lx)
		if err != nil {
			return nil, err
		}
		if _, err := lx.expect("}"); err != nil {
			return nil, err
		}
		out := make([]r3.Vec, n)
		for i := range out {
			out[i] = v
		}
		return out, nil
	default:
		return nil, lx.syntaxError(open.line, "expected '(' or '{' after list size, found %q", open.text)
	}
}

// readVectorElements reads vectors until the closing punctuation.  A
// non-negative n must match the element count.
func readVectorElements(lx *lexer, n int, closing string) ([]r3.Vec, error) {
	out := make([]r3.Vec, 0, capHint(n))
	for {
		t, err := lx.peek()
		if err != nil {
			return nil, err
		}
		if t.is(closing) {
			_, _ = lx.next()
			break
		}
		if t.kind == tokEOF {
			return nil, lx.syntaxError(t.line, "vector list is not closed")
		}
		v, err := readVector(lx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if n >= 0 && len(out) != n {
		return nil, errors.New(errors.CodeMeshParse, "vector list size mismatch").
			WithDetailf("header says %d, found %d", n, len(out))
	}
	return out, nil
}

func readVector(lx *lexer) (r3.Vec, error) {
	open, err := lx.expect("(")
	if err != nil {
		return r3.Vec{}, err
	}
	var c [3]float64
	for i := 0; i < 3; i++ {
		t, err := lx.next()
		if err != nil {
			return r3.Vec{}, err
		}
		f, perr := strconv.ParseFloat(t.text, 64)
		if t.kind != tokWord || perr != nil {
			return r3.Vec{}, lx.syntaxError(t.line, "vector component %q is not a number", t.text)
		}
		c[i] = f
	}
	if t, err := lx.next(); err != nil {
		return r3.Vec{}, err
	} else if !t.is(")") {
		return r3.Vec{}, lx.syntaxError(open.line, "vector has more than three components")
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

// maxListSize bounds list size headers and uniform expansion counts.
const maxListSize = 1 << 28

// maxPrealloc caps the capacity reserved from a size header; longer lists
// grow by append.
const maxPrealloc = 1 << 20

// listSize parses the size header t.
func listSize(lx *lexer, t token) (int, error) {
	n, err := strconv.Atoi(t.text)
	if err != nil || n > maxListSize {
		return 0, lx.syntaxError(t.line, "list size %s exceeds %d", t.text, maxListSize)
	}
	return n, nil
}

func capHint(n int) int {
	if n < 0 {
		return 0
	}
	return min(n, maxPrealloc)
}

func isCount(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
