package foam

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// Header is the FoamFile block written ahead of a list.
type Header struct {
	Class    string
	Location string
	Object   string
	Note     string
}

// CellDecompositionHeader is what decomposePar's manual method expects in
// constant/cellDecomposition.
var CellDecompositionHeader = Header{
	Class:    "labelList",
	Location: "constant",
	Object:   "cellDecomposition",
}

const banner = `/*--------------------------------*- C++ -*----------------------------------*\
| meshdecomp                                                                  |
\*---------------------------------------------------------------------------*/
`

func (h Header) write(w *bufio.Writer) {
	w.WriteString(banner)
	w.WriteString("FoamFile\n{\n")
	fmt.Fprintf(w, "    %-12s%s;\n", "version", "2.0")
	fmt.Fprintf(w, "    %-12s%s;\n", "format", "ascii")
	fmt.Fprintf(w, "    %-12s%s;\n", "class", h.Class)
	if h.Note != "" {
		fmt.Fprintf(w, "    %-12s%q;\n", "note", h.Note)
	}
	if h.Location != "" {
		fmt.Fprintf(w, "    %-12s%q;\n", "location", h.Location)
	}
	fmt.Fprintf(w, "    %-12s%s;\n", "object", h.Object)
	w.WriteString("}\n// * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * //\n\n")
}

// WriteLabelList writes ids as an ascii labelList with header h.
func WriteLabelList(w io.Writer, h Header, ids []decomposition.PartitionID) error {
	bw := bufio.NewWriterSize(w, 64*1024)
	h.write(bw)
	bw.WriteString(strconv.Itoa(len(ids)))
	bw.WriteString("\n(\n")
	buf := make([]byte, 0, 24)
	for _, id := range ids {
		buf = strconv.AppendInt(buf[:0], int64(id), 10)
		buf = append(buf, '\n')
		bw.Write(buf)
	}
	bw.WriteString(")\n\n\n// ************************************************************************* //\n")
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.CodeWriteFailed, "cannot write labelList")
	}
	return nil
}

// ReadLabelList reads an ascii labelList, with or without FoamFile header.
func ReadLabelList(r io.Reader) ([]decomposition.PartitionID, error) {
	lx := newLexer(r)
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokEOF:
			return nil, errors.New(errors.CodeMeshParse, "no label list found")
		case t.kind == tokDirective:
			continue
		case t.kind == tokWord && t.text == "FoamFile":
			if err := checkHeader(lx); err != nil {
				return nil, err
			}
		case t.kind == tokWord && isCount(t.text):
			n, err := listSize(lx, t)
			if err != nil {
				return nil, err
			}
			return readLabels(lx, n)
		default:
			return nil, lx.syntaxError(t.line, "unexpected %q", t.text)
		}
	}
}

func readLabels(lx *lexer, n int) ([]decomposition.PartitionID, error) {
	open, err := lx.next()
	if err != nil {
		return nil, err
	}
	if open.is("{") {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		v, perr := strconv.Atoi(t.text)
		if perr != nil {
			return nil, lx.syntaxError(t.line, "label %q is not an integer", t.text)
		}
		if _, err := lx.expect("}"); err != nil {
			return nil, err
		}
		out := make([]decomposition.PartitionID, n)
		for i := range out {
			out[i] = decomposition.PartitionID(v)
		}
		return out, nil
	}
	if !open.is("(") {
		return nil, lx.syntaxError(open.line, "expected '(' after list size, found %q", open.text)
	}
	out := make([]decomposition.PartitionID, 0, capHint(n))
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		if t.is(")") {
			break
		}
		if t.kind != tokWord {
			return nil, lx.syntaxError(t.line, "unexpected %q in label list", t.text)
		}
		v, perr := strconv.Atoi(t.text)
		if perr != nil {
			return nil, lx.syntaxError(t.line, "label %q is not an integer", t.text)
		}
		out = append(out, decomposition.PartitionID(v))
	}
	if len(out) != n {
		return nil, errors.New(errors.CodeMeshParse, "label list size mismatch").
			WithDetailf("header says %d, found %d", n, len(out))
	}
	return out, nil
}
