package foam

import (
	"io"
	"math"
	"os"
	"strconv"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// Entry is one keyword of a dictionary.  Exactly one of Tokens and Dict is
// meaningful: Tokens holds the raw value up to (not including) the
// terminating ';', Dict a nested sub-dictionary.
type Entry struct {
	Keyword string
	Tokens  []string
	Dict    *Dictionary
	Line    int
}

// Dictionary is a parsed OpenFOAM dictionary.  Later duplicates of a
// keyword replace earlier ones, as OpenFOAM does.
type Dictionary struct {
	entries map[string]*Entry
	order   []string
}

func newDictionary() *Dictionary {
	return &Dictionary{entries: make(map[string]*Entry)}
}

// ParseDictionary reads an OpenFOAM dictionary.  #directives are skipped.
func ParseDictionary(r io.Reader) (*Dictionary, error) {
	d := newDictionary()
	if err := d.parse(newLexer(r), false); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigParse, "cannot parse dictionary")
	}
	return d, nil
}

// ParseDictionaryFile opens and parses path.
func ParseDictionaryFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigFileNotFound, "dictionary not found").WithDetail(path).WithCause(err)
		}
		return nil, errors.Wrap(err, errors.CodeConfigParse, "cannot open dictionary")
	}
	defer f.Close()
	d, err := ParseDictionary(f)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeUnknown, "%s", path)
	}
	return d, nil
}

func (d *Dictionary) parse(lx *lexer, nested bool) error {
	for {
		t, err := lx.next()
		if err != nil {
			return err
		}
		switch {
		case t.kind == tokEOF:
			if nested {
				return lx.syntaxError(t.line, "unexpected end of file inside sub-dictionary")
			}
			return nil
		case t.is("}"):
			if nested {
				return nil
			}
			return lx.syntaxError(t.line, "unbalanced '}'")
		case t.kind == tokDirective:
			continue
		case t.kind == tokWord || t.kind == tokString:
			e, err := parseEntry(lx, t)
			if err != nil {
				return err
			}
			d.set(e)
		default:
			return lx.syntaxError(t.line, "expected keyword, found %q", t.text)
		}
	}
}

func parseEntry(lx *lexer, key token) (*Entry, error) {
	e := &Entry{Keyword: key.text, Line: key.line}

	nt, err := lx.peek()
	if err != nil {
		return nil, err
	}
	if nt.is("{") {
		_, _ = lx.next()
		e.Dict = newDictionary()
		return e, e.Dict.parse(lx, true)
	}

	depth := 0
	for {
		t, err := lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokEOF:
			return nil, lx.syntaxError(key.line, "entry %q is not terminated by ';'", key.text)
		case t.is(";") && depth == 0:
			return e, nil
		case t.is("(") || t.is("[") || t.is("{"):
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			depth--
			if depth < 0 {
				return nil, lx.syntaxError(t.line, "unbalanced %q in entry %q", t.text, key.text)
			}
		}
		e.Tokens = append(e.Tokens, t.text)
	}
}

func (d *Dictionary) set(e *Entry) {
	if _, ok := d.entries[e.Keyword]; !ok {
		d.order = append(d.order, e.Keyword)
	}
	d.entries[e.Keyword] = e
}

// Keys lists keywords in first-seen order.
func (d *Dictionary) Keys() []string {
	return append([]string(nil), d.order...)
}

// Lookup returns the entry for key.
func (d *Dictionary) Lookup(key string) (*Entry, bool) {
	e, ok := d.entries[key]
	return e, ok
}

// SubDict returns the nested dictionary stored under key.
func (d *Dictionary) SubDict(key string) (*Dictionary, bool) {
	e, ok := d.entries[key]
	if !ok || e.Dict == nil {
		return nil, false
	}
	return e.Dict, true
}

func (d *Dictionary) tokens(key string) ([]string, *Entry, error) {
	e, ok := d.entries[key]
	if !ok {
		return nil, nil, errors.New(errors.CodeMissingEntry, "missing dictionary entry").WithDetail(key)
	}
	if e.Dict != nil {
		return nil, e, malformed(e, "is a sub-dictionary")
	}
	return e.Tokens, e, nil
}

func malformed(e *Entry, format string, args ...interface{}) error {
	return errors.New(errors.CodeMalformedEntry, "malformed dictionary entry").
		WithDetailf("%s (line %d): "+format, append([]interface{}{e.Keyword, e.Line}, args...)...)
}

// Word returns a single-token value such as `format ascii;`.
func (d *Dictionary) Word(key string) (string, error) {
	toks, e, err := d.tokens(key)
	if err != nil {
		return "", err
	}
	if len(toks) != 1 {
		return "", malformed(e, "expected one word, found %d tokens", len(toks))
	}
	return toks[0], nil
}

// Scalar returns a single numeric value.
func (d *Dictionary) Scalar(key string) (float64, error) {
	w, err := d.Word(key)
	if err != nil {
		return 0, err
	}
	f, perr := strconv.ParseFloat(w, 64)
	if perr != nil {
		e, _ := d.Lookup(key)
		return 0, malformed(e, "%q is not a number", w)
	}
	return f, nil
}

// Vector returns a `(x y z)` value.
func (d *Dictionary) Vector(key string) ([3]float64, error) {
	var v [3]float64
	toks, e, err := d.tokens(key)
	if err != nil {
		return v, err
	}
	if len(toks) != 5 || toks[0] != "(" || toks[4] != ")" {
		return v, malformed(e, "expected (x y z), found %v", toks)
	}
	for i := 0; i < 3; i++ {
		f, perr := strconv.ParseFloat(toks[i+1], 64)
		if perr != nil {
			return v, malformed(e, "component %d %q is not a number", i, toks[i+1])
		}
		v[i] = f
	}
	return v, nil
}

// LabelVector returns a vector whose components must be whole numbers.
// Both `(2 2 2)` and `(2.0 2 2)` are accepted.
func (d *Dictionary) LabelVector(key string) ([3]int, error) {
	var out [3]int
	v, err := d.Vector(key)
	if err != nil {
		return out, err
	}
	for i, f := range v {
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			e, _ := d.Lookup(key)
			return out, malformed(e, "component %d (%g) is not a whole number", i, f)
		}
		out[i] = int(f)
	}
	return out, nil
}

// Settings extracts the six decomposition entries.
func (d *Dictionary) Settings() (decomposition.Settings, error) {
	var s decomposition.Settings
	vecs := []struct {
		key string
		dst *[3]float64
	}{
		{"baseRegionMin", &s.BaseRegionMin},
		{"baseRegionMax", &s.BaseRegionMax},
		{"fineRegionMin", &s.FineRegionMin},
		{"fineRegionMax", &s.FineRegionMax},
	}
	for _, e := range vecs {
		v, err := d.Vector(e.key)
		if err != nil {
			return s, err
		}
		*e.dst = v
	}
	var err error
	if s.BaseRegionDivision, err = d.LabelVector("baseRegionDivision"); err != nil {
		return s, err
	}
	if s.FineRegionDivision, err = d.LabelVector("fineRegionDivision"); err != nil {
		return s, err
	}
	return s, nil
}

// ReadSettings parses a myManualDecomposeDict from r.
func ReadSettings(r io.Reader) (decomposition.Settings, error) {
	d, err := ParseDictionary(r)
	if err != nil {
		return decomposition.Settings{}, err
	}
	return d.Settings()
}

// ReadSettingsFile parses the dictionary at path.
func ReadSettingsFile(path string) (decomposition.Settings, error) {
	d, err := ParseDictionaryFile(path)
	if err != nil {
		return decomposition.Settings{}, err
	}
	s, err := d.Settings()
	if err != nil {
		return s, errors.Wrapf(err, errors.CodeUnknown, "%s", path)
	}
	return s, nil
}
