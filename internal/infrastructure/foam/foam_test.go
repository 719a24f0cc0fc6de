package foam

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

const manualDict = `/*--------------------------------*- C++ -*----------------------------------*\
  =========                 |
  \\      /  F ield         | OpenFOAM
\*---------------------------------------------------------------------------*/
FoamFile
{
    version     2.0;
    format      ascii;
    class       dictionary;
    location    "system";
    object      myManualDecomposeDict;
}
// * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * * //

#inputMode merge

baseRegionMin       (0 0 0);    // lower corner
baseRegionMax       (1 1 1);
fineRegionMin       (0.25 0.25 0.25);
fineRegionMax       (0.75 0.75 0.75);

baseRegionDivision  (2 2 2);
fineRegionDivision  (2.0 2 2);

/* unused by meshdecomp */
extra
{
    nested  (1 2 3);
}
`

func TestReadSettings(t *testing.T) {
	s, err := ReadSettings(strings.NewReader(manualDict))
	require.NoError(t, err)

	want := decomposition.Settings{
		BaseRegionMin:      [3]float64{0, 0, 0},
		BaseRegionMax:      [3]float64{1, 1, 1},
		FineRegionMin:      [3]float64{0.25, 0.25, 0.25},
		FineRegionMax:      [3]float64{0.75, 0.75, 0.75},
		BaseRegionDivision: [3]int{2, 2, 2},
		FineRegionDivision: [3]int{2, 2, 2},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDictionary_Structure(t *testing.T) {
	d, err := ParseDictionary(strings.NewReader(manualDict))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"FoamFile", "baseRegionMin", "baseRegionMax", "fineRegionMin", "fineRegionMax",
		"baseRegionDivision", "fineRegionDivision", "extra",
	}, d.Keys())

	hdr, ok := d.SubDict("FoamFile")
	require.True(t, ok)
	obj, err := hdr.Word("object")
	require.NoError(t, err)
	assert.Equal(t, "myManualDecomposeDict", obj)
	loc, err := hdr.Word("location")
	require.NoError(t, err)
	assert.Equal(t, "system", loc)

	ver, err := hdr.Scalar("version")
	require.NoError(t, err)
	assert.Equal(t, 2.0, ver)

	extra, ok := d.SubDict("extra")
	require.True(t, ok)
	v, err := extra.Vector("nested")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 2, 3}, v)
}

func TestDictionary_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		code errors.ErrorCode
		text string
	}{
		{
			name: "missing entry",
			body: strings.Replace(manualDict, "fineRegionMax       (0.75 0.75 0.75);", "", 1),
			code: errors.CodeMissingEntry,
			text: "fineRegionMax",
		},
		{
			name: "two components",
			body: strings.Replace(manualDict, "(1 1 1)", "(1 1)", 1),
			code: errors.CodeMalformedEntry,
			text: "baseRegionMax",
		},
		{
			name: "not a number",
			body: strings.Replace(manualDict, "(1 1 1)", "(1 one 1)", 1),
			code: errors.CodeMalformedEntry,
		},
		{
			name: "fractional division",
			body: strings.Replace(manualDict, "(2 2 2)", "(2 2.5 2)", 1),
			code: errors.CodeMalformedEntry,
			text: "baseRegionDivision",
		},
		{
			name: "sub-dictionary instead of vector",
			body: strings.Replace(manualDict, "baseRegionMin       (0 0 0);", "baseRegionMin { x 0; }", 1),
			code: errors.CodeMalformedEntry,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadSettings(strings.NewReader(tc.body))
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.GetCode(err))
			if tc.text != "" {
				assert.Contains(t, err.Error(), tc.text)
			}
		})
	}
}

func TestParseDictionary_SyntaxErrors(t *testing.T) {
	for name, body := range map[string]string{
		"unterminated entry":   "baseRegionMin (0 0 0)",
		"unterminated block":   "FoamFile { version 2.0;",
		"unterminated comment": "/* never closed",
		"stray brace":          "}",
		"unbalanced paren":     "a ( 1 2 ));",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDictionary(strings.NewReader(body))
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigParse, errors.GetCode(err))
		})
	}
}

func TestReadSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "myManualDecomposeDict")
	require.NoError(t, os.WriteFile(path, []byte(manualDict), 0o644))

	s, err := ReadSettingsFile(path)
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 2}, s.FineRegionDivision)

	_, err = ReadSettingsFile(filepath.Join(dir, "missing"))
	assert.True(t, errors.IsCode(err, errors.CodeConfigFileNotFound))
}

const cellCentres = `FoamFile
{
    version     2.0;
    format      ascii;
    class       volVectorField;
    location    "0";
    object      C;
}
dimensions      [0 1 0 0 0 0 0];

internalField   nonuniform List<vector>
3
(
(0.125 0.125 0.125)
(0.5 0.5 0.5)
(-1e-3 2.5E+1 7)
)
;

boundaryField
{
    walls
    {
        type            calculated;
        value           uniform (0 0 0);
    }
}
`

func TestReadCenters_VolVectorField(t *testing.T) {
	got, err := ReadCenters(strings.NewReader(cellCentres), 0)
	require.NoError(t, err)

	want := []r3.Vec{{X: 0.125, Y: 0.125, Z: 0.125}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: -1e-3, Y: 25, Z: 7}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("centres mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCenters_BareList(t *testing.T) {
	got, err := ReadCenters(strings.NewReader("2\n(\n(1 2 3)\n(4 5 6)\n)\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}, got)

	got, err = ReadCenters(strings.NewReader("((1 2 3) (4 5 6))"), 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = ReadCenters(strings.NewReader("4{(1 1 1)}"), 0)
	require.NoError(t, err)
	assert.Equal(t, []r3.Vec{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}, got)
}

func TestReadCenters_Uniform(t *testing.T) {
	body := "internalField uniform (1 2 3);"

	_, err := ReadCenters(strings.NewReader(body), 0)
	assert.True(t, errors.IsCode(err, errors.CodeMeshParse))

	got, err := ReadCenters(strings.NewReader(body), 2)
	require.NoError(t, err)
	assert.Equal(t, []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 1, Y: 2, Z: 3}}, got)
}

func TestReadCenters_Errors(t *testing.T) {
	cases := map[string]struct {
		body string
		code errors.ErrorCode
	}{
		"size mismatch":   {"3 ( (1 2 3) )", errors.CodeMeshParse},
		"bad component":   {"1 ( (1 x 3) )", errors.CodeMeshParse},
		"four components": {"1 ( (1 2 3 4) )", errors.CodeMeshParse},
		"empty file":      {"", errors.CodeMeshParse},
		"scalar field":    {"internalField nonuniform List<scalar> 1 (0);", errors.CodeUnsupportedFormat},
		"binary":          {"FoamFile { format binary; } internalField nonuniform List<vector> 0();", errors.CodeUnsupportedFormat},
		"unclosed":        {"2 ( (1 2 3)", errors.CodeMeshParse},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCenters(strings.NewReader(tc.body), 0)
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.GetCode(err))
		})
	}
}

func TestWriteLabelList_RoundTrip(t *testing.T) {
	ids := []decomposition.PartitionID{7, 0, 8, 15, 3}

	var buf bytes.Buffer
	require.NoError(t, WriteLabelList(&buf, CellDecompositionHeader, ids))

	out := buf.String()
	assert.Contains(t, out, "class       labelList;")
	assert.Contains(t, out, `location    "constant";`)
	assert.Contains(t, out, "object      cellDecomposition;")
	assert.Contains(t, out, "5\n(\n7\n0\n8\n15\n3\n)\n")

	got, err := ReadLabelList(&buf)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(ids, got))
}

func TestReadLabelList_Compact(t *testing.T) {
	got, err := ReadLabelList(strings.NewReader("3{4}"))
	require.NoError(t, err)
	assert.Equal(t, []decomposition.PartitionID{4, 4, 4}, got)

	_, err = ReadLabelList(strings.NewReader("2 (1)"))
	assert.True(t, errors.IsCode(err, errors.CodeMeshParse))
}

func TestReadLists_OversizedSizeHeader(t *testing.T) {
	centres := map[string]string{
		"huge list":       "99999999999999999 ( (0 0 0) )",
		"overflowing int": "99999999999999999999 ( (0 0 0) )",
		"huge compact":    "300000000{(1 1 1)}",
		"huge field":      "internalField nonuniform List<vector> 99999999999999999 ( (0 0 0) );",
		"below limit":     "1000000 ( (0 0 0) )",
	}
	for name, body := range centres {
		t.Run("centres/"+name, func(t *testing.T) {
			_, err := ReadCenters(strings.NewReader(body), 0)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeMeshParse))
		})
	}

	labels := map[string]string{
		"huge list":    "99999999999999999 ( 1 )",
		"huge compact": "300000000{4}",
		"below limit":  "1000000 ( 1 )",
	}
	for name, body := range labels {
		t.Run("labels/"+name, func(t *testing.T) {
			_, err := ReadLabelList(strings.NewReader(body))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeMeshParse))
		})
	}

	_, err := ReadCenters(strings.NewReader("internalField uniform (1 2 3);"), maxListSize+1)
	assert.True(t, errors.IsCode(err, errors.CodeMeshParse))
}
