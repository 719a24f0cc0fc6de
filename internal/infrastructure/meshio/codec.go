package meshio

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/internal/infrastructure/foam"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// DecodeCenters reads cell centres encoded as f.  cellCount is only used to
// expand a uniform OpenFOAM internalField; pass 0 when unknown.
func DecodeCenters(r io.Reader, f Format, cellCount int) ([]r3.Vec, error) {
	var (
		out []r3.Vec
		err error
	)
	switch f {
	case FormatCSV:
		out, err = decodeCentersCSV(r)
	case FormatJSON:
		out, err = decodeCentersJSON(r)
	case FormatFoam, "":
		out, err = foam.ReadCenters(r, cellCount)
	default:
		return nil, errors.New(errors.CodeUnsupportedFormat, "unknown centre format").WithDetail(string(f))
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeMeshEmpty, "mesh has no cells")
	}
	return out, nil
}

// decodeCentersCSV reads x,y,z rows.  '#' starts a comment line.  A first
// row that is not numeric is a header; its x, y and z columns are located
// by name.
func decodeCentersCSV(r io.Reader) ([]r3.Vec, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	cols := [3]int{0, 1, 2}
	var out []r3.Vec
	for first := true; ; first = false {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeMeshParse, "invalid CSV")
		}
		line, _ := cr.FieldPos(0)

		if first && !numeric(rec[0]) {
			if cols, err = headerColumns(rec); err != nil {
				return nil, err
			}
			continue
		}

		var c [3]float64
		for i, col := range cols {
			if col >= len(rec) {
				return nil, errors.New(errors.CodeMeshParse, "CSV row is too short").
					WithDetailf("line %d has %d fields", line, len(rec))
			}
			v, perr := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if perr != nil {
				return nil, errors.New(errors.CodeMeshParse, "CSV field is not a number").
					WithDetailf("line %d field %d: %q", line, col+1, rec[col])
			}
			c[i] = v
		}
		out = append(out, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
	}
}

func numeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func headerColumns(rec []string) ([3]int, error) {
	cols := [3]int{-1, -1, -1}
	for i, name := range rec {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "x", "cx", "c_x":
			cols[0] = i
		case "y", "cy", "c_y":
			cols[1] = i
		case "z", "cz", "c_z":
			cols[2] = i
		}
	}
	for i, c := range cols {
		if c < 0 {
			return cols, errors.New(errors.CodeMeshParse, "CSV header lacks a coordinate column").
				WithDetailf("missing %c in %v", "xyz"[i], rec)
		}
	}
	return cols, nil
}

func decodeCentersJSON(r io.Reader) ([]r3.Vec, error) {
	var rows [][]float64
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, errors.CodeMeshParse, "invalid JSON centres")
	}
	out := make([]r3.Vec, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, errors.New(errors.CodeMeshParse, "JSON centre needs three components").
				WithDetailf("element %d has %d", i, len(row))
		}
		out[i] = r3.Vec{X: row[0], Y: row[1], Z: row[2]}
	}
	return out, nil
}

// EncodePartitions writes ids encoded as f.
func EncodePartitions(w io.Writer, f Format, ids []decomposition.PartitionID) error {
	switch f {
	case FormatFoam, "":
		return foam.WriteLabelList(w, foam.CellDecompositionHeader, ids)
	case FormatCSV:
		bw := bufio.NewWriter(w)
		buf := make([]byte, 0, 24)
		for _, id := range ids {
			buf = strconv.AppendInt(buf[:0], int64(id), 10)
			buf = append(buf, '\n')
			bw.Write(buf)
		}
		if err := bw.Flush(); err != nil {
			return errors.Wrap(err, errors.CodeWriteFailed, "cannot write CSV partitions")
		}
		return nil
	case FormatJSON:
		if ids == nil {
			ids = []decomposition.PartitionID{}
		}
		if err := json.NewEncoder(w).Encode(ids); err != nil {
			return errors.Wrap(err, errors.CodeWriteFailed, "cannot write JSON partitions")
		}
		return nil
	default:
		return errors.New(errors.CodeUnsupportedFormat, "unknown partition format").WithDetail(string(f))
	}
}

// DecodePartitions reads a partition list written by EncodePartitions.
func DecodePartitions(r io.Reader, f Format) ([]decomposition.PartitionID, error) {
	switch f {
	case FormatFoam, "":
		return foam.ReadLabelList(r)
	case FormatCSV:
		var out []decomposition.PartitionID
		sc := bufio.NewScanner(r)
		for line := 1; sc.Scan(); line++ {
			s := strings.TrimSpace(sc.Text())
			if s == "" || strings.HasPrefix(s, "#") {
				continue
			}
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errors.New(errors.CodeMeshParse, "partition is not an integer").WithDetailf("line %d: %q", line, s)
			}
			out = append(out, decomposition.PartitionID(v))
		}
		if err := sc.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeMeshRead, "read failed")
		}
		return out, nil
	case FormatJSON:
		var out []decomposition.PartitionID
		if err := json.NewDecoder(r).Decode(&out); err != nil {
			return nil, errors.Wrap(err, errors.CodeMeshParse, "invalid JSON partitions")
		}
		return out, nil
	default:
		return nil, errors.New(errors.CodeUnsupportedFormat, "unknown partition format").WithDetail(string(f))
	}
}
