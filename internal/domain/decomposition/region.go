// Package decomposition implements the nested-grid classifier that maps mesh
// cell centres to partition IDs.  A Layout holds a coarse base region and a
// fine region, each split into a uniform grid of bins.  Cells inside the fine
// box (bounds inclusive) take a fine bin ID; every other cell falls back to
// the base grid, whose IDs are offset by the number of fine bins.
//
// The package is pure: no I/O, no logging, no shared mutable state.  A
// Layout is immutable after NewLayout and safe for concurrent use.
package decomposition

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// Axis names used in error details.
var axisNames = [3]string{"x", "y", "z"}

// Divisions is the number of equal-width bins along each axis.
type Divisions struct {
	X int `json:"x" mapstructure:"x"`
	Y int `json:"y" mapstructure:"y"`
	Z int `json:"z" mapstructure:"z"`
}

// Count is the total number of bins, X*Y*Z.
func (d Divisions) Count() int {
	return d.X * d.Y * d.Z
}

func (d Divisions) axis(i int) int {
	switch i {
	case 0:
		return d.X
	case 1:
		return d.Y
	default:
		return d.Z
	}
}

func (d Divisions) String() string {
	return fmt.Sprintf("(%d %d %d)", d.X, d.Y, d.Z)
}

// Region is an axis-aligned box split into a uniform grid of bins.
type Region struct {
	Min       r3.Vec    `json:"min"`
	Max       r3.Vec    `json:"max"`
	Divisions Divisions `json:"divisions"`
}

// NewRegion is a convenience constructor taking plain triples.
func NewRegion(min, max [3]float64, div [3]int) Region {
	return Region{
		Min:       r3.Vec{X: min[0], Y: min[1], Z: min[2]},
		Max:       r3.Vec{X: max[0], Y: max[1], Z: max[2]},
		Divisions: Divisions{X: div[0], Y: div[1], Z: div[2]},
	}
}

// Validate reports the first configuration or numeric-degeneracy problem
// with the region.  name ("base", "fine") is used in the error detail.
func (r Region) Validate(name string) error {
	mins, maxs := components(r.Min), components(r.Max)
	for i := 0; i < 3; i++ {
		if !isFinite(mins[i]) || !isFinite(maxs[i]) {
			return errors.New(errors.CodeMalformedEntry, "region bounds must be finite").
				WithDetailf("%sRegion %s: min=%g max=%g", name, axisNames[i], mins[i], maxs[i])
		}
		if maxs[i] <= mins[i] {
			return errors.New(errors.CodeDegenerateRegion, "region has zero or negative width").
				WithDetailf("%sRegion %s: min=%g max=%g", name, axisNames[i], mins[i], maxs[i])
		}
		if n := r.Divisions.axis(i); n < 1 {
			return errors.New(errors.CodeInvalidDivisions, "divisions must be positive").
				WithDetailf("%sRegionDivision.%s=%d", name, axisNames[i], n)
		}
	}
	return nil
}

// Contains reports whether c lies inside the box, bounds inclusive.
func (r Region) Contains(c r3.Vec) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X &&
		c.Y >= r.Min.Y && c.Y <= r.Max.Y &&
		c.Z >= r.Min.Z && c.Z <= r.Max.Z
}

// Normalize maps c into the region's unit cube: (c-min)/(max-min) per axis.
// Points outside the box map outside [0,1].
func (r Region) Normalize(c r3.Vec) r3.Vec {
	d := r3.Sub(c, r.Min)
	ext := r3.Sub(r.Max, r.Min)
	return r3.Vec{X: d.X / ext.X, Y: d.Y / ext.Y, Z: d.Z / ext.Z}
}

// Width is the size of one bin along each axis.
func (r Region) Width() r3.Vec {
	ext := r3.Sub(r.Max, r.Min)
	return r3.Vec{
		X: ext.X / float64(r.Divisions.X),
		Y: ext.Y / float64(r.Divisions.Y),
		Z: ext.Z / float64(r.Divisions.Z),
	}
}

// BinIndex is a per-axis bin coordinate.  Under the raw out-of-range policy
// components may be negative or reach past the division count.
type BinIndex struct {
	I, J, K int
}

func (b BinIndex) String() string {
	return fmt.Sprintf("(%d %d %d)", b.I, b.J, b.K)
}

// rawBin computes the truncated bin index of c in r with the single
// ceiling clamp (index == n becomes n-1).  No other clamping is applied.
func (r Region) rawBin(c r3.Vec) (BinIndex, error) {
	t := components(r.Normalize(c))
	var idx [3]int
	for i := 0; i < 3; i++ {
		n := r.Divisions.axis(i)
		v := math.Trunc(t[i] * float64(n))
		if !isFinite(v) || math.Abs(v) > maxExactIndex {
			return BinIndex{}, errors.New(errors.CodeIndexOverflow, "bin index is not representable").
				WithDetailf("axis %s: t=%g divisions=%d", axisNames[i], t[i], n)
		}
		k := int(v)
		if k == n {
			k = n - 1
		}
		idx[i] = k
	}
	return BinIndex{I: idx[0], J: idx[1], K: idx[2]}, nil
}

// inRange reports whether every component of b is a valid bin of r.
func (r Region) inRange(b BinIndex) bool {
	return b.I >= 0 && b.I < r.Divisions.X &&
		b.J >= 0 && b.J < r.Divisions.Y &&
		b.K >= 0 && b.K < r.Divisions.Z
}

// clampBin forces every component of b into [0, n-1].
func (r Region) clampBin(b BinIndex) BinIndex {
	return BinIndex{
		I: clampInt(b.I, 0, r.Divisions.X-1),
		J: clampInt(b.J, 0, r.Divisions.Y-1),
		K: clampInt(b.K, 0, r.Divisions.Z-1),
	}
}

// maxExactIndex bounds bin indices to values float64 represents exactly.
const maxExactIndex = 1 << 53

func components(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
