package decomposition

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// Visitor observes each classified cell.  index is the global cell index.
type Visitor func(index int, center r3.Vec, a Assignment)

// Tally counts cells per zone during a decomposition pass.  Fine and Base
// partition the cells; Outside is the subset of Base that fell outside the
// base grid.  Tallies of disjoint chunks are combined with Merge.
type Tally struct {
	Fine    int `json:"fine"`
	Base    int `json:"base"`
	Outside int `json:"outside"`
}

// Cells is the total number of cells tallied.
func (t Tally) Cells() int { return t.Fine + t.Base }

// Merge returns the element-wise sum of t and o.
func (t Tally) Merge(o Tally) Tally {
	return Tally{Fine: t.Fine + o.Fine, Base: t.Base + o.Base, Outside: t.Outside + o.Outside}
}

func (t *Tally) add(a Assignment) {
	if a.Zone == ZoneFine {
		t.Fine++
	} else {
		t.Base++
	}
	if a.Outside {
		t.Outside++
	}
}

// Decompose classifies every centre in order and returns one ID per cell,
// index-aligned with centers.  It is deterministic and has no side effects.
func (l *Layout) Decompose(centers []r3.Vec) ([]PartitionID, error) {
	out := make([]PartitionID, len(centers))
	if _, err := l.DecomposeInto(out, centers, 0, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// DecomposeInto classifies centers into out, which must have the same
// length.  offset is the global index of centers[0]; it is used for error
// details and the visitor, which may be nil.  Disjoint (out, centers) chunk
// pairs may be processed concurrently.
func (l *Layout) DecomposeInto(out []PartitionID, centers []r3.Vec, offset int, visit Visitor) (Tally, error) {
	var tally Tally
	if len(out) != len(centers) {
		return tally, errors.Newf(errors.CodeInternal, "output length %d does not match %d centres", len(out), len(centers))
	}
	for i, c := range centers {
		a, err := l.Classify(c)
		if err != nil {
			return tally, errors.Wrapf(err, errors.CodeUnknown, "cell %d", offset+i)
		}
		out[i] = a.ID
		tally.add(a)
		if visit != nil {
			visit(offset+i, c, a)
		}
	}
	return tally, nil
}
