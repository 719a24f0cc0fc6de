package decomposition

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// PartitionID is the processor label assigned to a cell.
type PartitionID int

// Zone tells which grid a cell was binned in.
type Zone int

const (
	ZoneFine Zone = iota
	ZoneBase
)

func (z Zone) String() string {
	switch z {
	case ZoneFine:
		return "fine"
	case ZoneBase:
		return "base"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// Linearization selects how a bin triple is flattened into one integer.
type Linearization string

const (
	// LinearizationLegacy reproduces the historical strides exactly:
	// fine ix + iy*Nfx + iz*Nfx*Nfz, base ix + iy*Nbx + iz*Nbx*Nbx.
	LinearizationLegacy Linearization = "legacy"

	// LinearizationRowMajor uses the canonical iz*Nx*Ny z-stride for both
	// grids, so every bin gets a distinct ID.
	LinearizationRowMajor Linearization = "row-major"
)

// ParseLinearization accepts "legacy" and "row-major" (also "rowmajor",
// "row_major"), case-insensitively.  Empty means legacy.
func ParseLinearization(s string) (Linearization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(LinearizationLegacy):
		return LinearizationLegacy, nil
	case string(LinearizationRowMajor), "rowmajor", "row_major":
		return LinearizationRowMajor, nil
	default:
		return "", errors.New(errors.CodeUnknownPolicy, "unknown linearization").
			WithDetailf("%q (expected legacy|row-major)", s)
	}
}

// OutOfRangePolicy governs base-zone cells whose bin index falls outside the
// base grid, which happens when the centre lies outside the base box.
type OutOfRangePolicy string

const (
	// OutOfRangeRaw keeps the raw index arithmetic; only the ceiling clamp
	// applies, so IDs may fall outside the base ID range.
	OutOfRangeRaw OutOfRangePolicy = "raw"

	// OutOfRangeClamp clamps each axis index into [0, n-1].
	OutOfRangeClamp OutOfRangePolicy = "clamp"

	// OutOfRangeReject fails the decomposition on the first such cell.
	OutOfRangeReject OutOfRangePolicy = "reject"
)

// ParseOutOfRangePolicy accepts raw, clamp and reject.  Empty means raw.
func ParseOutOfRangePolicy(s string) (OutOfRangePolicy, error) {
	switch p := OutOfRangePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OutOfRangeRaw, nil
	case OutOfRangeRaw, OutOfRangeClamp, OutOfRangeReject:
		return p, nil
	default:
		return "", errors.New(errors.CodeUnknownPolicy, "unknown out-of-range policy").
			WithDetailf("%q (expected raw|clamp|reject)", s)
	}
}

// Option customises a Layout.
type Option func(*Layout)

// WithLinearization selects the flattening formula.
func WithLinearization(m Linearization) Option {
	return func(l *Layout) { l.linearization = m }
}

// WithOutOfRangePolicy selects the out-of-range handling.
func WithOutOfRangePolicy(p OutOfRangePolicy) Option {
	return func(l *Layout) { l.policy = p }
}

// Layout is a validated pair of base and fine regions plus the policies
// used to turn a cell centre into a PartitionID.
type Layout struct {
	base, fine    Region
	linearization Linearization
	policy        OutOfRangePolicy

	fineBins   int
	fineStride [2]int
	baseStride [2]int
}

// NewLayout validates both regions and the selected policies.  All
// configuration and degeneracy problems are reported here, before any cell
// is classified.  Whether fine lies inside base is not checked.
//
// Legacy strides reach fine IDs at or past FineBins whenever Nfz > Nfy,
// which would collide with base IDs; such layouts fail with
// CodeLayoutInvalid and need row-major linearization.
func NewLayout(base, fine Region, opts ...Option) (*Layout, error) {
	l := &Layout{
		base:          base,
		fine:          fine,
		linearization: LinearizationLegacy,
		policy:        OutOfRangeRaw,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := fine.Validate("fine"); err != nil {
		return nil, err
	}
	if err := base.Validate("base"); err != nil {
		return nil, err
	}
	if _, err := ParseLinearization(string(l.linearization)); err != nil {
		return nil, err
	}
	if _, err := ParseOutOfRangePolicy(string(l.policy)); err != nil {
		return nil, err
	}

	nf, nb := fine.Divisions, base.Divisions
	l.fineBins = nf.Count()
	switch l.linearization {
	case LinearizationRowMajor:
		l.fineStride = [2]int{nf.X, nf.X * nf.Y}
		l.baseStride = [2]int{nb.X, nb.X * nb.Y}
	default:
		l.fineStride = [2]int{nf.X, nf.X * nf.Z}
		l.baseStride = [2]int{nb.X, nb.X * nb.X}
	}

	if top := l.maxFineID(); int(top) >= l.fineBins {
		return nil, errors.New(errors.CodeLayoutInvalid, "fine IDs would overlap base IDs").
			WithDetailf("legacy strides reach fine ID %d with only %d fine bins (divisions %s); use row-major linearization",
				top, l.fineBins, nf)
	}
	return l, nil
}

// Base returns the base region.
func (l *Layout) Base() Region { return l.base }

// Fine returns the fine region.
func (l *Layout) Fine() Region { return l.fine }

// Linearization returns the flattening formula in use.
func (l *Layout) Linearization() Linearization { return l.linearization }

// OutOfRangePolicy returns the out-of-range handling in use.
func (l *Layout) OutOfRangePolicy() OutOfRangePolicy { return l.policy }

// FineBins is Nfx*Nfy*Nfz, the offset applied to every base ID.
func (l *Layout) FineBins() int { return l.fineBins }

// BaseBins is Nbx*Nby*Nbz.
func (l *Layout) BaseBins() int { return l.base.Divisions.Count() }

// Partitions is the number of processor IDs an in-range decomposition can
// produce: one more than the largest reachable ID.  It equals
// FineBins+BaseBins under row-major linearization and may differ under
// legacy strides.
func (l *Layout) Partitions() int {
	return int(l.maxBaseID()) + 1
}

// IDRange is the closed interval of IDs one zone can produce for in-range
// bins.
type IDRange struct {
	Zone  Zone        `json:"zone"`
	First PartitionID `json:"first"`
	Last  PartitionID `json:"last"`
	Bins  int         `json:"bins"`
}

// Ranges reports the ID interval of the fine and base zones, in that order.
func (l *Layout) Ranges() []IDRange {
	return []IDRange{
		{Zone: ZoneFine, First: 0, Last: l.maxFineID(), Bins: l.fineBins},
		{Zone: ZoneBase, First: PartitionID(l.fineBins), Last: l.maxBaseID(), Bins: l.BaseBins()},
	}
}

func (l *Layout) maxFineID() PartitionID {
	d := l.fine.Divisions
	return PartitionID((d.X - 1) + (d.Y-1)*l.fineStride[0] + (d.Z-1)*l.fineStride[1])
}

func (l *Layout) maxBaseID() PartitionID {
	d := l.base.Divisions
	return PartitionID((d.X-1)+(d.Y-1)*l.baseStride[0]+(d.Z-1)*l.baseStride[1]) + PartitionID(l.fineBins)
}

// linearize flattens b using the zone's strides and offset.
func (l *Layout) linearize(z Zone, b BinIndex) (PartitionID, error) {
	stride, offset := l.fineStride, 0
	if z == ZoneBase {
		stride, offset = l.baseStride, l.fineBins
	}
	v := float64(b.I) + float64(b.J)*float64(stride[0]) + float64(b.K)*float64(stride[1]) + float64(offset)
	if math.Abs(v) > maxExactIndex {
		return 0, errors.New(errors.CodeIndexOverflow, "partition ID is not representable").
			WithDetailf("%s bin %s", z, b)
	}
	return PartitionID(b.I + b.J*stride[0] + b.K*stride[1] + offset), nil
}

// Assignment is the full result of classifying one centre.
type Assignment struct {
	Zone Zone
	Bin  BinIndex
	ID   PartitionID

	// Outside is set for base-zone cells whose raw bin fell outside the base
	// grid.  Under the clamp policy Bin holds the clamped value.
	Outside bool
}

// Classify maps a single cell centre to its Assignment.
func (l *Layout) Classify(c r3.Vec) (Assignment, error) {
	if !isFinite(c.X) || !isFinite(c.Y) || !isFinite(c.Z) {
		return Assignment{}, errors.New(errors.CodeInvalidCenter, "cell centre is not finite").
			WithDetailf("(%g %g %g)", c.X, c.Y, c.Z)
	}

	zone, region := ZoneBase, l.base
	if l.fine.Contains(c) {
		zone, region = ZoneFine, l.fine
	}

	bin, err := region.rawBin(c)
	if err != nil {
		return Assignment{}, err
	}

	a := Assignment{Zone: zone, Bin: bin}
	if zone == ZoneBase && !region.inRange(bin) {
		a.Outside = true
		switch l.policy {
		case OutOfRangeClamp:
			a.Bin = region.clampBin(bin)
		case OutOfRangeReject:
			return Assignment{}, errors.New(errors.CodeCellOutOfRange, "cell lies outside the base region").
				WithDetailf("centre (%g %g %g) bin %s divisions %s", c.X, c.Y, c.Z, bin, region.Divisions)
		}
	}

	a.ID, err = l.linearize(zone, a.Bin)
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// ID classifies c and returns only its partition ID.
func (l *Layout) ID(c r3.Vec) (PartitionID, error) {
	a, err := l.Classify(c)
	return a.ID, err
}
