package decomposition

// Settings is the raw set of six entries that describe a decomposition:
// the corners and divisions of both regions.  It is what a dictionary or a
// config file provides before validation.
type Settings struct {
	BaseRegionMin      [3]float64 `json:"baseRegionMin"`
	BaseRegionMax      [3]float64 `json:"baseRegionMax"`
	FineRegionMin      [3]float64 `json:"fineRegionMin"`
	FineRegionMax      [3]float64 `json:"fineRegionMax"`
	BaseRegionDivision [3]int     `json:"baseRegionDivision"`
	FineRegionDivision [3]int     `json:"fineRegionDivision"`
}

// Regions converts s into base and fine Regions.  No validation is done;
// NewLayout validates.
func (s Settings) Regions() (base, fine Region) {
	base = NewRegion(s.BaseRegionMin, s.BaseRegionMax, s.BaseRegionDivision)
	fine = NewRegion(s.FineRegionMin, s.FineRegionMax, s.FineRegionDivision)
	return base, fine
}

// Layout builds a validated Layout from s.
func (s Settings) Layout(opts ...Option) (*Layout, error) {
	base, fine := s.Regions()
	return NewLayout(base, fine, opts...)
}
