package decomposition

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes how cells were spread over partitions.
type Summary struct {
	Cells       int `json:"cells"`
	FineCells   int `json:"fineCells"`
	BaseCells   int `json:"baseCells"`
	OutsideBase int `json:"outsideBase"`
	Partitions  int `json:"partitions"`

	// Counts[id] is the number of cells assigned to id, for 0 <= id < Partitions.
	Counts []int `json:"counts"`

	// Stray counts cells whose ID fell outside [0, Partitions), which only
	// the raw out-of-range policy produces.
	Stray int `json:"stray"`

	EmptyPartitions int     `json:"emptyPartitions"`
	Mean            float64 `json:"mean"`
	StdDev          float64 `json:"stdDev"`
	Min             int     `json:"min"`
	Max             int     `json:"max"`

	// Imbalance is Max/Mean; 1 means perfectly even.  Zero when no cell was
	// assigned inside the partition range.
	Imbalance float64 `json:"imbalance"`
}

// Summarize builds a Summary from a decomposition result and the tally
// gathered while producing it.
func (l *Layout) Summarize(ids []PartitionID, t Tally) Summary {
	s := Summary{
		Cells:       len(ids),
		FineCells:   t.Fine,
		BaseCells:   t.Base,
		OutsideBase: t.Outside,
		Partitions:  l.Partitions(),
	}
	s.Counts = make([]int, s.Partitions)
	for _, id := range ids {
		if id < 0 || int(id) >= s.Partitions {
			s.Stray++
			continue
		}
		s.Counts[id]++
	}
	if s.Partitions == 0 || s.Cells == s.Stray {
		return s
	}

	xs := make([]float64, len(s.Counts))
	for i, n := range s.Counts {
		xs[i] = float64(n)
		if n == 0 {
			s.EmptyPartitions++
		}
	}
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		s.StdDev = 0
	}
	s.Min = int(floats.Min(xs))
	s.Max = int(floats.Max(xs))
	if s.Mean > 0 {
		s.Imbalance = float64(s.Max) / s.Mean
	}
	return s
}
