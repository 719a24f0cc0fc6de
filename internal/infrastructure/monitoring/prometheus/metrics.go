package prometheus

import (
	"time"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
)

// DecompositionMetrics holds the metrics recorded for each decomposition run.
type DecompositionMetrics struct {
	CellsTotal      CounterVec
	Partitions      GaugeVec
	RunDuration     HistogramVec
	RunsTotal       CounterVec
	PartitionCells  HistogramVec
	ImbalanceRatio  GaugeVec
	EmptyPartitions GaugeVec
	LastSuccess     GaugeVec
}

// Default Buckets
var (
	DefaultRunDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	DefaultCellCountBuckets   = []float64{0, 10, 100, 1000, 10000, 100000, 1000000, 10000000}
)

// Run status labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Region labels of cells_total.
const (
	RegionFine    = "fine"
	RegionBase    = "base"
	RegionOutside = "outside"
)

// NewDecompositionMetrics registers all decomposition metrics.
func NewDecompositionMetrics(collector MetricsCollector) *DecompositionMetrics {
	return &DecompositionMetrics{
		CellsTotal:      collector.RegisterCounter("cells_total", "Cells classified, by region", "region"),
		Partitions:      collector.RegisterGauge("partitions", "Partitions in the last layout"),
		RunDuration:     collector.RegisterHistogram("run_duration_seconds", "Decomposition run duration", DefaultRunDurationBuckets),
		RunsTotal:       collector.RegisterCounter("runs_total", "Decomposition runs, by status", "status"),
		PartitionCells:  collector.RegisterHistogram("partition_cells", "Cells per partition in the last run", DefaultCellCountBuckets),
		ImbalanceRatio:  collector.RegisterGauge("imbalance_ratio", "Largest partition over mean partition size"),
		EmptyPartitions: collector.RegisterGauge("empty_partitions", "Partitions with no cells in the last run"),
		LastSuccess:     collector.RegisterGauge("last_success_timestamp_seconds", "Unix time of the last successful run"),
	}
}

// RecordRun records a successful run.
func RecordRun(m *DecompositionMetrics, s decomposition.Summary, duration time.Duration) {
	m.CellsTotal.WithLabelValues(RegionFine).Add(float64(s.FineCells))
	m.CellsTotal.WithLabelValues(RegionBase).Add(float64(s.BaseCells))
	if s.OutsideBase > 0 {
		m.CellsTotal.WithLabelValues(RegionOutside).Add(float64(s.OutsideBase))
	}
	m.Partitions.WithLabelValues().Set(float64(s.Partitions))
	m.ImbalanceRatio.WithLabelValues().Set(s.Imbalance)
	m.EmptyPartitions.WithLabelValues().Set(float64(s.EmptyPartitions))
	h := m.PartitionCells.WithLabelValues()
	for _, n := range s.Counts {
		h.Observe(float64(n))
	}
	m.RunDuration.WithLabelValues().Observe(duration.Seconds())
	m.RunsTotal.WithLabelValues(StatusSuccess).Inc()
	m.LastSuccess.WithLabelValues().Set(float64(time.Now().Unix()))
}

// RecordFailure records a run that ended in error.
func RecordFailure(m *DecompositionMetrics, duration time.Duration) {
	m.RunDuration.WithLabelValues().Observe(duration.Seconds())
	m.RunsTotal.WithLabelValues(StatusFailure).Inc()
}
