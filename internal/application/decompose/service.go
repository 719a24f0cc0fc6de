// Package decompose provides the application-level service that turns a
// set of cell centres and a decomposition layout into a partition list.
package decompose

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/internal/infrastructure/foam"
	"github.com/turtacn/meshdecomp/internal/infrastructure/meshio"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/meshdecomp/internal/infrastructure/parallel"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// Case-directory layout.
const (
	CaseDictPath    = "system/myManualDecomposeDict"
	CaseCentersPath = "0/C"
	CaseOutputPath  = "constant/cellDecomposition"
)

// Service defines the decomposition use cases.
type Service interface {
	// Run reads the centres once, decomposes them and writes the partition
	// list once.
	Run(ctx context.Context, req *Request) (*Result, error)
	// Layout resolves and validates the settings of req without touching
	// the mesh.
	Layout(req *Request) (*decomposition.Layout, decomposition.Settings, error)
	// Last returns the most recent successful result, or nil.
	Last() *Result
}

// MeshStore reads centres and writes partition lists.
type MeshStore interface {
	ReadCenters(ctx context.Context, location string, format meshio.Format, cellCount int) ([]r3.Vec, error)
	WritePartitions(ctx context.Context, location string, format meshio.Format, ids []decomposition.PartitionID) error
}

// Request describes one run.  Settings are taken from the first of
// Settings, DictPath and Case that is set.  Centers and Output default to
// their usual places under Case, and Case defaults to the working
// directory.
type Request struct {
	Settings *decomposition.Settings
	DictPath string
	Case     string

	Centers       string
	CentersFormat meshio.Format
	Cells         int // expands a uniform centres field; 0 when unknown
	Output        string
	OutputFormat  meshio.Format

	Linearization decomposition.Linearization
	OutOfRange    decomposition.OutOfRangePolicy

	Workers   int
	ChunkSize int

	// Trace logs every classified cell at debug level.
	Trace bool
}

// Result is the outcome of a successful run.
type Result struct {
	RunID         string                         `json:"runId"`
	Settings      decomposition.Settings         `json:"settings"`
	Linearization decomposition.Linearization    `json:"linearization"`
	OutOfRange    decomposition.OutOfRangePolicy `json:"outOfRange"`
	Ranges        []decomposition.IDRange        `json:"ranges"`
	Centers       string                         `json:"centers"`
	Output        string                         `json:"output"`
	Summary       decomposition.Summary          `json:"summary"`
	Workers       int                            `json:"workers"`
	Duration      time.Duration                  `json:"duration"`
	FinishedAt    time.Time                      `json:"finishedAt"`

	IDs []decomposition.PartitionID `json:"-"`
}

// MetricsSink receives run metrics.  Push and Textfile are optional.
type MetricsSink struct {
	Collector   prometheus.MetricsCollector
	Metrics     *prometheus.DecompositionMetrics
	PushGateway string
	Job         string
	Textfile    string
}

// Option configures the service.
type Option func(*serviceImpl)

// WithMetrics records every run into sink.
func WithMetrics(sink *MetricsSink) Option {
	return func(s *serviceImpl) { s.metrics = sink }
}

type serviceImpl struct {
	store   MeshStore
	logger  logging.Logger
	metrics *MetricsSink

	mu   sync.RWMutex
	last *Result
}

// NewService creates a new decomposition service.
func NewService(store MeshStore, logger logging.Logger, opts ...Option) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) Last() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (r *Request) caseDir() string {
	if r.Case == "" {
		return "."
	}
	return r.Case
}

func (r *Request) centers() string {
	if r.Centers != "" {
		return r.Centers
	}
	return filepath.Join(r.caseDir(), CaseCentersPath)
}

func (r *Request) output() string {
	if r.Output != "" {
		return r.Output
	}
	return filepath.Join(r.caseDir(), CaseOutputPath)
}

func (r *Request) settings() (decomposition.Settings, error) {
	if r.Settings != nil {
		return *r.Settings, nil
	}
	if r.DictPath != "" {
		return foam.ReadSettingsFile(r.DictPath)
	}
	path := filepath.Join(r.caseDir(), CaseDictPath)
	st, err := foam.ReadSettingsFile(path)
	if err != nil && errors.IsCode(err, errors.CodeConfigFileNotFound) {
		return st, errors.Wrap(err, errors.CodeMissingEntry,
			"no decomposition settings: set a dictionary, inline regions or a case directory")
	}
	return st, err
}

func (s *serviceImpl) Layout(req *Request) (*decomposition.Layout, decomposition.Settings, error) {
	if req == nil {
		return nil, decomposition.Settings{}, errors.InvalidParam("request is nil")
	}
	st, err := req.settings()
	if err != nil {
		return nil, st, err
	}
	var opts []decomposition.Option
	if req.Linearization != "" {
		opts = append(opts, decomposition.WithLinearization(req.Linearization))
	}
	if req.OutOfRange != "" {
		opts = append(opts, decomposition.WithOutOfRangePolicy(req.OutOfRange))
	}
	layout, err := st.Layout(opts...)
	if err != nil {
		return nil, st, err
	}
	return layout, st, nil
}

func (s *serviceImpl) Run(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := s.logger.With(logging.String("run_id", runID))

	res, err := s.run(ctx, req, runID, log)
	elapsed := time.Since(start)
	if err != nil {
		if s.metrics != nil && s.metrics.Metrics != nil {
			prometheus.RecordFailure(s.metrics.Metrics, elapsed)
			s.exportMetrics(ctx, log)
		}
		log.Error("decomposition failed", logging.Err(err), logging.Duration("took", elapsed))
		return nil, err
	}

	res.Duration = elapsed
	res.FinishedAt = time.Now()
	if s.metrics != nil && s.metrics.Metrics != nil {
		prometheus.RecordRun(s.metrics.Metrics, res.Summary, elapsed)
		s.exportMetrics(ctx, log)
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	log.Info("decomposition complete",
		logging.Int("cells", res.Summary.Cells),
		logging.Int("fine_cells", res.Summary.FineCells),
		logging.Int("base_cells", res.Summary.BaseCells),
		logging.Int("outside_base", res.Summary.OutsideBase),
		logging.Int("partitions", res.Summary.Partitions),
		logging.Int("empty_partitions", res.Summary.EmptyPartitions),
		logging.Float64("imbalance", res.Summary.Imbalance),
		logging.String("output", res.Output),
		logging.Duration("took", elapsed))
	return res, nil
}

func (s *serviceImpl) run(ctx context.Context, req *Request, runID string, log logging.Logger) (*Result, error) {
	if s.store == nil {
		return nil, errors.Internal("mesh store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCancelled, "decomposition cancelled")
	}

	layout, st, err := s.Layout(req)
	if err != nil {
		return nil, err
	}
	log.Debug("layout resolved",
		logging.String("linearization", string(layout.Linearization())),
		logging.String("out_of_range", string(layout.OutOfRangePolicy())),
		logging.Int("fine_bins", layout.FineBins()),
		logging.Int("base_bins", layout.BaseBins()),
		logging.Int("partitions", layout.Partitions()))

	centersAt := req.centers()
	centers, err := s.store.ReadCenters(ctx, centersAt, req.CentersFormat, req.Cells)
	if err != nil {
		return nil, err
	}

	var visit decomposition.Visitor
	if req.Trace {
		visit = func(i int, c r3.Vec, a decomposition.Assignment) {
			log.Debug("cell",
				logging.Int("num", i),
				logging.Float64("x", c.X),
				logging.Float64("y", c.Y),
				logging.Float64("z", c.Z),
				logging.String("zone", a.Zone.String()),
				logging.Int("id", int(a.ID)))
		}
	}

	ids, tally, workers, err := s.decompose(ctx, layout, centers, req, visit)
	if err != nil {
		return nil, err
	}
	summary := layout.Summarize(ids, tally)
	if summary.OutsideBase > 0 {
		log.Warn("cells outside the base region",
			logging.Int("outside", summary.OutsideBase),
			logging.Int("stray", summary.Stray),
			logging.String("out_of_range", string(layout.OutOfRangePolicy())))
	}

	outputAt := req.output()
	if err := s.store.WritePartitions(ctx, outputAt, req.OutputFormat, ids); err != nil {
		return nil, err
	}

	return &Result{
		RunID:         runID,
		Settings:      st,
		Linearization: layout.Linearization(),
		OutOfRange:    layout.OutOfRangePolicy(),
		Ranges:        layout.Ranges(),
		Centers:       centersAt,
		Output:        outputAt,
		Summary:       summary,
		Workers:       workers,
		IDs:           ids,
	}, nil
}

// decompose runs sequentially for a single worker, otherwise over parallel
// chunks whose tallies are merged.
func (s *serviceImpl) decompose(ctx context.Context, layout *decomposition.Layout, centers []r3.Vec, req *Request, visit decomposition.Visitor) ([]decomposition.PartitionID, decomposition.Tally, int, error) {
	ids := make([]decomposition.PartitionID, len(centers))
	if req.Workers <= 1 {
		tally, err := layout.DecomposeInto(ids, centers, 0, visit)
		if err != nil {
			return nil, tally, 1, err
		}
		return ids, tally, 1, nil
	}

	var (
		mu    sync.Mutex
		tally decomposition.Tally
	)
	opts := []parallel.Option{parallel.WithWorkers(req.Workers)}
	if req.ChunkSize > 0 {
		opts = append(opts, parallel.WithChunkSize(req.ChunkSize))
	}
	stats, err := parallel.ForEachChunk(ctx, len(centers), func(_ context.Context, start, end int) error {
		t, err := layout.DecomposeInto(ids[start:end], centers[start:end], start, visit)
		if err != nil {
			return err
		}
		mu.Lock()
		tally = tally.Merge(t)
		mu.Unlock()
		return nil
	}, opts...)
	if err != nil {
		return nil, tally, stats.Workers, err
	}
	return ids, tally, stats.Workers, nil
}

func (s *serviceImpl) exportMetrics(ctx context.Context, log logging.Logger) {
	m := s.metrics
	if m.Collector == nil {
		return
	}
	if m.Textfile != "" {
		if err := m.Collector.WriteTextfile(m.Textfile); err != nil {
			log.Warn("metrics textfile not written", logging.Err(err))
		}
	}
	if m.PushGateway != "" {
		if err := m.Collector.Push(ctx, m.PushGateway, m.Job); err != nil {
			log.Warn("metrics push failed", logging.Err(err))
		}
	}
}
