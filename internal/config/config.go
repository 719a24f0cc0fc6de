// Package config defines all configuration structures for meshdecomp.  No
// I/O or parsing logic lives here; only plain data types and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// DecompositionConfig carries the region settings, either inline or through
// an OpenFOAM dictionary, plus the classification policies.
type DecompositionConfig struct {
	// Dict points at a myManualDecomposeDict.  When set it takes precedence
	// over the inline entries.
	Dict string `mapstructure:"dict"`

	BaseRegionMin      []float64 `mapstructure:"baseRegionMin"`
	BaseRegionMax      []float64 `mapstructure:"baseRegionMax"`
	FineRegionMin      []float64 `mapstructure:"fineRegionMin"`
	FineRegionMax      []float64 `mapstructure:"fineRegionMax"`
	BaseRegionDivision []int     `mapstructure:"baseRegionDivision"`
	FineRegionDivision []int     `mapstructure:"fineRegionDivision"`

	Linearization string `mapstructure:"linearization"` // "legacy" | "row-major"
	OutOfRange    string `mapstructure:"out_of_range"`  // "raw" | "clamp" | "reject"
}

// InputConfig locates the cell centres.
type InputConfig struct {
	Case    string `mapstructure:"case"`
	Centers string `mapstructure:"centers"` // local path or s3://bucket/key
	Format  string `mapstructure:"format"`  // "" (by extension) | "foam" | "csv" | "json"
	// Cells expands a uniform OpenFOAM internalField; 0 means unknown.
	Cells int `mapstructure:"cells"`
}

// OutputConfig locates the partition list.
type OutputConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// WorkerConfig controls the parallel batch driver.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"` // <= 1 runs sequentially
	ChunkSize   int `mapstructure:"chunk_size"`
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Namespace   string `mapstructure:"namespace"`
	PushGateway string `mapstructure:"push_gateway"`
	Job         string `mapstructure:"job"`
	Textfile    string `mapstructure:"textfile"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Region     string `mapstructure:"region"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	AutoCreate bool   `mapstructure:"auto_create_bucket"`
}

// StorageConfig groups object-storage backends.
type StorageConfig struct {
	MinIO MinIOConfig `mapstructure:"minio"`
}

// ServerConfig holds the watch-mode HTTP server tunables.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Decomposition DecompositionConfig `mapstructure:"decomposition"`
	Input         InputConfig         `mapstructure:"input"`
	Output        OutputConfig        `mapstructure:"output"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Log           logging.LogConfig   `mapstructure:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Server        ServerConfig        `mapstructure:"server"`
}

// HasInlineRegions reports whether any inline region entry is set.
func (d DecompositionConfig) HasInlineRegions() bool {
	return len(d.BaseRegionMin) > 0 || len(d.BaseRegionMax) > 0 ||
		len(d.FineRegionMin) > 0 || len(d.FineRegionMax) > 0 ||
		len(d.BaseRegionDivision) > 0 || len(d.FineRegionDivision) > 0
}

// Settings converts the inline entries.  Each must be present with exactly
// three components.
func (d DecompositionConfig) Settings() (decomposition.Settings, error) {
	var s decomposition.Settings
	vecs := []struct {
		name string
		src  []float64
		dst  *[3]float64
	}{
		{"baseRegionMin", d.BaseRegionMin, &s.BaseRegionMin},
		{"baseRegionMax", d.BaseRegionMax, &s.BaseRegionMax},
		{"fineRegionMin", d.FineRegionMin, &s.FineRegionMin},
		{"fineRegionMax", d.FineRegionMax, &s.FineRegionMax},
	}
	for _, e := range vecs {
		if err := checkTriple(e.name, len(e.src)); err != nil {
			return s, err
		}
		copy(e.dst[:], e.src)
	}
	divs := []struct {
		name string
		src  []int
		dst  *[3]int
	}{
		{"baseRegionDivision", d.BaseRegionDivision, &s.BaseRegionDivision},
		{"fineRegionDivision", d.FineRegionDivision, &s.FineRegionDivision},
	}
	for _, e := range divs {
		if err := checkTriple(e.name, len(e.src)); err != nil {
			return s, err
		}
		copy(e.dst[:], e.src)
	}
	return s, nil
}

// LayoutOptions parses the policy strings.
func (d DecompositionConfig) LayoutOptions() ([]decomposition.Option, error) {
	lin, err := decomposition.ParseLinearization(d.Linearization)
	if err != nil {
		return nil, err
	}
	pol, err := decomposition.ParseOutOfRangePolicy(d.OutOfRange)
	if err != nil {
		return nil, err
	}
	return []decomposition.Option{
		decomposition.WithLinearization(lin),
		decomposition.WithOutOfRangePolicy(pol),
	}, nil
}

func checkTriple(name string, n int) error {
	switch n {
	case 3:
		return nil
	case 0:
		return errors.New(errors.CodeMissingEntry, "missing decomposition entry").WithDetail(name)
	default:
		return errors.New(errors.CodeMalformedEntry, "entry needs three components").
			WithDetailf("%s has %d", name, n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first problem found.  Region geometry is checked later, when
// the layout is built, because it may come from a dictionary file.
func (c *Config) Validate() error {
	d := c.Decomposition
	if _, err := d.LayoutOptions(); err != nil {
		return err
	}
	if d.HasInlineRegions() && d.Dict == "" {
		if _, err := d.Settings(); err != nil {
			return err
		}
	}

	for _, f := range []struct{ key, val string }{
		{"input.format", c.Input.Format},
		{"output.format", c.Output.Format},
	} {
		switch strings.ToLower(f.val) {
		case "", "foam", "csv", "json":
		default:
			return errors.NewValidationError(f.key, fmt.Sprintf("unknown format %q; expected foam|csv|json", f.val))
		}
	}

	if c.Input.Cells < 0 {
		return errors.NewValidationError("input.cells", "must be >= 0")
	}

	if c.Worker.Concurrency < 0 {
		return errors.NewValidationError("worker.concurrency", "must be >= 0")
	}
	if c.Worker.ChunkSize < 1 {
		return errors.NewValidationError("worker.chunk_size", "must be >= 1")
	}

	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return errors.NewValidationError("log.level", "expected debug|info|warn|error")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.NewValidationError("log.format", "expected json|console")
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return errors.NewValidationError("server.mode", "expected debug|release|test")
	}
	if c.Server.Addr == "" {
		return errors.NewValidationError("server.addr", "is required")
	}

	if c.Metrics.PushGateway != "" && c.Metrics.Job == "" {
		return errors.NewValidationError("metrics.job", "is required with metrics.push_gateway")
	}
	return nil
}
