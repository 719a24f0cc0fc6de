package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

const validConfigYAML = `
decomposition:
  baseRegionMin: [0, 0, 0]
  baseRegionMax: [10, 10, 10]
  fineRegionMin: [4, 4, 4]
  fineRegionMax: [6, 6, 6]
  baseRegionDivision: [2, 2, 2]
  fineRegionDivision: [2, 2, 2]
  linearization: legacy
  out_of_range: clamp
input:
  centers: "case/0/C"
output:
  path: "case/constant/cellDecomposition"
worker:
  concurrency: 4
log:
  level: debug
  format: console
server:
  addr: ":9200"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "meshdecomp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 10, 10}, cfg.Decomposition.BaseRegionMax)
	assert.Equal(t, []int{2, 2, 2}, cfg.Decomposition.FineRegionDivision)
	assert.Equal(t, "clamp", cfg.Decomposition.OutOfRange)
	assert.Equal(t, "case/0/C", cfg.Input.Centers)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, ":9200", cfg.Server.Addr)
	assert.Equal(t, "console", cfg.Log.Format)

	s, err := cfg.Decomposition.Settings()
	require.NoError(t, err)
	assert.Equal(t, [3]float64{4, 4, 4}, s.FineRegionMin)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(WithConfigPath("non_existent_config.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
	assert.Equal(t, errors.CodeConfigFileNotFound, errors.GetCode(err))
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "invalid_yaml: [")
	_, err := Load(WithConfigPath(path))
	assert.ErrorIs(t, err, ErrConfigParseError)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	cases := map[string]string{
		"unknown policy": "decomposition:\n  out_of_range: wrap\n",
		"bad log level":  "log:\n  level: loud\n",
		"bad format":     "output:\n  format: xml\n",
		"negative cells": "input:\n  cells: -1\n",
		"partial inline": "decomposition:\n  baseRegionMin: [0, 0, 0]\n",
		"short vector":   "decomposition:\n  baseRegionMin: [0, 0]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := createTempConfigFile(t, body)
			_, err := Load(WithConfigPath(path))
			assert.ErrorIs(t, err, ErrConfigValidation)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("MESHDECOMP_WORKER_CONCURRENCY", "8")
	t.Setenv("MESHDECOMP_DECOMPOSITION_LINEARIZATION", "row-major")

	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, "row-major", cfg.Decomposition.Linearization)
}

func TestLoad_EnvOverride_KeyAbsentFromFile(t *testing.T) {
	t.Setenv("MESHDECOMP_METRICS_TEXTFILE", "/var/lib/node_exporter/meshdecomp.prom")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/node_exporter/meshdecomp.prom", cfg.Metrics.Textfile)
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLinearization, cfg.Decomposition.Linearization)
	assert.Equal(t, DefaultOutOfRange, cfg.Decomposition.OutOfRange)
	assert.Equal(t, DefaultChunkSize, cfg.Worker.ChunkSize)
	assert.Equal(t, DefaultServerShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Storage.MinIO.AutoCreate)
	assert.False(t, cfg.Decomposition.HasInlineRegions())
}

func TestLoad_WithSearchPaths(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	cfg, err := Load(WithSearchPaths(filepath.Join(t.TempDir(), "missing"), filepath.Dir(path)))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
}

func TestLoad_WithSearchPaths_NothingFound(t *testing.T) {
	cfg, err := Load(WithSearchPaths(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.Worker.Concurrency)
}

func TestLoad_WithOverrides(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(WithConfigPath(path), WithOverrides(map[string]interface{}{
		"worker.concurrency":         2,
		"decomposition.out_of_range": "reject",
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, "reject", cfg.Decomposition.OutOfRange)
}

func TestLoadFromFile_Convenience(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestMustLoad(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	assert.NotPanics(t, func() { MustLoad(WithConfigPath(path)) })
	assert.Panics(t, func() { MustLoad(WithConfigPath("non_existent.yaml")) })
}

func TestLoad_SetsGlobalConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)
	assert.Same(t, cfg, Get())
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	changed := make(chan *Config, 4)
	w, err := Watch(path, func(c *Config, _ fsnotify.Event) { changed <- c }, nil)
	require.NoError(t, err)
	assert.Equal(t, path, w.File())

	updated := validConfigYAML + "\nmetrics:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case c := <-changed:
		assert.True(t, c.Metrics.Enabled)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatch_RequiresPath(t *testing.T) {
	_, err := Watch("", func(*Config, fsnotify.Event) {}, nil)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestDecompositionConfig_Settings(t *testing.T) {
	d := DecompositionConfig{
		BaseRegionMin:      []float64{0, 0, 0},
		BaseRegionMax:      []float64{1, 1, 1},
		FineRegionMin:      []float64{0.2, 0.2, 0.2},
		FineRegionMax:      []float64{0.4, 0.4, 0.4},
		BaseRegionDivision: []int{2, 2, 2},
	}
	_, err := d.Settings()
	assert.True(t, errors.IsCode(err, errors.CodeMissingEntry))
	assert.Contains(t, err.Error(), "fineRegionDivision")

	d.FineRegionDivision = []int{1, 2, 3, 4}
	_, err = d.Settings()
	assert.True(t, errors.IsCode(err, errors.CodeMalformedEntry))

	d.FineRegionDivision = []int{1, 2, 1}
	s, err := d.Settings()
	require.NoError(t, err)
	want := decomposition.Settings{
		BaseRegionMin:      [3]float64{0, 0, 0},
		BaseRegionMax:      [3]float64{1, 1, 1},
		FineRegionMin:      [3]float64{0.2, 0.2, 0.2},
		FineRegionMax:      [3]float64{0.4, 0.4, 0.4},
		BaseRegionDivision: [3]int{2, 2, 2},
		FineRegionDivision: [3]int{1, 2, 1},
	}
	assert.Equal(t, want, s)
}

func TestDecompositionConfig_LayoutOptions(t *testing.T) {
	opts, err := DecompositionConfig{Linearization: "row-major", OutOfRange: "reject"}.LayoutOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = DecompositionConfig{Linearization: "hilbert"}.LayoutOptions()
	assert.True(t, errors.IsCode(err, errors.CodeUnknownPolicy))
}
