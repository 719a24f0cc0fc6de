package config

import (
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLinearization = "legacy"
	DefaultOutOfRange    = "raw"

	DefaultWorkerConcurrency = 1
	DefaultChunkSize         = 65536

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "meshdecomp"
	DefaultMetricsJob       = "meshdecomp"

	DefaultServerAddr            = ":9102"
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 10 * time.Second
	DefaultServerWriteTimeout    = 10 * time.Second
	DefaultServerShutdownTimeout = 5 * time.Second

	DefaultMinIOEndpoint = "localhost:9000"
)

// setDefaults registers every scalar default with v so that MESHDECOMP_*
// variables override keys absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("decomposition.dict", "")
	v.SetDefault("decomposition.linearization", DefaultLinearization)
	v.SetDefault("decomposition.out_of_range", DefaultOutOfRange)
	v.SetDefault("input.case", "")
	v.SetDefault("input.centers", "")
	v.SetDefault("input.format", "")
	v.SetDefault("input.cells", 0)
	v.SetDefault("output.path", "")
	v.SetDefault("output.format", "")
	v.SetDefault("worker.concurrency", DefaultWorkerConcurrency)
	v.SetDefault("worker.chunk_size", DefaultChunkSize)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.push_gateway", "")
	v.SetDefault("metrics.job", DefaultMetricsJob)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("storage.minio.endpoint", DefaultMinIOEndpoint)
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.region", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.auto_create_bucket", true)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
}

// ApplyDefaults fills every zero-value field in cfg with its default.
// Fields already set are left unchanged so that explicit configuration
// always wins.  Boolean fields are not touched.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Decomposition.Linearization == "" {
		cfg.Decomposition.Linearization = DefaultLinearization
	}
	if cfg.Decomposition.OutOfRange == "" {
		cfg.Decomposition.OutOfRange = DefaultOutOfRange
	}

	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.ChunkSize == 0 {
		cfg.Worker.ChunkSize = DefaultChunkSize
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultMetricsJob
	}

	if cfg.Storage.MinIO.Endpoint == "" {
		cfg.Storage.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Storage.MinIO.AutoCreate = true
	ApplyDefaults(cfg)
	return cfg
}
