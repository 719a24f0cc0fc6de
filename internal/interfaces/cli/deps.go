package cli

import (
	"github.com/turtacn/meshdecomp/internal/application/decompose"
	"github.com/turtacn/meshdecomp/internal/config"
	"github.com/turtacn/meshdecomp/internal/infrastructure/meshio"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/meshdecomp/internal/infrastructure/storage/minio"
)

// serviceDeps is the wiring behind one command invocation.
type serviceDeps struct {
	Service   decompose.Service
	Collector prometheus.MetricsCollector
}

// newObjectStore connects to the configured MinIO endpoint.  A failure is
// logged and s3:// locations are then rejected by the mesh store.
func newObjectStore(cfg config.MinIOConfig, logger logging.Logger) meshio.ObjectStore {
	client, err := minio.NewClient(minio.Config{
		Endpoint:   cfg.Endpoint,
		AccessKey:  cfg.AccessKey,
		SecretKey:  cfg.SecretKey,
		Region:     cfg.Region,
		UseSSL:     cfg.UseSSL,
		AutoCreate: cfg.AutoCreate,
	}, logger)
	if err != nil {
		logger.Warn("object storage unavailable", logging.Err(err))
		return nil
	}
	return minio.NewRepository(client, logger)
}

// buildService wires the decomposition service.  Metrics are collected
// when enabled in config, when an export target is set, or when
// forceMetrics is true.
func buildService(cliCtx *CLIContext, forceMetrics bool) (*serviceDeps, error) {
	cfg, logger := cliCtx.Config, cliCtx.Logger

	store := meshio.NewStore(newObjectStore(cfg.Storage.MinIO, logger), logger)

	deps := &serviceDeps{}
	var opts []decompose.Option
	m := cfg.Metrics
	if forceMetrics || m.Enabled || m.PushGateway != "" || m.Textfile != "" {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace: m.Namespace,
		}, logger)
		if err != nil {
			return nil, err
		}
		deps.Collector = collector
		opts = append(opts, decompose.WithMetrics(&decompose.MetricsSink{
			Collector:   collector,
			Metrics:     prometheus.NewDecompositionMetrics(collector),
			PushGateway: m.PushGateway,
			Job:         m.Job,
			Textfile:    m.Textfile,
		}))
	}

	deps.Service = decompose.NewService(store, logger, opts...)
	return deps, nil
}
