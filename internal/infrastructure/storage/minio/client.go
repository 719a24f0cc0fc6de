// Package minio stores mesh inputs and partition lists in MinIO or any
// S3-compatible object store.
package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// ObjectAPI is the subset of *minio.Client used here.  Open replaces
// GetObject so that callers and mocks deal in io.ReadCloser instead of
// *minio.Object.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	Open(ctx context.Context, bucketName, objectName string) (io.ReadCloser, int64, error)
}

// Config holds connection parameters.
type Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Region     string
	UseSSL     bool
	AutoCreate bool
	PartSize   uint64
}

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = 16 * 1024 * 1024
	}
}

// sdkAdapter turns *minio.Client into ObjectAPI.
type sdkAdapter struct {
	*minio.Client
}

// Open fetches the object and stats it, so a missing key fails here rather
// than on first Read.
func (a sdkAdapter) Open(ctx context.Context, bucketName, objectName string) (io.ReadCloser, int64, error) {
	obj, err := a.Client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, err
	}
	return obj, st.Size, nil
}

// Client is a connected object-store client.
type Client struct {
	api    ObjectAPI
	config Config
	logger logging.Logger
}

// NewClient connects to cfg.Endpoint with static credentials.  No request
// is made until first use.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	applyDefaults(&cfg)
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.CodeStorage, "object store endpoint is empty")
	}

	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to create minio client")
	}

	log.Debug("MinIO client configured",
		logging.String("endpoint", cfg.Endpoint),
		logging.Bool("ssl", cfg.UseSSL))
	return &Client{api: sdkAdapter{sdk}, config: cfg, logger: log}, nil
}

// NewClientWithAPI builds a Client around an existing ObjectAPI.
func NewClientWithAPI(api ObjectAPI, cfg Config, log logging.Logger) *Client {
	applyDefaults(&cfg)
	return &Client{api: api, config: cfg, logger: log}
}

// API returns the underlying ObjectAPI.
func (c *Client) API() ObjectAPI { return c.api }

// HealthStatus reports reachability of one bucket.
type HealthStatus struct {
	Healthy bool
	Latency time.Duration
	Error   string
}

// HealthCheck probes bucket existence.
func (c *Client) HealthCheck(ctx context.Context, bucket string) (*HealthStatus, error) {
	start := time.Now()
	exists, err := c.api.BucketExists(ctx, bucket)
	status := &HealthStatus{Healthy: err == nil && exists, Latency: time.Since(start)}
	switch {
	case err != nil:
		status.Error = err.Error()
		return status, errors.Wrap(err, errors.CodeStorage, "health check failed")
	case !exists:
		status.Error = "bucket " + bucket + " missing"
	}
	return status, nil
}

func isNoSuchKey(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
