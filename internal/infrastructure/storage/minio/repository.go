package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.CodeNotFound, "object not found")
	ErrBucketNotFound = errors.New(errors.CodeBucket, "bucket not found")
	ErrInvalidRequest = errors.New(errors.CodeInvalidParam, "invalid request")
)

// UploadResult describes a stored object.
type UploadResult struct {
	Bucket     string
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

// Repository reads and writes whole objects.
type Repository struct {
	client *Client
	logger logging.Logger

	mu      sync.Mutex
	checked map[string]bool
}

// NewRepository wraps client.
func NewRepository(client *Client, log logging.Logger) *Repository {
	return &Repository{client: client, logger: log, checked: make(map[string]bool)}
}

// Get opens bucket/key for reading.  The caller closes the reader.
func (r *Repository) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket == "" || key == "" {
		return nil, ErrInvalidRequest.WithDetail("bucket and key are required")
	}
	rc, size, err := r.client.api.Open(ctx, bucket, key)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetailf("s3://%s/%s", bucket, key).WithCause(err)
		}
		return nil, errors.Wrapf(err, errors.CodeStorage, "download s3://%s/%s failed", bucket, key)
	}
	r.logger.Debug("object opened",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", size))
	return rc, nil
}

// Put uploads body to bucket/key.  size may be -1 for unknown length, in
// which case the configured part size is used.  Missing buckets are created
// when AutoCreate is set.
func (r *Repository) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*UploadResult, error) {
	if bucket == "" || key == "" {
		return nil, ErrInvalidRequest.WithDetail("bucket and key are required")
	}
	if err := r.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if size < 0 {
		opts.PartSize = r.client.config.PartSize
	}
	info, err := r.client.api.PutObject(ctx, bucket, key, body, size, opts)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeStorage, "upload s3://%s/%s failed", bucket, key)
	}
	r.logger.Info("object stored",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return &UploadResult{
		Bucket:     bucket,
		ObjectKey:  key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

func (r *Repository) ensureBucket(ctx context.Context, bucket string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.checked[bucket] {
		return nil
	}

	exists, err := r.client.api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeBucket, "failed to check bucket existence")
	}
	if !exists {
		if !r.client.config.AutoCreate {
			return ErrBucketNotFound.WithDetail(bucket)
		}
		if err := r.client.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: r.client.config.Region}); err != nil {
			return errors.Wrapf(err, errors.CodeBucket, "failed to create bucket %s", bucket)
		}
		r.logger.Info("Created bucket", logging.String("bucket", bucket))
	}
	r.checked[bucket] = true
	return nil
}
