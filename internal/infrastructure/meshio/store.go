package meshio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/internal/infrastructure/storage/minio"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

// ObjectStore is the object-storage dependency for s3:// locations.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*minio.UploadResult, error)
}

var _ ObjectStore = (*minio.Repository)(nil)

// Store reads centres and writes partition lists, locally or through an
// ObjectStore.
type Store struct {
	objects ObjectStore
	logger  logging.Logger
}

// NewStore builds a Store.  objects may be nil, in which case s3://
// locations are rejected.
func NewStore(objects ObjectStore, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{objects: objects, logger: logger}
}

func (s *Store) open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	if loc.IsRemote() {
		if s.objects == nil {
			return nil, errors.New(errors.CodeStorage, "object storage is not configured").WithDetail(loc.String())
		}
		return s.objects.Get(ctx, loc.Bucket, loc.Key)
	}
	f, err := os.Open(loc.Path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeMeshRead, "cannot open %s", loc.Path)
	}
	return f, nil
}

// ReadCenters loads every cell centre from location.  An empty format is
// detected from the location's extension.  cellCount expands a uniform
// OpenFOAM internalField; pass 0 when unknown.
func (s *Store) ReadCenters(ctx context.Context, location string, format Format, cellCount int) ([]r3.Vec, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = DetectFormat(location)
	}

	rc, err := s.open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	centers, err := DecodeCenters(rc, format, cellCount)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeUnknown, "%s", loc)
	}
	s.logger.Debug("cell centres loaded",
		logging.String("location", loc.String()),
		logging.String("format", string(format)),
		logging.Int("cells", len(centers)))
	return centers, nil
}

// WritePartitions writes ids to location in one piece.  Local files are
// written to a temporary sibling and renamed into place; parent
// directories are created.
func (s *Store) WritePartitions(ctx context.Context, location string, format Format, ids []decomposition.PartitionID) error {
	loc, err := ParseLocation(location)
	if err != nil {
		return err
	}
	if format == "" {
		format = DetectFormat(location)
	}

	if loc.IsRemote() {
		if s.objects == nil {
			return errors.New(errors.CodeStorage, "object storage is not configured").WithDetail(loc.String())
		}
		var buf bytes.Buffer
		if err := EncodePartitions(&buf, format, ids); err != nil {
			return err
		}
		size := int64(buf.Len())
		res, err := s.objects.Put(ctx, loc.Bucket, loc.Key, &buf, size, format.ContentType())
		if err != nil {
			return err
		}
		s.logger.Info("partitions uploaded",
			logging.String("location", loc.String()),
			logging.String("etag", res.ETag),
			logging.Int64("size", res.Size))
	} else if err := writeFileAtomic(loc.Path, func(w io.Writer) error {
		return EncodePartitions(w, format, ids)
	}); err != nil {
		return err
	}

	s.logger.Debug("partitions written",
		logging.String("location", loc.String()),
		logging.String("format", string(format)),
		logging.Int("cells", len(ids)))
	return nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, errors.CodeWriteFailed, "cannot create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, errors.CodeWriteFailed, "cannot create temporary file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, errors.CodeWriteFailed, "cannot write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, errors.CodeWriteFailed, "cannot rename into %s", path)
	}
	return nil
}
