package meshio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/meshdecomp/internal/infrastructure/storage/minio"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

type memStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, minio.ErrObjectNotFound.WithDetail(bucket + "/" + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Put(_ context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*minio.UploadResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != size {
		return nil, errors.New(errors.CodeStorage, "size mismatch")
	}
	m.objects[bucket+"/"+key] = data
	m.contentTypes[bucket+"/"+key] = contentType
	return &minio.UploadResult{Bucket: bucket, ObjectKey: key, ETag: "etag", Size: size}, nil
}

func TestStore_LocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "centres.csv")
	require.NoError(t, os.WriteFile(in, []byte("0.5,1,1.5\n-1,2e-3,7\n"), 0o644))

	s := NewStore(nil, logging.NewNopLogger())
	centres, err := s.ReadCenters(context.Background(), in, "", 0)
	require.NoError(t, err)
	if diff := cmp.Diff(twoCentres, centres); diff != "" {
		t.Errorf("centres mismatch (-want +got):\n%s", diff)
	}

	out := filepath.Join(dir, "constant", "cellDecomposition")
	ids := []decomposition.PartitionID{3, 1}
	require.NoError(t, s.WritePartitions(context.Background(), out, "", ids))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	got, err := DecodePartitions(f, FormatFoam)
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestStore_UniformFieldUsesCellCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "C")
	require.NoError(t, os.WriteFile(path, []byte("internalField uniform (1 2 3);"), 0o644))
	s := NewStore(nil, nil)

	_, err := s.ReadCenters(context.Background(), path, "", 0)
	assert.True(t, errors.IsCode(err, errors.CodeMeshParse))

	centres, err := s.ReadCenters(context.Background(), path, "", 2)
	require.NoError(t, err)
	if diff := cmp.Diff([]r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 1, Y: 2, Z: 3}}, centres); diff != "" {
		t.Errorf("centres mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LocalMissing(t *testing.T) {
	s := NewStore(nil, nil)
	_, err := s.ReadCenters(context.Background(), filepath.Join(t.TempDir(), "nope"), FormatFoam, 0)
	assert.True(t, errors.IsCode(err, errors.CodeMeshRead))
}

func TestStore_LocalParseErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte("[[1,2]]"), 0o644))

	_, err := NewStore(nil, nil).ReadCenters(context.Background(), path, "", 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMeshParse))
	assert.Contains(t, err.Error(), "c.json")
}

func TestStore_Remote(t *testing.T) {
	mem := newMemStore()
	mem.objects["meshes/case/centres.json"] = []byte("[[0.5,1,1.5],[-1,0.002,7]]")
	s := NewStore(mem, logging.NewNopLogger())
	ctx := context.Background()

	centres, err := s.ReadCenters(ctx, "s3://meshes/case/centres.json", "", 0)
	require.NoError(t, err)
	assert.Len(t, centres, 2)

	require.NoError(t, s.WritePartitions(ctx, "s3://results/case/ids.csv", "", []decomposition.PartitionID{4, 2}))
	assert.Equal(t, "4\n2\n", string(mem.objects["results/case/ids.csv"]))
	assert.Equal(t, "text/csv", mem.contentTypes["results/case/ids.csv"])

	_, err = s.ReadCenters(ctx, "s3://meshes/missing", "", 0)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestStore_RemoteWithoutObjectStore(t *testing.T) {
	s := NewStore(nil, nil)
	_, err := s.ReadCenters(context.Background(), "s3://meshes/c", "", 0)
	assert.True(t, errors.IsCode(err, errors.CodeStorage))

	err = s.WritePartitions(context.Background(), "s3://meshes/out", "", nil)
	assert.True(t, errors.IsCode(err, errors.CodeStorage))
}

func TestStore_WriteUnsupportedFormatLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ids")
	err := NewStore(nil, nil).WritePartitions(context.Background(), out, "vtk", []decomposition.PartitionID{1})
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedFormat))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
