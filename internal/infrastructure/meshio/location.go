// Package meshio reads cell centres and writes partition lists in the
// supported file formats, from local paths or s3://bucket/key locations.
package meshio

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// Format names a file encoding.
type Format string

const (
	FormatFoam Format = "foam"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts foam, csv and json, case-insensitively.  Empty is
// returned unchanged and means "detect from the location".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatFoam, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", errors.New(errors.CodeUnsupportedFormat, "unknown format").
			WithDetailf("%q (expected foam|csv|json)", s)
	}
}

// DetectFormat picks a format from the file extension; anything that is not
// .csv or .json is treated as OpenFOAM.
func DetectFormat(location string) Format {
	switch strings.ToLower(path.Ext(location)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatFoam
	}
}

// ContentType is the MIME type used when uploading f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain"
	}
}

const s3Scheme = "s3://"

// Location is a parsed input or output address.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// IsRemote reports whether l is in object storage.
func (l Location) IsRemote() bool { return l.Bucket != "" }

func (l Location) String() string {
	if l.IsRemote() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation accepts a local path or s3://bucket/key.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, errors.New(errors.CodeInvalidParam, "location is empty")
	}
	if !strings.HasPrefix(s, s3Scheme) {
		return Location{Path: filepath.Clean(s)}, nil
	}
	rest := strings.TrimPrefix(s, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(key, "/") == "" {
		return Location{}, errors.New(errors.CodeInvalidParam, "object location needs a bucket and a key").WithDetail(s)
	}
	return Location{Bucket: bucket, Key: key}, nil
}
