// Package cloud reads log objects from and publishes exports to object
// storage.
package cloud

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Backend abstracts the object storage operations logvars needs.
type Backend interface {
	// Put writes the content from r to key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Open streams the object at key. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the objects under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Presigner is implemented by backends that can mint download links.
type Presigner interface {
	ShareURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ObjectInfo describes a remote object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Location is a parsed s3:// or gs:// URL.
type Location struct {
	Scheme string
	Bucket string
	Key    string // object key or prefix, without leading or trailing slash
}

// IsRemote reports whether raw names an object storage location.
func IsRemote(raw string) bool {
	return strings.HasPrefix(raw, "s3://") || strings.HasPrefix(raw, "gs://")
}

// ParseLocation splits a cloud URL into scheme, bucket and key.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty URL")
	}

	var loc Location
	var rest string
	switch {
	case strings.HasPrefix(raw, "s3://"):
		loc.Scheme = "s3"
		rest = strings.TrimPrefix(raw, "s3://")
	case strings.HasPrefix(raw, "gs://"):
		loc.Scheme = "gs"
		rest = strings.TrimPrefix(raw, "gs://")
	default:
		return Location{}, fmt.Errorf("unsupported scheme in %q: expected s3:// or gs://", raw)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("empty bucket in %q", raw)
	}
	loc.Bucket = bucket
	loc.Key = strings.Trim(key, "/")
	return loc, nil
}

// String renders the location back into URL form.
func (l Location) String() string {
	if l.Key == "" {
		return l.Scheme + "://" + l.Bucket
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// Join returns the location of name under l.
func (l Location) Join(name string) Location {
	l.Key = strings.TrimPrefix(path.Join(l.Key, name), "/")
	return l
}

// ContentType returns the MIME type used when publishing an export file.
func ContentType(name string) string {
	name = strings.TrimSuffix(name, ".zst")
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	case ".csv":
		return "text/csv"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// NewBackend creates a Backend for the given scheme and bucket.
func NewBackend(ctx context.Context, scheme, bucket string) (Backend, error) {
	switch scheme {
	case "s3":
		return newS3Backend(ctx, bucket)
	case "gs":
		return newGCSBackend(ctx, bucket)
	default:
		return nil, fmt.Errorf("unsupported scheme %q: expected s3 or gs", scheme)
	}
}

// listPrefix normalizes a prefix for directory-style listing.
func listPrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}
