package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// mockGCSWriter is a mock io.WriteCloser for GCS put tests.
type mockGCSWriter struct {
	buf      bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (m *mockGCSWriter) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.buf.Write(p)
}

func (m *mockGCSWriter) Close() error {
	m.closed = true
	return m.closeErr
}

// mockGCSIterator implements gcsObjectIterator for testing.
type mockGCSIterator struct {
	objects []*gstorage.ObjectAttrs
	idx     int
	err     error
}

func (m *mockGCSIterator) Next() (*gstorage.ObjectAttrs, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.idx >= len(m.objects) {
		return nil, iterator.Done
	}
	obj := m.objects[m.idx]
	m.idx++
	return obj, nil
}

type gcsFixture struct {
	writer      *mockGCSWriter
	contentType string
	readerBody  string
	readerErr   error
	iter        gcsObjectIterator
	prefix      string
}

func (f *gcsFixture) backend() *gcsBackend {
	return &gcsBackend{
		bucket: "test-bucket",
		newWriter: func(_ context.Context, _, _, contentType string) io.WriteCloser {
			f.contentType = contentType
			return f.writer
		},
		newReader: func(_ context.Context, _, _ string) (io.ReadCloser, error) {
			if f.readerErr != nil {
				return nil, f.readerErr
			}
			return io.NopCloser(strings.NewReader(f.readerBody)), nil
		},
		newIterator: func(_ context.Context, _, prefix string) gcsObjectIterator {
			f.prefix = prefix
			return f.iter
		},
	}
}

func TestGCSPut(t *testing.T) {
	f := &gcsFixture{writer: &mockGCSWriter{}}
	err := f.backend().Put(context.Background(), "vars.jsonl", strings.NewReader("{}\n"), 3, "application/x-ndjson")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.writer.buf.String() != "{}\n" {
		t.Errorf("written = %q", f.writer.buf.String())
	}
	if f.contentType != "application/x-ndjson" {
		t.Errorf("content type = %q", f.contentType)
	}
	if !f.writer.closed {
		t.Error("writer not closed")
	}
}

func TestGCSPutCopyError(t *testing.T) {
	f := &gcsFixture{writer: &mockGCSWriter{writeErr: errors.New("write failed")}}
	err := f.backend().Put(context.Background(), "vars.csv", strings.NewReader("x"), 1, "text/csv")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "gcs put vars.csv") {
		t.Errorf("error = %q, want to contain 'gcs put vars.csv'", err)
	}
	if !f.writer.closed {
		t.Error("writer should be closed after a failed copy")
	}
}

func TestGCSPutCloseError(t *testing.T) {
	f := &gcsFixture{writer: &mockGCSWriter{closeErr: errors.New("finalize failed")}}
	err := f.backend().Put(context.Background(), "vars.csv", strings.NewReader("x"), 1, "text/csv")
	if err == nil || !strings.Contains(err.Error(), "gcs finalize") {
		t.Errorf("error = %v, want gcs finalize", err)
	}
}

func TestGCSOpen(t *testing.T) {
	f := &gcsFixture{readerBody: "log contents"}
	rc, err := f.backend().Open(context.Background(), "run.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != "log contents" {
		t.Errorf("got %q", data)
	}
}

func TestGCSOpenError(t *testing.T) {
	f := &gcsFixture{readerErr: errors.New("not found")}
	_, err := f.backend().Open(context.Background(), "run.log")
	if err == nil || !strings.Contains(err.Error(), "gcs get run.log") {
		t.Errorf("error = %v, want gcs get run.log", err)
	}
}

func TestGCSList(t *testing.T) {
	f := &gcsFixture{iter: &mockGCSIterator{objects: []*gstorage.ObjectAttrs{
		{Name: "nightly/a.log", Size: 10},
		{Name: "nightly/b.log", Size: 20},
	}}}
	objects, err := f.backend().List(context.Background(), "nightly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []ObjectInfo{{"nightly/a.log", 10}, {"nightly/b.log", 20}}
	if len(objects) != 2 || objects[0] != want[0] || objects[1] != want[1] {
		t.Errorf("objects = %+v, want %+v", objects, want)
	}
	if f.prefix != "nightly/" {
		t.Errorf("prefix = %q, want nightly/", f.prefix)
	}
}

func TestGCSListError(t *testing.T) {
	f := &gcsFixture{iter: &mockGCSIterator{err: errors.New("denied")}}
	_, err := f.backend().List(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "gcs list") {
		t.Errorf("error = %v, want gcs list", err)
	}
}
