package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/logvars/internal/cloud"
	"github.com/ppiankov/logvars/internal/logparse"
	"github.com/ppiankov/logvars/internal/source"
)

const sampleLog = `2024-05-01 09:59:59 [INF][TBox] Buffer with name 'Pre' has been set to value 'early'
2024-05-01 10:00:00 [INF][TBox] Starting TestCase 'Login flow'
2024-05-01 10:00:01 [INF][TBox]     Buffer with name 'Body' has been set to value '{"a":1}'
2024-05-01 10:00:02 [INF][TBox]     Buffer with name 'Endpoint' has been set to value 'https://api.example.com/login'
2024-05-01 10:00:03 [INF][TBox] [Succeeded] 'Call login API'
2024-05-01 10:00:04 [INF][TBox]     [Failed] 'Verify response'
2024-05-01 10:00:05 [INF][TBox] Buffer with name 'OrderId' has been set to value '3f2504e0-4f89-11d3-9a0c-0305e82c3301'
`

// writeLog stores content as a log file in a temp dir and returns its path.
func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// captureProgress redirects progress output for the duration of the test.
func captureProgress(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := progressOut
	progressOut = &buf
	t.Cleanup(func() { progressOut = old })
	return &buf
}

// withStdin makes "-" read from content.
func withStdin(t *testing.T, content string) {
	t.Helper()
	old := newOpener
	newOpener = func(maxBytes int64) *source.Opener {
		return &source.Opener{Stdin: strings.NewReader(content), MaxBytes: maxBytes}
	}
	t.Cleanup(func() { newOpener = old })
}

// withBackend routes every object storage connection to b.
func withBackend(t *testing.T, b cloud.Backend) {
	t.Helper()
	old := newBackend
	newBackend = func(context.Context, string, string) (cloud.Backend, error) { return b, nil }
	t.Cleanup(func() { newBackend = old })
}

func defaultParseOptions() parseOptions {
	return parseOptions{
		marker:         logparse.DefaultSessionMarker,
		chunkLines:     logparse.DefaultChunkLines,
		chunkThreshold: logparse.DefaultChunkThreshold,
		quiet:          true,
	}
}

type mockUpload struct {
	Key         string
	Data        []byte
	Size        int64
	ContentType string
}

type mockBackend struct {
	mu      sync.Mutex
	uploads []mockUpload
	putErr  error
}

func (m *mockBackend) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.uploads = append(m.uploads, mockUpload{Key: key, Data: data, Size: size, ContentType: contentType})
	m.mu.Unlock()
	return nil
}

func (m *mockBackend) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.uploads {
		if u.Key == key {
			return io.NopCloser(bytes.NewReader(u.Data)), nil
		}
	}
	return nil, fmt.Errorf("object not found: %s", key)
}

func (m *mockBackend) List(_ context.Context, prefix string) ([]cloud.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cloud.ObjectInfo
	for _, u := range m.uploads {
		if strings.HasPrefix(u.Key, prefix) {
			out = append(out, cloud.ObjectInfo{Key: u.Key, Size: u.Size})
		}
	}
	return out, nil
}

func (m *mockBackend) upload(key string) (mockUpload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.uploads {
		if u.Key == key {
			return u, true
		}
	}
	return mockUpload{}, false
}

// mockPresigner is a backend that can also share objects.
type mockPresigner struct {
	mockBackend
	shareErr error
}

func (m *mockPresigner) ShareURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	if m.shareErr != nil {
		return "", m.shareErr
	}
	return fmt.Sprintf("https://presigned.example.com/%s?expires=%d", key, int(expiry.Seconds())), nil
}
