// Package source loads log text from files, stdin, object storage and pods.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ppiankov/logvars/internal/cloud"
	"github.com/ppiankov/logvars/internal/k8s"
)

// Stdin is the input name that reads standard input.
const Stdin = "-"

// ErrTooLarge is returned when an input exceeds Opener.MaxBytes.
var ErrTooLarge = errors.New("input too large")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Input is a decoded log ready for parsing.
type Input struct {
	Name string
	Text string
}

// Opener resolves input names to readers. Zero-value fields fall back to the
// real stdin, cloud and Kubernetes clients.
type Opener struct {
	Stdin      io.Reader
	NewBackend func(ctx context.Context, scheme, bucket string) (cloud.Backend, error)
	NewK8s     func(namespace string) (*k8s.Client, error)
	MaxBytes   int64 // 0 means unlimited
}

// Read loads name and returns its decoded text. name may be a path, "-",
// an s3:// or gs:// URL, or a k8s:// pod location. .gz and .zst inputs are
// decompressed.
func (o *Opener) Read(ctx context.Context, name string) (*Input, error) {
	rc, err := o.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var r io.Reader = rc
	if o.MaxBytes > 0 {
		r = io.LimitReader(rc, o.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if o.MaxBytes > 0 && int64(len(data)) > o.MaxBytes {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", name, ErrTooLarge, o.MaxBytes)
	}
	return &Input{Name: name, Text: decode(data)}, nil
}

// Open returns a decompressed stream for name. The caller closes it.
func (o *Opener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	raw, err := o.openRaw(ctx, name)
	if err != nil {
		return nil, err
	}
	return decompress(name, raw)
}

func (o *Opener) openRaw(ctx context.Context, name string) (io.ReadCloser, error) {
	switch {
	case name == Stdin:
		in := o.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil

	case cloud.IsRemote(name):
		loc, err := cloud.ParseLocation(name)
		if err != nil {
			return nil, err
		}
		if loc.Key == "" {
			return nil, fmt.Errorf("%s: object key required", name)
		}
		newBackend := o.NewBackend
		if newBackend == nil {
			newBackend = cloud.NewBackend
		}
		b, err := newBackend(ctx, loc.Scheme, loc.Bucket)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", loc.Scheme, err)
		}
		return b.Open(ctx, loc.Key)

	case k8s.IsTarget(name):
		t, err := k8s.ParseTarget(name)
		if err != nil {
			return nil, err
		}
		newK8s := o.NewK8s
		if newK8s == nil {
			newK8s = k8s.NewClient
		}
		c, err := newK8s(t.Namespace)
		if err != nil {
			return nil, fmt.Errorf("connect kubernetes: %w", err)
		}
		return k8s.OpenLogs(ctx, c, t)

	default:
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		return f, nil
	}
}

// decompress wraps raw according to the compression suffix of name.
func decompress(name string, raw io.ReadCloser) (io.ReadCloser, error) {
	base, _, _ := strings.Cut(name, "?")
	lower := strings.ToLower(base)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("gzip open %s: %w", name, err)
		}
		return &stack{Reader: zr, closers: []func() error{zr.Close, raw.Close}}, nil
	case strings.HasSuffix(lower, ".zst"):
		dec, err := zstd.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("zstd open %s: %w", name, err)
		}
		return &stack{Reader: dec, closers: []func() error{
			func() error { dec.Close(); return nil },
			raw.Close,
		}}, nil
	default:
		return raw, nil
	}
}

// stack closes a decoder and the stream beneath it.
type stack struct {
	io.Reader
	closers []func() error
}

func (s *stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// decode strips a UTF-8 byte order mark and replaces invalid sequences so the
// parser always sees valid text.
func decode(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

// DisplayName shortens name for progress output.
func DisplayName(name string) string {
	if name == Stdin {
		return "stdin"
	}
	return name
}
