package cloud

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements s3API for testing.
type mockS3Client struct {
	putErr  error
	getBody string
	getErr  error

	lastPut *s3.PutObjectInput
	putBody string
}

func (m *mockS3Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.lastPut = in
	if in.Body != nil {
		data, _ := io.ReadAll(in.Body)
		m.putBody = string(data)
	}
	return &s3.PutObjectOutput{}, m.putErr
}

func (m *mockS3Client) GetObject(_ context.Context, _ *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(m.getBody)),
	}, nil
}

// mockPaginator implements s3Paginator for testing.
type mockPaginator struct {
	pages []*s3.ListObjectsV2Output
	idx   int
	err   error
}

func (m *mockPaginator) HasMorePages() bool {
	return m.idx < len(m.pages)
}

func (m *mockPaginator) NextPage(_ context.Context, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.err != nil {
		return nil, m.err
	}
	page := m.pages[m.idx]
	m.idx++
	return page, nil
}

func newTestS3Backend(client s3API, pag s3Paginator) *s3Backend {
	return &s3Backend{
		client: client,
		bucket: "test-bucket",
		newPaginator: func(_, _ string) s3Paginator {
			return pag
		},
	}
}

func TestS3Put(t *testing.T) {
	client := &mockS3Client{}
	b := newTestS3Backend(client, nil)
	err := b.Put(context.Background(), "exports/vars.csv", strings.NewReader("a,b"), 3, "text/csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.putBody != "a,b" {
		t.Errorf("body = %q", client.putBody)
	}
	if *client.lastPut.ContentType != "text/csv" || *client.lastPut.ContentLength != 3 {
		t.Errorf("put input = type %q length %d", *client.lastPut.ContentType, *client.lastPut.ContentLength)
	}
	if *client.lastPut.Bucket != "test-bucket" || *client.lastPut.Key != "exports/vars.csv" {
		t.Errorf("put target = %s/%s", *client.lastPut.Bucket, *client.lastPut.Key)
	}
}

func TestS3PutError(t *testing.T) {
	b := newTestS3Backend(&mockS3Client{putErr: errors.New("access denied")}, nil)
	err := b.Put(context.Background(), "vars.csv", strings.NewReader("x"), 1, "text/csv")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "s3 put vars.csv") {
		t.Errorf("error = %q, want to contain 's3 put vars.csv'", err)
	}
}

func TestS3Open(t *testing.T) {
	b := newTestS3Backend(&mockS3Client{getBody: "Buffer with name 'A' has been set to value '1'"}, nil)
	rc, err := b.Open(context.Background(), "run.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Buffer with name") {
		t.Errorf("got %q", data)
	}
}

func TestS3OpenError(t *testing.T) {
	b := newTestS3Backend(&mockS3Client{getErr: errors.New("not found")}, nil)
	_, err := b.Open(context.Background(), "run.log")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "s3 get run.log") {
		t.Errorf("error = %q, want to contain 's3 get run.log'", err)
	}
}

func TestS3List(t *testing.T) {
	key1 := "logs/a.log"
	key2 := "logs/b.log"
	size1 := int64(100)
	size2 := int64(200)

	pag := &mockPaginator{
		pages: []*s3.ListObjectsV2Output{
			{Contents: []s3types.Object{{Key: &key1, Size: &size1}}},
			{Contents: []s3types.Object{{Key: &key2, Size: &size2}}},
		},
	}

	b := newTestS3Backend(&mockS3Client{}, pag)
	objects, err := b.List(context.Background(), "logs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("got %d objects, want 2", len(objects))
	}
	if objects[0] != (ObjectInfo{Key: key1, Size: 100}) || objects[1] != (ObjectInfo{Key: key2, Size: 200}) {
		t.Errorf("objects = %+v", objects)
	}
}

func TestS3ListPrefix(t *testing.T) {
	var gotPrefix string
	b := &s3Backend{
		client: &mockS3Client{},
		bucket: "test-bucket",
		newPaginator: func(_, prefix string) s3Paginator {
			gotPrefix = prefix
			return &mockPaginator{}
		},
	}
	for in, want := range map[string]string{"logs": "logs/", "logs/": "logs/", "": ""} {
		if _, err := b.List(context.Background(), in); err != nil {
			t.Fatal(err)
		}
		if gotPrefix != want {
			t.Errorf("List(%q) used prefix %q, want %q", in, gotPrefix, want)
		}
	}
}

func TestS3ListError(t *testing.T) {
	pag := &mockPaginator{
		pages: []*s3.ListObjectsV2Output{{}},
		err:   errors.New("list failed"),
	}

	b := newTestS3Backend(&mockS3Client{}, pag)
	_, err := b.List(context.Background(), "logs")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "s3 list") {
		t.Errorf("error = %q, want to contain 's3 list'", err)
	}
}

func TestS3ListSkipsNilKeys(t *testing.T) {
	validKey := "logs/valid.log"
	size := int64(50)

	pag := &mockPaginator{
		pages: []*s3.ListObjectsV2Output{
			{Contents: []s3types.Object{
				{Key: nil, Size: &size},
				{Key: &validKey},
				{Key: nil},
			}},
		},
	}

	b := newTestS3Backend(&mockS3Client{}, pag)
	objects, err := b.List(context.Background(), "logs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != validKey || objects[0].Size != 0 {
		t.Errorf("objects = %+v, want only %q with size 0", objects, validKey)
	}
}

func TestS3ShareURL(t *testing.T) {
	b := newTestS3Backend(&mockS3Client{}, nil)
	b.presignURL = func(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
		return "https://" + bucket + ".example/" + key + "?ttl=" + expiry.String(), nil
	}

	var p Presigner = b
	url, err := p.ShareURL(context.Background(), "vars.json", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://test-bucket.example/vars.json?ttl=1h0m0s" {
		t.Errorf("url = %q", url)
	}

	b.presignURL = func(context.Context, string, string, time.Duration) (string, error) {
		return "", errors.New("no credentials")
	}
	if _, err := b.ShareURL(context.Background(), "vars.json", time.Hour); err == nil || !strings.Contains(err.Error(), "s3 presign") {
		t.Errorf("err = %v, want s3 presign error", err)
	}
}
