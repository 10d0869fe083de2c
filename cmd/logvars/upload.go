package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/logvars/internal/cli"
	"github.com/ppiankov/logvars/internal/cloud"
)

// newBackend connects to object storage. Tests replace it with a mock.
var newBackend = cloud.NewBackend

func newUploadCmd() *cobra.Command {
	var (
		to          string
		concurrency int
		share       time.Duration
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload logs or exports to cloud storage",
		Long: `Upload files to S3 or GCS under the --to prefix, keeping their base names.

With --share, each S3 object also gets a presigned download URL valid for
the given duration.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return cli.NewUsageError("--to is required")
			}
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			return runUpload(ctx, cmd.OutOrStdout(), args, to, concurrency, share, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination URL (s3://bucket/prefix or gs://bucket/prefix)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of parallel uploads")
	cmd.Flags().DurationVar(&share, "share", 0, "create presigned URLs valid for this long (S3 only)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output summary as JSON")

	return cmd
}

type uploadResult struct {
	File  string `json:"file"`
	URL   string `json:"url"`
	Bytes int64  `json:"bytes"`
	Share string `json:"share,omitempty"`
}

func runUpload(ctx context.Context, stdout io.Writer, files []string, toURL string, concurrency int, share time.Duration, jsonOutput bool) error {
	dest, err := cloud.ParseLocation(toURL)
	if err != nil {
		return cli.NewUsageError(fmt.Sprintf("invalid --to: %v", err))
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var total int64
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return fmt.Errorf("stat %s: %w", f, err)
		}
		if info.IsDir() {
			return cli.NewUsageError(fmt.Sprintf("%s is a directory", f))
		}
		total += info.Size()
	}

	backend, err := newBackend(ctx, dest.Scheme, dest.Bucket)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", dest.Scheme, err)
	}
	var presigner cloud.Presigner
	if share > 0 {
		p, ok := backend.(cloud.Presigner)
		if !ok {
			return cli.NewUsageError(fmt.Sprintf("--share is not supported for %s", dest.Scheme))
		}
		presigner = p
	}

	results := make([]uploadResult, len(files))
	var (
		done     atomic.Int64
		uploaded atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, f := range files {
		g.Go(func() error {
			loc := dest.Join(filepath.Base(f))
			n, err := putFile(gctx, backend, f, loc.Key)
			if err != nil {
				return err
			}
			res := uploadResult{File: f, URL: loc.String(), Bytes: n}
			if presigner != nil {
				u, err := presigner.ShareURL(gctx, loc.Key, share)
				if err != nil {
					return fmt.Errorf("share %s: %w", f, err)
				}
				res.Share = u
			}
			results[i] = res

			c := done.Add(1)
			b := uploaded.Add(n)
			if !jsonOutput {
				_, _ = fmt.Fprintf(progressOut, "\rUploading: %d/%d files (%s / %s)",
					c, int64(len(files)), formatBytes(b), formatBytes(total))
			}
			logger.Debug("uploaded", zap.String("file", f), zap.String("url", res.URL))
			return nil
		})
	}
	err = g.Wait()
	if !jsonOutput {
		_, _ = fmt.Fprintln(progressOut)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(stdout).Encode(map[string]any{
			"destination": dest.String(),
			"files":       results,
			"bytes":       total,
		})
	}

	for _, r := range results {
		if r.Share != "" {
			_, _ = fmt.Fprintf(stdout, "%s\t%s\n", r.URL, r.Share)
		}
	}
	_, _ = fmt.Fprintf(progressOut, "Uploaded %d files (%s) to %s\n", len(files), formatBytes(total), dest)
	return nil
}

// putFile uploads one local file to key and returns its size.
func putFile(ctx context.Context, b cloud.Backend, path, key string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := b.Put(ctx, key, f, info.Size(), cloud.ContentType(key)); err != nil {
		return 0, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	return info.Size(), nil
}

// publishFile uploads a local file to loc.
func publishFile(ctx context.Context, path string, loc cloud.Location) (int64, error) {
	b, err := newBackend(ctx, loc.Scheme, loc.Bucket)
	if err != nil {
		return 0, fmt.Errorf("connect to %s: %w", loc.Scheme, err)
	}
	return putFile(ctx, b, path, loc.Key)
}
