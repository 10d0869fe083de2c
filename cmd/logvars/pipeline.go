package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ppiankov/logvars/internal/cli"
	"github.com/ppiankov/logvars/internal/dataset"
	"github.com/ppiankov/logvars/internal/logparse"
	"github.com/ppiankov/logvars/internal/redact"
	"github.com/ppiankov/logvars/internal/source"
)

// progressOut receives progress bars and summaries. Tests swap it out.
var progressOut io.Writer = os.Stderr

// newOpener builds the input opener. Tests replace it to inject fakes.
var newOpener = func(maxBytes int64) *source.Opener {
	return &source.Opener{MaxBytes: maxBytes}
}

type parseOptions struct {
	marker         string
	chunkLines     int
	chunkThreshold int
	noFilter       bool
	maxBytes       int64
	quiet          bool
}

func addParseFlags(cmd *cobra.Command, o *parseOptions) {
	cmd.Flags().StringVar(&o.marker, "session-marker", logparse.DefaultSessionMarker, "phrase that opens a test case")
	cmd.Flags().IntVar(&o.chunkLines, "chunk-lines", logparse.DefaultChunkLines, "lines per chunk for large inputs")
	cmd.Flags().IntVar(&o.chunkThreshold, "chunk-threshold", logparse.DefaultChunkThreshold, "input size in bytes that switches to chunked parsing")
	cmd.Flags().BoolVar(&o.noFilter, "no-filter", false, "keep lines before the first test case")
	cmd.Flags().Int64Var(&o.maxBytes, "max-bytes", 0, "reject inputs larger than this many bytes (0 = unlimited)")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "suppress progress output")
}

func (o parseOptions) parser(obs logparse.Observer) *logparse.Parser {
	return logparse.New(
		logparse.WithLogger(logger),
		logparse.WithObserver(obs),
		logparse.WithSessionMarker(o.marker),
		logparse.WithChunkLines(o.chunkLines),
		logparse.WithChunkThreshold(o.chunkThreshold),
		logparse.WithRelevanceFilter(!o.noFilter),
	)
}

type filterOptions struct {
	search string
	types  []string
}

func addFilterFlags(cmd *cobra.Command, f *filterOptions) {
	cmd.Flags().StringVar(&f.search, "search", "", "keep variables whose name, value, type, or group contains this text")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "keep only these types (JSON, Token, URL, ID, Timestamp, Buffer Variable)")
}

func (f filterOptions) varTypes() ([]logparse.VarType, error) {
	out := make([]logparse.VarType, 0, len(f.types))
	for _, s := range f.types {
		t, err := logparse.ParseVarType(s)
		if err != nil {
			return nil, cli.NewUsageError(err.Error())
		}
		out = append(out, t)
	}
	return out, nil
}

func (f filterOptions) active() bool {
	return f.search != "" || len(f.types) > 0
}

type exportOptions struct {
	groupBy        string
	redact         string
	redactPatterns string
}

func addExportFlags(cmd *cobra.Command, e *exportOptions) {
	cmd.Flags().StringVar(&e.groupBy, "group-by", "flat", "grouping: flat or session")
	cmd.Flags().StringVar(&e.redact, "redact", "", "mask sensitive values (true or comma-separated pattern names)")
	cmd.Flags().StringVar(&e.redactPatterns, "redact-patterns", "", "path to custom redaction patterns YAML file")
}

// manager builds a Manager with the configured grouping and redaction.
// onHit may be nil.
func (e exportOptions) manager(onHit func(string)) (*dataset.Manager, error) {
	grouping, err := dataset.ParseGrouping(e.groupBy)
	if err != nil {
		return nil, cli.NewUsageError(err.Error())
	}
	opts := []dataset.ManagerOption{
		dataset.WithGrouping(grouping),
		dataset.WithManagerLogger(logger),
	}

	enabled, names := redact.ParseFlag(e.redact)
	if enabled {
		r, err := redact.New(names)
		if err != nil {
			return nil, cli.NewUsageError(err.Error())
		}
		if e.redactPatterns != "" {
			if err := r.LoadPatterns(e.redactPatterns); err != nil {
				return nil, fmt.Errorf("init redactor: %w", err)
			}
		}
		if onHit != nil {
			r.OnHit(onHit)
		}
		opts = append(opts, dataset.WithRedactor(r))
	}
	return dataset.NewManager(opts...), nil
}

// parsed is one input after parsing.
type parsed struct {
	input *source.Input
	vars  []logparse.Variable
	took  time.Duration
}

// loadAndParse reads name and extracts its variables, drawing a chunk
// progress bar for large inputs unless quiet.
func loadAndParse(ctx context.Context, name string, o parseOptions, obs logparse.Observer) (*parsed, error) {
	in, err := newOpener(o.maxBytes).Read(ctx, name)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var bar *progressbar.ProgressBar
	progress := func(p logparse.ChunkProgress) {
		if o.quiet || p.Chunks < 2 {
			return
		}
		if bar == nil {
			bar = newChunkBar(p.Chunks, source.DisplayName(name))
		}
		_ = bar.Set(p.Chunk)
	}

	vars, err := o.parser(obs).ParseContext(ctx, in.Text, progress)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source.DisplayName(name), err)
	}
	return &parsed{input: in, vars: vars, took: time.Since(started)}, nil
}

func newChunkBar(chunks int, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions(chunks,
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription("Processing "+name),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// loadManager parses name into a fresh Manager and applies the filter.
func loadManager(ctx context.Context, name string, o parseOptions, e exportOptions, f filterOptions, onHit func(string)) (*dataset.Manager, *parsed, error) {
	types, err := f.varTypes()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := e.manager(onHit)
	if err != nil {
		return nil, nil, err
	}
	p, err := loadAndParse(ctx, name, o, nil)
	if err != nil {
		return nil, nil, err
	}
	mgr.SetResults(p.vars, p.input.Text)
	if f.active() {
		mgr.ApplyFilter(f.search, types)
	}
	return mgr, p, nil
}
