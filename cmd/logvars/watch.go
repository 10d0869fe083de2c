package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/logvars/internal/buffers"
	"github.com/ppiankov/logvars/internal/cli"
	"github.com/ppiankov/logvars/internal/cloud"
	"github.com/ppiankov/logvars/internal/dataset"
	"github.com/ppiankov/logvars/internal/k8s"
	"github.com/ppiankov/logvars/internal/logparse"
	"github.com/ppiankov/logvars/internal/metrics"
	"github.com/ppiankov/logvars/internal/source"
	"github.com/ppiankov/logvars/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		popts       parseOptions
		fopts       filterOptions
		eopts       exportOptions
		outPath     string
		formatStr   string
		metricsAddr string
		debounce    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <log>",
		Short: "Re-extract variables whenever a log file changes",
		Long: `Watch parses a local log, then parses it again each time the file is
written. With --out the export is rewritten after every parse. With
--metrics-addr, Prometheus metrics and the current statistics are served
over HTTP until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), args[0], watchOptions{
				parse:       popts,
				filter:      fopts,
				export:      eopts,
				outPath:     outPath,
				format:      formatStr,
				metricsAddr: metricsAddr,
				debounce:    debounce,
			})
		},
	}

	addParseFlags(cmd, &popts)
	addFilterFlags(cmd, &fopts)
	addExportFlags(cmd, &eopts)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "rewrite this export file after each parse")
	cmd.Flags().StringVar(&formatStr, "format", "", "export format (default from --out)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /api/stats on this address")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period after a write before re-parsing")

	return cmd
}

type watchOptions struct {
	parse       parseOptions
	filter      filterOptions
	export      exportOptions
	outPath     string
	format      string
	metricsAddr string
	debounce    time.Duration
}

// liveSession holds the latest parse of a watched file. The stats endpoint
// reads it from the HTTP goroutine, so access goes through mu.
type liveSession struct {
	path    string
	opts    watchOptions
	format  dataset.Format
	types   []logparse.VarType
	metrics *metrics.Metrics
	runs    *buffers.RunRing
	out     io.Writer

	mu  sync.Mutex
	mgr *dataset.Manager
}

func newLiveSession(path string, opts watchOptions, m *metrics.Metrics, out io.Writer) (*liveSession, error) {
	types, err := opts.filter.varTypes()
	if err != nil {
		return nil, err
	}
	mgr, err := opts.export.manager(m.Redacted)
	if err != nil {
		return nil, err
	}
	s := &liveSession{
		path:    path,
		opts:    opts,
		types:   types,
		metrics: m,
		runs:    buffers.NewRunRing(0),
		out:     out,
		mgr:     mgr,
	}
	if opts.outPath != "" {
		if cloud.IsRemote(opts.outPath) {
			return nil, cli.NewUsageError("watch writes local exports only; use upload to publish")
		}
		if s.format, err = resolveFormat(opts.format, opts.outPath); err != nil {
			return nil, err
		}
	}
	s.opts.parse.quiet = true
	return s, nil
}

// reparse reads and parses the file again and replaces the session.
func (s *liveSession) reparse(ctx context.Context) error {
	started := time.Now()
	p, err := loadAndParse(ctx, s.path, s.opts.parse, s.metrics)
	if err != nil {
		s.metrics.ObserveParse(started, 0, err)
		s.runs.Push(buffers.Run{At: started, TookMS: time.Since(started).Milliseconds(), Err: err.Error()})
		return err
	}
	s.metrics.ObserveParse(started, len(p.vars), nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mgr.SetResults(p.vars, p.input.Text)
	if s.opts.filter.active() {
		s.mgr.ApplyFilter(s.opts.filter.search, s.types)
	}
	if s.opts.outPath != "" {
		if err := s.mgr.WriteFile(s.opts.outPath, s.format, nil); err != nil {
			return err
		}
	}
	st := s.mgr.Statistics()
	s.runs.Push(buffers.Run{At: started, Variables: st.Total, Filtered: st.Filtered, TookMS: p.took.Milliseconds()})
	_, _ = fmt.Fprintf(s.out, "[%s] %s: %d variables (%d shown) in %s\n",
		time.Now().Format("15:04:05"), s.path, st.Total, st.Filtered, p.took.Round(time.Millisecond))
	return nil
}

// stats snapshots the current statistics for the HTTP endpoint.
func (s *liveSession) stats() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return struct {
		Source string               `json:"source"`
		Stats  dataset.Stats        `json:"statistics"`
		Groups []dataset.GroupCount `json:"groups"`
		Runs   []buffers.Run        `json:"runs"`
	}{s.path, s.mgr.Statistics(), s.mgr.UniqueGroups(), s.runs.Snapshot()}
}

func runWatch(ctx context.Context, out io.Writer, path string, opts watchOptions) error {
	if path == source.Stdin || cloud.IsRemote(path) || k8s.IsTarget(path) {
		return cli.NewUsageError("watch needs a local file")
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	sess, err := newLiveSession(path, opts, m, out)
	if err != nil {
		return err
	}

	w, err := watch.NewWatcher(watch.WithDebounce(opts.debounce), watch.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return cli.NewNotFoundError(err.Error())
	}

	if err := sess.reparse(ctx); err != nil {
		_ = w.Close()
		return err
	}

	if opts.metricsAddr != "" {
		ln, err := net.Listen("tcp", opts.metricsAddr)
		if err != nil {
			_ = w.Close()
			return fmt.Errorf("listen %s: %w", opts.metricsAddr, err)
		}
		srv := metrics.NewServer(opts.metricsAddr, reg, sess.stats)
		srv.SetVersion(version)
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		_, _ = fmt.Fprintf(progressOut, "Serving metrics on http://%s/metrics\n", ln.Addr())
	}

	w.OnChange = func(ctx context.Context, _ string) error {
		pctx, cancel := commandContext(ctx)
		defer cancel()
		return sess.reparse(pctx)
	}
	w.OnError = func(p string, err error) {
		logger.Warn("re-parse failed", zap.String("path", p), zap.Error(err))
	}

	_, _ = fmt.Fprintf(progressOut, "Watching %s (Ctrl+C to stop)\n", path)
	return w.Run(ctx)
}
