package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logvars/internal/cli"
	"github.com/ppiankov/logvars/internal/cloud"
	"github.com/ppiankov/logvars/internal/dataset"
	"github.com/ppiankov/logvars/internal/source"
)

func newExportCmd() *cobra.Command {
	var (
		popts      parseOptions
		fopts      filterOptions
		eopts      exportOptions
		formatStr  string
		outPath    string
		prettyName string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "export <log>",
		Short: "Export extracted variables to JSON, CSV, JSONL, YAML, Parquet, or XLSX",
		Long: `Parse a log and export the (optionally filtered) variables.

The format defaults to the output file extension. A .zst suffix compresses
text formats. An s3:// or gs:// destination uploads the export after writing.
With --pretty-json NAME the JSON value of one variable is printed re-indented.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			if prettyName != "" {
				return runPrettyJSON(ctx, cmd.OutOrStdout(), args[0], prettyName, popts)
			}
			return runExport(ctx, cmd.OutOrStdout(), args[0], outPath, formatStr, popts, fopts, eopts, jsonOutput)
		},
	}

	addParseFlags(cmd, &popts)
	addFilterFlags(cmd, &fopts)
	addExportFlags(cmd, &eopts)
	cmd.Flags().StringVar(&formatStr, "format", "", "output format: json, csv, jsonl, yaml, parquet, xlsx (default from --out)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, s3:// or gs:// URL, or - for stdout")
	cmd.Flags().StringVar(&prettyName, "pretty-json", "", "print the named variable's JSON value re-indented")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output summary as JSON")

	return cmd
}

// resolveFormat picks the export format from the flag, then the output
// extension, then JSON.
func resolveFormat(formatStr, outPath string) (dataset.Format, error) {
	if formatStr != "" {
		f, err := dataset.ParseFormat(formatStr)
		if err != nil {
			return "", cli.NewUsageError(err.Error())
		}
		return f, nil
	}
	if f, ok := dataset.FormatFromPath(outPath); ok {
		return f, nil
	}
	return dataset.FormatJSON, nil
}

func runExport(ctx context.Context, stdout io.Writer, src, outPath, formatStr string, popts parseOptions, fopts filterOptions, eopts exportOptions, jsonOutput bool) error {
	format, err := resolveFormat(formatStr, outPath)
	if err != nil {
		return err
	}
	if outPath == "-" && jsonOutput {
		return cli.NewUsageError("--json summary needs --out")
	}

	mgr, p, err := loadManager(ctx, src, popts, eopts, fopts, nil)
	if err != nil {
		return err
	}
	st := mgr.Statistics()

	if outPath == "-" || outPath == "" {
		return mgr.Encode(stdout, format, nil)
	}

	dest := outPath
	var remote *cloud.Location
	if cloud.IsRemote(outPath) {
		loc, err := cloud.ParseLocation(outPath)
		if err != nil {
			return cli.NewUsageError(fmt.Sprintf("invalid --out: %v", err))
		}
		// a key without an export extension is a prefix
		if _, ok := dataset.FormatFromPath(loc.Key); !ok {
			loc = loc.Join(defaultExportName(src, format))
		}
		remote = &loc

		tmpDir, err := os.MkdirTemp("", "logvars-export-")
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()
		dest = filepath.Join(tmpDir, path.Base(loc.Key))
	}

	progress := func(ep dataset.ExportProgress) {
		if popts.quiet || ep.Total < 1000 {
			return
		}
		pct := float64(ep.Written) / float64(ep.Total) * 100
		_, _ = fmt.Fprintf(progressOut, "\rExporting: %d / %d variables (%.1f%%)", ep.Written, ep.Total, pct)
	}
	if err := mgr.WriteFile(dest, format, progress); err != nil {
		return err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}

	shown := outPath
	if remote != nil {
		if _, err := publishFile(ctx, dest, *remote); err != nil {
			return err
		}
		shown = remote.String()
	}

	if jsonOutput {
		return json.NewEncoder(stdout).Encode(map[string]any{
			"source":    src,
			"format":    format,
			"output":    shown,
			"variables": st.Filtered,
			"total":     st.Total,
			"bytes":     info.Size(),
		})
	}

	if !popts.quiet {
		_, _ = fmt.Fprintf(progressOut, "\rExported: %d of %d variables -> %s (%s) in %s\n",
			st.Filtered, st.Total, shown, formatBytes(info.Size()), p.took.Round(time.Millisecond))
	}
	return nil
}

// defaultExportName names an export uploaded to a bucket prefix.
func defaultExportName(src string, format dataset.Format) string {
	base := path.Base(src)
	if src == source.Stdin || base == "." || base == "/" {
		base = "stdin"
	}
	for _, ext := range []string{".gz", ".zst", ".log", ".txt"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base + "-variables." + string(format)
}

func runPrettyJSON(ctx context.Context, stdout io.Writer, src, name string, popts parseOptions) error {
	p, err := loadAndParse(ctx, src, popts, nil)
	if err != nil {
		return err
	}
	mgr := dataset.NewManager(dataset.WithManagerLogger(logger))
	mgr.SetResults(p.vars, "")
	v, ok := mgr.FindByName(name)
	if !ok {
		return cli.NewNotFoundError(fmt.Sprintf("no variable named %q", name))
	}
	_, err = fmt.Fprintln(stdout, dataset.PrettyValue(v.Value))
	return err
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
