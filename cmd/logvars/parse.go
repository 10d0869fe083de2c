package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/logvars/internal/dataset"
	"github.com/ppiankov/logvars/internal/logparse"
	"github.com/ppiankov/logvars/internal/source"
)

func newParseCmd() *cobra.Command {
	var (
		popts       parseOptions
		fopts       filterOptions
		concurrency int
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "parse <log>...",
		Short: "Extract buffer variables from one or more logs",
		Long: `Extract buffer variables from TBox/Tosca logs and print them in source order.

Inputs may be files (optionally .gz or .zst), "-" for stdin, s3:// or gs://
objects, or pod logs as k8s://[namespace/]pod[/container].`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			return runParse(ctx, cmd.OutOrStdout(), args, popts, fopts, concurrency, jsonOutput)
		},
	}

	addParseFlags(cmd, &popts)
	addFilterFlags(cmd, &fopts)
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of inputs parsed in parallel")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

type parseResult struct {
	Source    string              `json:"source"`
	Count     int                 `json:"count"`
	Variables []logparse.Variable `json:"variables"`
}

func runParse(ctx context.Context, w io.Writer, inputs []string, popts parseOptions, fopts filterOptions, concurrency int, jsonOutput bool) error {
	types, err := fopts.varTypes()
	if err != nil {
		return err
	}
	if concurrency < 1 {
		concurrency = 1
	}
	quiet := popts.quiet
	// several bars at once would interleave
	if len(inputs) > 1 {
		popts.quiet = true
	}

	results := make([]parseResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range inputs {
		g.Go(func() error {
			p, err := loadAndParse(gctx, name, popts, nil)
			if err != nil {
				return err
			}
			vars := p.vars
			if fopts.active() {
				vars = filterVariables(vars, fopts.search, types)
			}
			if vars == nil {
				vars = []logparse.Variable{}
			}
			results[i] = parseResult{Source: source.DisplayName(name), Count: len(vars), Variables: vars}
			logger.Debug("input parsed", zap.String("source", name), zap.Int("variables", len(p.vars)), zap.Duration("took", p.took))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if !quiet {
		total := 0
		for _, r := range results {
			total += r.Count
		}
		_, _ = fmt.Fprintf(progressOut, "Extracted %d variables from %d input(s)\n", total, len(results))
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}

	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				_, _ = fmt.Fprintln(w)
			}
			_, _ = fmt.Fprintf(w, "==> %s <==\n", r.Source)
		}
		printVariables(w, r.Variables)
	}
	return nil
}

// filterVariables applies the dataset search and type filter to a flat list.
func filterVariables(vars []logparse.Variable, search string, types []logparse.VarType) []logparse.Variable {
	mgr := dataset.NewManager()
	mgr.SetResults(vars, "")
	var out []logparse.Variable
	for _, g := range mgr.ApplyFilter(search, types) {
		out = append(out, g.Variables...)
	}
	return out
}

const maxValueWidth = 80

func printVariables(w io.Writer, vars []logparse.Variable) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "LINE\tTYPE\tNAME\tVALUE")
	for _, v := range vars {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.Line, v.Type, v.Name, oneLine(v.Value, maxValueWidth))
	}
	_ = tw.Flush()
}

// oneLine flattens a value for table output and truncates it to width runes.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if width > 3 && len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return s
}

