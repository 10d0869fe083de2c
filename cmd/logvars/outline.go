package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logvars/internal/logparse"
)

func newOutlineCmd() *cobra.Command {
	var (
		popts      parseOptions
		failed     bool
		withLines  bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "outline <log>",
		Short: "Show test cases and their operation results as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			return runOutline(ctx, cmd.OutOrStdout(), args[0], popts, failed, withLines, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&popts.marker, "session-marker", logparse.DefaultSessionMarker, "phrase that opens a test case")
	cmd.Flags().Int64Var(&popts.maxBytes, "max-bytes", 0, "reject inputs larger than this many bytes (0 = unlimited)")
	cmd.Flags().BoolVar(&failed, "failed", false, "list only failed operations with their path")
	cmd.Flags().BoolVar(&withLines, "lines", false, "include the log lines under each node")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

// failure is a failed operation with the names of its ancestors.
type failure struct {
	Path []string `json:"path"`
	Line int      `json:"line"`
	Name string   `json:"name"`
}

func runOutline(ctx context.Context, w io.Writer, name string, popts parseOptions, failedOnly, withLines, jsonOutput bool) error {
	in, err := newOpener(popts.maxBytes).Read(ctx, name)
	if err != nil {
		return err
	}
	roots := logparse.NewClassifier(popts.marker).Outline(in.Text)
	if roots == nil {
		roots = []*logparse.Node{}
	}

	if failedOnly {
		fails := collectFailures(roots)
		if jsonOutput {
			return json.NewEncoder(w).Encode(fails)
		}
		if len(fails) == 0 {
			_, _ = fmt.Fprintln(w, "no failed operations")
			return nil
		}
		for _, f := range fails {
			_, _ = fmt.Fprintf(w, "L%-6d %s > %s\n", f.Line, strings.Join(f.Path, " > "), f.Name)
		}
		return nil
	}

	if !withLines {
		for _, r := range roots {
			r.Walk(func(n *logparse.Node) { n.Lines = nil })
		}
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(roots)
	}
	if len(roots) == 0 {
		_, _ = fmt.Fprintln(w, "no test cases found")
		return nil
	}
	for _, r := range roots {
		printNode(w, r, 0)
	}
	return nil
}

func printNode(w io.Writer, n *logparse.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Kind {
	case logparse.NodeTestCase:
		_, _ = fmt.Fprintf(w, "%sTestCase %q (L%d)\n", indent, n.Name, n.Line)
	default:
		if n.Duration != "" {
			_, _ = fmt.Fprintf(w, "%s[%s] %s (L%d, %s)\n", indent, n.Status, n.Name, n.Line, n.Duration)
		} else {
			_, _ = fmt.Fprintf(w, "%s[%s] %s (L%d)\n", indent, n.Status, n.Name, n.Line)
		}
	}
	for _, l := range n.Lines {
		_, _ = fmt.Fprintf(w, "%s  | L%d %s\n", indent, l.Number, l.Text)
	}
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

func collectFailures(roots []*logparse.Node) []failure {
	out := []failure{}
	var visit func(n *logparse.Node, path []string)
	visit = func(n *logparse.Node, path []string) {
		if n.Status == logparse.StatusFailed {
			out = append(out, failure{Path: append([]string(nil), path...), Line: n.Line, Name: n.Name})
		}
		path = append(path, n.Name)
		for _, c := range n.Children {
			visit(c, path)
		}
	}
	for _, r := range roots {
		visit(r, nil)
	}
	return out
}
