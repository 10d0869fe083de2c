package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logvars/internal/cli"
	"github.com/ppiankov/logvars/internal/dataset"
	"github.com/ppiankov/logvars/internal/source"
)

func newStatsCmd() *cobra.Command {
	var (
		popts      parseOptions
		fopts      filterOptions
		eopts      exportOptions
		group      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats <log>",
		Short: "Summarize extracted variables by type and group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			if group != 0 {
				return runGroupCopy(ctx, cmd.OutOrStdout(), args[0], popts, fopts, eopts, group)
			}
			return runStats(ctx, cmd.OutOrStdout(), args[0], popts, fopts, eopts, jsonOutput)
		},
	}

	addParseFlags(cmd, &popts)
	addFilterFlags(cmd, &fopts)
	cmd.Flags().StringVar(&eopts.groupBy, "group-by", "flat", "grouping: flat or session")
	cmd.Flags().IntVar(&group, "group", 0, "print \"name: value\" lines for the N-th filtered group (1-based)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

type statsReport struct {
	Source string               `json:"source"`
	Stats  dataset.Stats        `json:"statistics"`
	Groups []dataset.GroupCount `json:"groups"`
	Size   dataset.SizeEstimate `json:"size"`
}

func runStats(ctx context.Context, w io.Writer, name string, popts parseOptions, fopts filterOptions, eopts exportOptions, jsonOutput bool) error {
	mgr, _, err := loadManager(ctx, name, popts, eopts, fopts, nil)
	if err != nil {
		return err
	}

	rep := statsReport{
		Source: source.DisplayName(name),
		Stats:  mgr.Statistics(),
		Groups: mgr.UniqueGroups(),
		Size:   mgr.EstimateSize(),
	}
	if rep.Groups == nil {
		rep.Groups = []dataset.GroupCount{}
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return printStats(w, rep)
}

func printStats(w io.Writer, rep statsReport) error {
	st := rep.Stats
	_, _ = fmt.Fprintf(w, "Source:     %s\n", rep.Source)
	_, _ = fmt.Fprintf(w, "Variables:  %d", st.Total)
	if st.Filtered != st.Total {
		_, _ = fmt.Fprintf(w, " (%d match filter)", st.Filtered)
	}
	_, _ = fmt.Fprintln(w)
	if st.Total > 0 {
		_, _ = fmt.Fprintf(w, "Lines:      %d-%d\n", st.MinLine, st.MaxLine)
	}
	_, _ = fmt.Fprintf(w, "Size:       %s (JSON estimate)\n", formatBytes(rep.Size.Bytes))

	if len(st.Types) > 0 {
		_, _ = fmt.Fprintln(w, "\nTypes:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		labels := make([]string, 0, len(st.Types))
		for l := range st.Types {
			labels = append(labels, l)
		}
		sort.Slice(labels, func(i, j int) bool {
			if st.Types[labels[i]] != st.Types[labels[j]] {
				return st.Types[labels[i]] > st.Types[labels[j]]
			}
			return labels[i] < labels[j]
		})
		for _, l := range labels {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\n", l, st.Types[l])
		}
		_ = tw.Flush()
	}

	if len(rep.Groups) > 0 {
		_, _ = fmt.Fprintln(w, "\nGroups:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, g := range rep.Groups {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\n", g.Name, g.Count)
		}
		_ = tw.Flush()
	}
	return nil
}

// runGroupCopy prints one filtered group as "name: value" lines.
func runGroupCopy(ctx context.Context, w io.Writer, name string, popts parseOptions, fopts filterOptions, eopts exportOptions, group int) error {
	mgr, _, err := loadManager(ctx, name, popts, eopts, fopts, nil)
	if err != nil {
		return err
	}
	filtered := mgr.Filtered()
	vars := mgr.GroupVariables(group - 1)
	if vars == nil {
		return cli.NewNotFoundError(fmt.Sprintf("group %d not found (%d groups)", group, len(filtered)))
	}
	for _, v := range vars {
		_, _ = fmt.Fprintf(w, "%s: %s\n", v.Name, v.Value)
	}
	if !popts.quiet {
		_, _ = fmt.Fprintf(progressOut, "Copied %d variables from %q\n", len(vars), filtered[group-1].Name)
	}
	return nil
}
