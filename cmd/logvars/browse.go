package main

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/logvars/internal/browse"
	"github.com/ppiankov/logvars/internal/source"
)

func newBrowseCmd() *cobra.Command {
	var (
		popts parseOptions
		eopts exportOptions
	)

	cmd := &cobra.Command{
		Use:   "browse <log>",
		Short: "Browse extracted variables in an interactive terminal UI",
		Long: `Parse a log and open a terminal browser over its variables.

Keys: j/k move, / search, 1-6 toggle types, 0 clear types, space fold a group,
enter show details, q quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd.Context())
			defer cancel()
			mgr, _, err := loadManager(ctx, args[0], popts, eopts, filterOptions{}, nil)
			if err != nil {
				return err
			}
			return browse.Run(mgr, source.DisplayName(args[0]))
		},
	}

	addParseFlags(cmd, &popts)
	cmd.Flags().StringVar(&eopts.groupBy, "group-by", "session", "grouping: flat or session")

	return cmd
}
