package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logvars/internal/contextutil"
)

// commandContext applies the configured timeout to ctx. Without a timeout
// the returned context only ends with its parent.
func commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	// Flag overrides config
	values := []string{timeoutStr}
	if timeoutStr == "" && cfg != nil {
		values = append(values, cfg.Defaults.Timeout)
	}
	return contextutil.WithOptionalTimeout(ctx, contextutil.ParseTimeout(values...))
}

// applyConfigDefaults sets flag values from config when the flag
// was not explicitly set on the command line. Flags > env > config > defaults.
// The config package already handles env > config, so we just need to
// check if the flag was changed and apply config if not.
func applyConfigDefaults(cmd *cobra.Command) {
	if cfg == nil {
		return
	}

	setDefault := func(name, value string) {
		if value != "" && !cmd.Flags().Changed(name) {
			if f := cmd.Flags().Lookup(name); f != nil {
				_ = f.Value.Set(value)
			}
		}
	}
	setInt := func(name string, value int) {
		if value > 0 {
			setDefault(name, strconv.Itoa(value))
		}
	}

	// parse defaults
	setDefault("session-marker", cfg.Parse.SessionMarker)
	setInt("chunk-lines", cfg.Parse.ChunkLines)
	setInt("chunk-threshold", cfg.Parse.ChunkThreshold)
	if cfg.Parse.NoFilter {
		setDefault("no-filter", "true")
	}

	// export defaults
	setDefault("format", cfg.Export.Format)
	setDefault("redact", cfg.Export.Redact)
	setDefault("redact-patterns", cfg.Export.RedactPatterns)
	setDefault("group-by", cfg.Export.GroupBy)

	// watch defaults
	setDefault("metrics-addr", cfg.Metrics.Addr)
}
