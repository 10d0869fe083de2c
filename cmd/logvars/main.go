package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/logvars/internal/cli"
	"github.com/ppiankov/logvars/internal/config"
)

var version = "dev"

var (
	cfg        *config.Config
	logger     = zap.NewNop()
	timeoutStr string
	verbose    bool
	jsonErrors bool
)

func main() {
	if err := execute(); err != nil {
		cli.FormatError(os.Stderr, err, jsonErrors)
		os.Exit(cli.ExitCode(err))
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "logvars",
		Short:         "Extract buffer variables from TBox/Tosca logs",
		Long:          "Parse TBox/Tosca execution logs into typed buffer variables, then filter, browse, and export them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfg == nil {
				cfg = config.Load()
			}
			l, err := newLogger(verbose || cfg.Defaults.Verbose)
			if err != nil {
				return err
			}
			logger = l
			applyConfigDefaults(cmd)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&timeoutStr, "timeout", "", "timeout for remote sources and uploads (e.g. 30s)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&jsonErrors, "json-errors", false, "print errors as JSON")

	root.AddCommand(newParseCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newBrowseCmd())
	root.AddCommand(newOutlineCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newUploadCmd())
	root.AddCommand(newCompletionCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// newLogger builds the stderr logger: warnings by default, debug when verbose.
func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}
