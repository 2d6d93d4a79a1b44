package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/internal/logging"
)

type rootOptions struct {
	logLevel string
	logJSON  bool
	logger   *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "stemeval",
		Short:         "Score separated stems against their originals",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.logLevel, opts.logJSON)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Emit JSON logs")

	root.AddCommand(
		newEvaluateCmd(opts),
		newCompareCmd(opts),
		newBatchCmd(opts),
		newTranscodeCmd(opts),
		newMatchVolumeCmd(opts),
	)
	return root
}
