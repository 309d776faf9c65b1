package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/productmatch/backend/config"
	"github.com/productmatch/backend/internal/logging"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "productmatch",
		Short:         "Match product records against a catalog index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newNormalizeCmd(),
		newMatchCmd(opts),
		newBatchCmd(opts),
		newImportCmd(opts),
		newStreamCmd(opts),
	)
	return cmd
}

// load reads the configuration and builds the logger. Logs go to stderr so
// command output on stdout stays machine readable.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := logging.New(level, cfg.Server.Environment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
