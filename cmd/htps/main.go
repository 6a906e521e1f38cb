// Command htps drives the htps library against a toy in-process expander.
// It is a demonstration harness, not a theorem prover: the "dummy expander"
// rewrites the goal's conclusion string with fixed rules so the search loop
// has something to chew on end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/proofsearch/htps/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "htps",
		Short: "Drive a HyperTree Proof Search against a toy expander",
	}
	root.AddCommand(runCmd())
	return root
}

func runCmd() *cobra.Command {
	var configPath string
	var verbose bool
	var maxWorkers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a search to completion against the dummy expander",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			f, err := config.Load(configPath)
			if err != nil {
				return err
			}
			params, err := f.BuildParams()
			if err != nil {
				return err
			}
			root := f.BuildGoal()

			return runSearch(cmd.Context(), logger, root, params, maxWorkers)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML search config (required)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().IntVarP(&maxWorkers, "workers", "w", 4, "max concurrent dummy-expander workers per batch")
	cmd.MarkFlagRequired("config") //nolint:errcheck

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}
