// Package cmd defines the titlecheck CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/titlecheck/internal/app"
	"github.com/JakeFAU/titlecheck/internal/config"
	"github.com/JakeFAU/titlecheck/internal/logging"
	"github.com/JakeFAU/titlecheck/internal/scheduler"
)

// Runner is the part of app.App the run command drives.
type Runner interface {
	Run(ctx context.Context) (scheduler.Summary, error)
	Close(ctx context.Context) error
}

// newRunner is the application factory. Tests replace it with a fake.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.Build(ctx, cfg, logger, app.Overrides{})
}

// ErrItemsFailed is returned by run --strict when any item failed.
var ErrItemsFailed = errors.New("items failed verification")

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "titlecheck",
		Short: "Verify that linked pages still carry their expected titles.",
		Long: `titlecheck opens every URL in a link list with a headless browser and checks
that the page's main heading or document title matches the expected title.
Each item lands in exactly one of the matched, failed or bot-blocked CSV sinks,
and failed items get a full-page screenshot.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	return cmd
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "titlecheck:", err)
		return 1
	}
	return 0
}
