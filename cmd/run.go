package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(opts *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every link in the input list",
		Long: `Reads the configured link list, checks every item under the configured
concurrency cap and appends one row per item to the sink files. The command
exits non-zero when the input cannot be read, the browser cannot start, or a
row cannot be written. With --strict it also fails when any item failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChecks(cmd, opts, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any item failed")
	return cmd
}

func runChecks(cmd *cobra.Command, opts *rootOptions, strict bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("app init failed: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if cerr := runner.Close(closeCtx); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	summary, err := runner.Run(ctx)
	logger.Info("run finished",
		zap.Int("total", summary.Total),
		zap.Int("matched", summary.Matched),
		zap.Int("failed", summary.Failed),
		zap.Int("bot_blocked", summary.BotBlocked),
		zap.Int("screenshot_errors", summary.ScreenshotErrors),
		zap.Duration("duration", summary.Duration),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "checked %d: %d matched, %d failed, %d bot-blocked\n",
		summary.Total, summary.Matched, summary.Failed, summary.BotBlocked)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if strict && summary.Failed > 0 {
		return fmt.Errorf("%d %w", summary.Failed, ErrItemsFailed)
	}
	return nil
}
