package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/titlecheck/internal/recorder"
	"github.com/JakeFAU/titlecheck/internal/report"
	"github.com/JakeFAU/titlecheck/internal/verify"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build an xlsx workbook from the sink files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Output.ReportPath
			}
			counts, err := report.Build(recorder.Paths{
				Matched:    cfg.Output.MatchedPath,
				Failed:     cfg.Output.FailedPath,
				BotBlocked: cfg.Output.BotBlockedPath,
			}, out)
			if err != nil {
				return fmt.Errorf("build report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d matched, %d failed, %d bot-blocked\n",
				out, counts[verify.SinkMatched], counts[verify.SinkFailed], counts[verify.SinkBotBlocked])
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "workbook path (defaults to output.report_path)")
	return cmd
}
