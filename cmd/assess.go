package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/observability"
	"github.com/xkilldash9x/riskgate/internal/reporting"
)

func newAssessCmd(a *app) *cobra.Command {
	var company, software string
	var noSave bool

	assessCmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess one piece of software for one company",
		Example: `  riskgate assess --company "Acme Bank" --software Slack
  riskgate assess --company Acme --software "Visual Studio Code" --format sarif --output reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := a.factory.Create(ctx, a.cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			out, err := components.Pipeline.Run(ctx, company, software)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), reporting.RenderSummaryTable(out))
			fmt.Fprintln(cmd.OutOrStdout(), out.DecisionReasoning)

			if a.cfg.Report().Save && !noSave {
				saveReport(cmd, out, a.cfg.Report(), logger)
			}
			return exitForDecision(out.Decision)
		},
	}

	assessCmd.Flags().StringVar(&company, "company", "", "company that wants to adopt the software")
	assessCmd.Flags().StringVar(&software, "software", "", "software to assess")
	assessCmd.Flags().StringP("output", "o", "", "directory for the saved report (default outputs)")
	assessCmd.Flags().StringP("format", "f", "", "report format: json, sarif or markdown (default json)")
	assessCmd.Flags().BoolVar(&noSave, "no-save", false, "do not write a report file")
	_ = assessCmd.MarkFlagRequired("company")
	_ = assessCmd.MarkFlagRequired("software")
	return assessCmd
}

// saveReport writes the report file. A failed write does not change the decision,
// so it is logged rather than returned.
func saveReport(cmd *cobra.Command, out *schemas.AssessmentOutput, cfg config.ReportConfig, logger *zap.Logger) {
	path, err := reporting.Save(out, cfg.OutputDir, cfg.Format, Version, logger)
	if err != nil {
		logger.Error("Failed to save report", zap.String("run_id", out.RunID), zap.Error(err))
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", path)
}
