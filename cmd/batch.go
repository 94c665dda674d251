package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/observability"
	"github.com/xkilldash9x/riskgate/internal/orchestrator"
	"github.com/xkilldash9x/riskgate/internal/reporting"
)

func newBatchCmd(a *app) *cobra.Command {
	var noSave bool

	batchCmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Assess every company/software pair listed in a YAML or JSON file",
		Example: `  riskgate batch targets.yaml

  # targets.yaml
  - company: Acme Bank
    software: Slack
  - company: Acme Bank
    software: Zoom`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			targets, err := readTargets(args[0])
			if err != nil {
				return err
			}

			components, err := a.factory.Create(ctx, a.cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			results, runErr := components.Pipeline.RunBatch(ctx, targets)
			fmt.Fprintln(cmd.OutOrStdout(), reporting.RenderBatchTable(results))

			if a.cfg.Report().Save && !noSave {
				for _, r := range results {
					if r.Output != nil {
						saveReport(cmd, r.Output, a.cfg.Report(), logger)
					}
				}
			}

			if runErr != nil {
				return runErr
			}
			return batchExit(results)
		},
	}

	batchCmd.Flags().StringP("output", "o", "", "directory for saved reports (default outputs)")
	batchCmd.Flags().StringP("format", "f", "", "report format: json, sarif or markdown (default json)")
	batchCmd.Flags().BoolVar(&noSave, "no-save", false, "do not write report files")
	return batchCmd
}

// readTargets parses a list of {company, software} entries. YAML is a superset
// of JSON, so both formats go through the same decoder.
func readTargets(path string) ([]orchestrator.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var targets []orchestrator.Target
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("batch file %s lists no targets", path)
	}
	for i, t := range targets {
		if t.Company == "" || t.Software == "" {
			return nil, fmt.Errorf("batch entry %d needs both company and software", i+1)
		}
	}
	return targets, nil
}

// batchExit is an error if any item failed, a decline if any item was declined,
// and an approval otherwise.
func batchExit(results []orchestrator.BatchResult) error {
	declined := false
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("assessment of %s for %s failed: %w", r.Target.Software, r.Target.Company, r.Err)
		}
		if r.Output == nil {
			return fmt.Errorf("assessment of %s for %s produced no output", r.Target.Software, r.Target.Company)
		}
		if r.Output.Decision != schemas.DecisionApprove {
			declined = true
		}
	}
	if declined {
		return &exitError{code: ExitDecline}
	}
	return nil
}
