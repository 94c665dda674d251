package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/riskgate/internal/observability"
	"github.com/xkilldash9x/riskgate/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve assessments over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := a.factory.Create(ctx, a.cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			return server.New(components.Pipeline, logger).Listen(ctx, a.cfg.Server().Address)
		},
	}
	serveCmd.Flags().String("address", "", "listen address (default :3000)")
	return serveCmd
}
