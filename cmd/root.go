// Package cmd implements the riskgate command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/observability"
	"github.com/xkilldash9x/riskgate/internal/service"
)

// Process exit codes.
const (
	ExitApprove = 0
	ExitDecline = 1
	ExitError   = 2
)

// exitError carries a non-zero exit code that is not a failure, such as a DECLINE.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// exitForDecision maps a decision onto the command's return value.
func exitForDecision(d schemas.Decision) error {
	if d == schemas.DecisionApprove {
		return nil
	}
	return &exitError{code: ExitDecline}
}

// flagKeys maps command flags onto the configuration keys they override.
var flagKeys = map[string]string{
	"output":  "report.output_dir",
	"format":  "report.format",
	"address": "server.address",
}

// app carries state from PersistentPreRunE to the subcommands of one root.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	factory service.ComponentFactory
}

// NewRootCommand builds the command tree with the production component factory.
func NewRootCommand() *cobra.Command {
	return newRootCmd(service.NewComponentFactory())
}

func newRootCmd(factory service.ComponentFactory) *cobra.Command {
	a := &app{v: viper.New(), factory: factory}

	rootCmd := &cobra.Command{
		Use:           "riskgate",
		Short:         "riskgate decides whether software is safe to adopt.",
		Long:          "riskgate weighs the known vulnerabilities of a piece of software against its business criticality and returns APPROVE or DECLINE with a rationale.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/.riskgate/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "riskgate %s\n" .Version}}`)

	rootCmd.AddCommand(newAssessCmd(a))
	rootCmd.AddCommand(newBatchCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// initialize loads configuration and sets up the global logger.
func (a *app) initialize(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := loadConfig(a.v, a.cfgFile)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "riskgate"})
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger())
	observability.GetLogger().Debug("Starting riskgate", zap.String("version", Version))
	return nil
}

// loadConfig reads the config file, environment variables and defaults, in
// that order of precedence below any bound flags.
func loadConfig(v *viper.Viper, cfgFile string) (*config.Config, error) {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".riskgate"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("RISKGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return config.NewConfigFromViper(v)
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	return execute(ctx, NewRootCommand(), os.Args[1:])
}

func execute(ctx context.Context, rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	defer observability.Sync()

	var exit *exitError
	switch {
	case err == nil:
		return ExitApprove
	case errors.As(err, &exit):
		return exit.code
	default:
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return ExitError
	}
}
