// cmd/koifarm/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appcfg "koifarm/internal/infra/config"
	"koifarm/internal/infra/logging"
)

// app carries what every subcommand shares.
type app struct {
	cfg    *appcfg.Config
	logger *zap.Logger

	verbose    bool
	policyFile string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "koifarm",
		Short:         "Koi farm storefront: cart service and access control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = appcfg.Load()
			if cmd.Flags().Changed("policy") {
				a.cfg.AccessPolicyFile = a.policyFile
			}

			level := a.cfg.LogLevel
			if a.verbose {
				level = zapcore.DebugLevel.String()
			}
			logger, err := logging.New(a.cfg.IsLocal(), level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.policyFile, "policy", "", "Access policy YAML file (default: ACCESS_POLICY_FILE)")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newAccessCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
