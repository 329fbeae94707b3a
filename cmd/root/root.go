// Package root implements the command line interface for the deployer.
package root

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/webalive/deployer/app"
	"github.com/webalive/deployer/cmd/deploy"
	"github.com/webalive/deployer/cmd/list"
	"github.com/webalive/deployer/cmd/output"
	"github.com/webalive/deployer/cmd/serve"
	"github.com/webalive/deployer/cmd/show"
	"github.com/webalive/deployer/cmd/teardown"
	"github.com/webalive/deployer/cmd/version"
	"github.com/webalive/deployer/config"
	"github.com/webalive/deployer/logging"
)

func Execute() {
	if err := NewCmdRoot(config.GetDefaultDataDir()).Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCmdRoot(defaultDataDir string) *cobra.Command {
	var (
		dataDir    string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "deployer",
		Short: "Site deployment orchestrator for template-based hosting",
		Long: `Deployer provisions template-based sites on a shared host.
	It validates DNS, allocates ports, creates per-site system users,
	builds sites from templates and serves them via systemd and Caddy,
	with full state tracking and rollback on failure.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize configuration for CLI with config file and data
			// directory overrides
			cfg, err := config.NewConfigForCLI(configFile, dataDir)
			if err != nil {
				log.Fatalf("Failed to initialize configuration: %s", err)
			}

			// Initialize colors (CLI flag overrides config)
			colorDisabled := !cfg.ColorEnabled
			if output.NoColor.IsSet() {
				colorDisabled = true // --no-color flag overrides config
			}
			output.InitColors(colorDisabled)

			// Initialize logging (CLI flag overrides config)
			logLevel := cfg.LogLevel
			if logging.LogLevel.IsSet() {
				logLevel = logging.LogLevel.String()
			}
			logging.InitLogging(logLevel)

			// Initialize application with config
			if err := app.InitializeWithConfig(cfg); err != nil {
				log.Fatalf("Failed to initialize application: %s", err)
			}
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "Data directory for deployer state and the site database")
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")

	cmd.AddCommand(deploy.NewCmdDeploy())
	cmd.AddCommand(teardown.NewCmdTeardown())
	cmd.AddCommand(list.NewCmdList())
	cmd.AddCommand(show.NewCmdShow())
	cmd.AddCommand(serve.NewCmdServe())
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}
