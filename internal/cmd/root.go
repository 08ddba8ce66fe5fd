// Package cmd implements the acsbot command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/rfdyn/acsbot/internal/config"
	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/rfdyn/acsbot/internal/style"
	"github.com/spf13/cobra"
)

// Command groups shown in help.
const (
	GroupBot    = "bot"
	GroupAdmin  = "admin"
	GroupConfig = "config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "acsbot",
	Short: "Chat bot for the office access-control portal",
	Long: `acsbot answers badge history questions, shows who is in the office,
tells people when their colleagues arrive or leave and calls everyone for tea.

It runs against Telegram (acsbot serve) or in the terminal (acsbot console).
Configuration is read from acsbot.toml; secrets can come from environment
variables (ACSBOT_TELEGRAM_TOKEN, ACSBOT_PORTAL_PASSWORD,
ACSBOT_ACCESS_PASSWORD, ACSBOT_SLACK_WEBHOOK).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupBot, Title: "Bot:"},
		&cobra.Group{ID: GroupAdmin, Title: "Administration:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration:"},
	)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return 1
	}
	return 0
}

// requireSubcommand is the RunE of commands that only group subcommands.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\n%s", cmd.UsageString())
	}
	return fmt.Errorf("unknown command %q for %q\n\n%s", args[0], cmd.CommandPath(), cmd.UsageString())
}

// loadConfig reads the config file and applies logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logging.Configure(cfg.Log)
	return cfg, nil
}
