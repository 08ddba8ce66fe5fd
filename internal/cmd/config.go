package cmd

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/rfdyn/acsbot/internal/style"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupConfig,
	Short:   "Show or check the configuration",
	RunE:    requireSubcommand,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and environment overrides
are applied, as TOML. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configCheckConsole bool

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Check that every value the bot needs is present.

The Telegram token is not required with --console.`,
	Args: cobra.NoArgs,
	RunE: runConfigCheck,
}

func init() {
	configCheckCmd.Flags().BoolVar(&configCheckConsole, "console", false, "Check for the console transport")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCheckCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg.Redacted())
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(!configCheckConsole); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid\n", style.SuccessPrefix, configPath)
	return nil
}
