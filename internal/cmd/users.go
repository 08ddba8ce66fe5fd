package cmd

import (
	"fmt"
	"strings"

	"github.com/rfdyn/acsbot/internal/style"
	"github.com/rfdyn/acsbot/internal/user"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:     "users",
	GroupID: GroupAdmin,
	Short:   "Inspect the user store",
	Long: `Inspect the bot's user store (store.path).

Examples:
  acsbot users list    # Registered and pending users
  acsbot users dump    # Raw JSON document`,
	RunE: requireSubcommand,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all users",
	Long: `List every user known to the bot.

Shows the chat id, display name, badge id, alert setting and watched names.
Admins (access.admin_ids) are marked with an asterisk (*). Users who entered
the password but never gave a badge id are shown as pending.`,
	Args: cobra.NoArgs,
	RunE: runUsersList,
}

var usersDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the raw user document",
	Args:  cobra.NoArgs,
	RunE:  runUsersDump,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDumpCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	ids := a.store.UserIDs()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No users yet. Users register by sending /start to the bot.")
		return nil
	}

	fmt.Fprintf(out, "Users in %s:\n", a.store.Path())
	for _, id := range ids {
		rec, _ := a.store.Record(id)

		marker := "  "
		if cfg.IsAdmin(id) {
			marker = "* "
		}
		display := id
		if rec.DisplayName != "" {
			display = fmt.Sprintf("%s (%s)", id, rec.DisplayName)
		}
		if !rec.Registered() {
			fmt.Fprintf(out, "  %s%s %s\n", marker, display, style.Pending)
			continue
		}

		alerts := user.DefaultSettings().Get(user.SettingAlertAboutUsers)
		if rec.Settings != nil {
			alerts = rec.Settings.Get(user.SettingAlertAboutUsers)
		}
		fmt.Fprintf(out, "  %s%s badge %s, alerts %s", marker, display, rec.BadgeID, alerts)
		if n := len(rec.WatchedNames); n > 0 {
			fmt.Fprintf(out, ", watching %s", strings.Join(rec.WatchedNames, "; "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runUsersDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := a.store.Dump()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), style.Dim.Render("The user store is empty."))
		return nil
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
