package cmd

import (
	"fmt"

	"github.com/rfdyn/acsbot/internal/acs"
	"github.com/rfdyn/acsbot/internal/presence"
	"github.com/rfdyn/acsbot/internal/style"
	"github.com/spf13/cobra"
)

var pollFor string

var pollCmd = &cobra.Command{
	Use:     "poll",
	GroupID: GroupAdmin,
	Short:   "Show who is in the office right now",
	Long: `Fetch the "now in office" list from the portal once and print it.

With --for, names on that user's watch list are highlighted, as in the
/in_office reply. No notifications are sent.`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().StringVar(&pollFor, "for", "", "Highlight names watched by this chat user id")
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	tracker := presence.NewTracker(a.portal, a.store, nil)
	listing := tracker.QueryPresenceFor(cmd.Context(), pollFor)
	if !listing.Available {
		return fmt.Errorf("fetching presence from %s: %w", cfg.Portal.PresenceURL, acs.ErrUnavailable)
	}

	out := cmd.OutOrStdout()
	if len(listing.Entries) == 0 {
		fmt.Fprintln(out, "Nobody is in the office.")
		return nil
	}
	for _, e := range listing.Entries {
		if e.Watched {
			fmt.Fprintf(out, "%s %s\n", style.WatchedPrefix, style.Watched.Render(e.Name))
			continue
		}
		fmt.Fprintf(out, "  %s\n", e.Name)
	}
	fmt.Fprintln(out, style.Dim.Render(fmt.Sprintf("%d present", len(listing.Entries))))
	return nil
}
