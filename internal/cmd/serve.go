package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rfdyn/acsbot/internal/bot"
	"github.com/rfdyn/acsbot/internal/console"
	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/rfdyn/acsbot/internal/telegram"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: GroupBot,
	Short:   "Run the bot on Telegram",
	Long: `Run the bot against the Telegram Bot API.

Updates are long-polled and handled one at a time together with the presence
poller (presence.poll_interval). Stop with Ctrl-C or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	consoleUserID string
	consoleName   string
)

var consoleCmd = &cobra.Command{
	Use:     "console",
	GroupID: GroupBot,
	Short:   "Chat with the bot in the terminal",
	Long: `Chat with the bot in the terminal instead of Telegram.

The same commands work as in the chat. Buttons are numbered and pressed with
!<n>; /poll runs a presence poll immediately. Messages the bot sends to other
users are shown with their recipient.

When stdin is not a terminal, commands are read line by line, which is handy
for scripted checks:

  printf '/start\nsecret\n5059\n/day\n' | acsbot console --as 42`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleUserID, "as", "local", "Chat user id to act as (match access.admin_ids or chai.subscribers)")
	consoleCmd.Flags().StringVar(&consoleName, "name", os.Getenv("USER"), "Display name of the console user")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	tg, err := telegram.New(cfg.Telegram)
	if err != nil {
		return err
	}
	b, err := a.newBot(tg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.NewLogger("serve")
	log.WithField("users", len(a.store.UserIDs())).Info("Serving")
	err = bot.NewRunner(b, tg.Updates(ctx), cfg.Presence.PollInterval.Duration).Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("Shutting down")
		return nil
	}
	return err
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	c := console.New(bot.Sender{ID: consoleUserID, FirstName: consoleName})
	b, err := a.newBot(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- bot.NewRunner(b, c.Updates(), cfg.Presence.PollInterval.Duration).Run(ctx)
	}()

	runErr := c.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	cancel()
	if err := <-runnerDone; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("event loop: %w", err)
	}
	return runErr
}
