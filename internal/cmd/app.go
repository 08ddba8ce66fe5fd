package cmd

import (
	"fmt"

	"github.com/rfdyn/acsbot/internal/acs"
	"github.com/rfdyn/acsbot/internal/bot"
	"github.com/rfdyn/acsbot/internal/config"
	"github.com/rfdyn/acsbot/internal/slack"
	"github.com/rfdyn/acsbot/internal/user"
)

// app holds the long-lived pieces shared by the commands.
type app struct {
	cfg    *config.Config
	store  *user.Store
	portal *acs.Client
	slack  *slack.Client
}

// openApp loads the user store and builds the portal and Slack clients.
// A store that cannot be decoded is fatal.
func openApp(cfg *config.Config) (*app, error) {
	store := user.NewStore(cfg.Store.Path, cfg.Access.Password)
	if err := store.Load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("loading user store: %w", err)
	}
	return &app{
		cfg:   cfg,
		store: store,
		portal: acs.NewClient(acs.Config{
			HistoryURL:  cfg.Portal.HistoryURL,
			PresenceURL: cfg.Portal.PresenceURL,
			Login:       cfg.Portal.Login,
			Password:    cfg.Portal.Password,
			Timeout:     cfg.Portal.Timeout.Duration,
		}),
		slack: slack.NewClient(&cfg.Slack),
	}, nil
}

func (a *app) newBot(m bot.Messenger) (*bot.Bot, error) {
	renderer, err := acs.NewRenderer(a.cfg.Templates.History, a.cfg.Templates.State)
	if err != nil {
		return nil, err
	}
	return bot.New(bot.Deps{
		Config:    a.cfg,
		Store:     a.store,
		Portal:    a.portal,
		Renderer:  renderer,
		Messenger: m,
		Slack:     a.slack,
	})
}

// close flushes pending Slack posts and releases the store.
func (a *app) close() {
	a.slack.Wait()
	a.store.Close()
}
