package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rfdyn/acsbot/internal/acs"
	"github.com/rfdyn/acsbot/internal/config"
	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/rfdyn/acsbot/internal/presence"
	"github.com/rfdyn/acsbot/internal/slack"
	"github.com/rfdyn/acsbot/internal/user"
	"github.com/sirupsen/logrus"
)

// Portal is the part of the ACS portal client the bot uses.
type Portal interface {
	presence.Source
	History(ctx context.Context, badgeID string, from, to time.Time, summary bool) (string, error)
}

// Deps are the collaborators a Bot is built from.
type Deps struct {
	Config    *config.Config
	Store     *user.Store
	Portal    Portal
	Renderer  *acs.Renderer
	Messenger Messenger

	// Slack receives admin events. May be nil.
	Slack *slack.Client

	// Now defaults to time.Now.
	Now func() time.Time
}

// Bot dispatches chat updates. Handle is meant to be called from a single
// goroutine (see Runner); the store and registrations are safe for
// concurrent use regardless.
type Bot struct {
	cfg       *config.Config
	store     *user.Store
	reg       *user.Registrations
	portal    Portal
	renderer  *acs.Renderer
	messenger Messenger
	tracker   *presence.Tracker
	slack     *slack.Client
	now       func() time.Time
	help      string
	commands  map[string]command
	log       *logrus.Entry

	mu      sync.Mutex
	invites map[string]*chaiInvite
}

type command struct {
	run func(ctx context.Context, m *Message, args string) error

	// registered commands start the registration conversation for
	// users who have not completed it.
	registered bool
	admin      bool
}

// New builds a bot from deps.
func New(deps Deps) (*Bot, error) {
	if deps.Config == nil || deps.Store == nil || deps.Portal == nil || deps.Messenger == nil {
		return nil, errors.New("bot: config, store, portal and messenger are required")
	}
	renderer := deps.Renderer
	if renderer == nil {
		var err error
		renderer, err = acs.NewRenderer(deps.Config.Templates.History, deps.Config.Templates.State)
		if err != nil {
			return nil, err
		}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	help := deps.Config.Templates.Help
	if help == "" {
		help = DefaultHelp
	}

	b := &Bot{
		cfg:       deps.Config,
		store:     deps.Store,
		reg:       user.NewRegistrations(deps.Store),
		portal:    deps.Portal,
		renderer:  renderer,
		messenger: deps.Messenger,
		slack:     deps.Slack,
		now:       now,
		help:      help,
		log:       logging.NewLogger("bot"),
		invites:   make(map[string]*chaiInvite),
	}
	b.tracker = presence.NewTracker(deps.Portal, deps.Store, b)
	b.commands = map[string]command{
		"start":       {run: b.cmdStart},
		"help":        {run: b.cmdHelp},
		"day":         {run: b.historyCommand(acs.PeriodDay), registered: true},
		"week":        {run: b.historyCommand(acs.PeriodWeek), registered: true},
		"month":       {run: b.historyCommand(acs.PeriodMonth), registered: true},
		"year":        {run: b.historyCommand(acs.PeriodYear), registered: true},
		"status":      {run: b.cmdStatus, registered: true},
		"in_office":   {run: b.cmdInOffice, registered: true},
		"alert_add":   {run: b.cmdAlertAdd, registered: true},
		"alert_erase": {run: b.cmdAlertErase, registered: true},
		"alert_list":  {run: b.cmdAlertList, registered: true},
		"settings":    {run: b.cmdSettings, registered: true},
		"chai":        {run: b.cmdChai},
		"dump":        {run: b.cmdDump, admin: true},
	}
	return b, nil
}

// Tracker returns the presence tracker the bot notifies through.
func (b *Bot) Tracker() *presence.Tracker {
	return b.tracker
}

// Registrations exposes the registration conversations.
func (b *Bot) Registrations() *user.Registrations {
	return b.reg
}

// Handle processes one update to completion.
func (b *Bot) Handle(ctx context.Context, u Update) error {
	switch {
	case u.Message != nil:
		return b.handleMessage(ctx, u.Message)
	case u.Callback != nil:
		return b.handleCallback(ctx, u.Callback)
	case u.Poll:
		_, err := b.Poll(ctx)
		return err
	}
	return nil
}

// Poll runs one presence diff and sends arrival and departure notices.
func (b *Bot) Poll(ctx context.Context) ([]presence.Notification, error) {
	sent, err := b.tracker.DiffAndNotify(ctx)
	if len(sent) > 0 {
		b.log.WithField("count", len(sent)).Info("Presence notifications sent")
	}
	return sent, err
}

// PortalUnavailable implements presence.OutageReporter. Presence polls and
// /in_office report the first failure of an outage to the admin webhook.
func (b *Bot) PortalUnavailable(ctx context.Context, err error) {
	b.slack.Notify(slack.EventPortalUnavailable, map[string]string{
		slack.FieldEndpoint: "presence",
		slack.FieldError:    err.Error(),
	})
}

// Notify implements presence.Notifier.
func (b *Bot) Notify(ctx context.Context, userID, text string) error {
	_, err := b.messenger.Send(ctx, userID, OutgoingMessage{Text: text})
	return err
}

func (b *Bot) handleMessage(ctx context.Context, m *Message) error {
	text := strings.TrimSpace(m.Text)
	log := b.log.WithField("user", m.From.ID)

	name, args, ok := parseCommand(text)
	if !ok {
		if b.reg.Pending(m.From.ID) {
			return b.continueRegistration(ctx, m, text)
		}
		return b.reply(ctx, m, OutgoingMessage{Text: "🤔 Unknown command. See /help."})
	}

	cmd, known := b.commands[name]
	if !known {
		return b.reply(ctx, m, OutgoingMessage{Text: "🤔 Unknown command. See /help."})
	}
	if name != "start" {
		b.reg.Cancel(m.From.ID)
	}
	log.WithField("command", name).Debug("Command")

	if cmd.admin && !b.cfg.IsAdmin(m.From.ID) {
		log.WithField("command", name).Warn("Admin command refused")
		return b.reply(ctx, m, OutgoingMessage{Text: "⛔ This command is for admins only."})
	}
	if cmd.registered && !b.store.IsRegistered(m.From.ID) {
		log.WithField("command", name).Info("Not registered, starting registration")
		return b.startRegistration(ctx, m)
	}
	return cmd.run(ctx, m, args)
}

func (b *Bot) handleCallback(ctx context.Context, c *Callback) error {
	switch {
	case c.Data == callbackInOfficeUpdate:
		return b.refreshInOffice(ctx, c)
	case strings.HasPrefix(c.Data, callbackSettingsPrefix):
		return b.settingsCallback(ctx, c)
	case strings.HasPrefix(c.Data, callbackChaiPrefix):
		return b.chaiCallback(ctx, c)
	}
	b.log.WithField("data", c.Data).Warn("Unknown callback")
	return b.messenger.AnswerCallback(ctx, c.ID, "", false)
}

// parseCommand splits "/cmd@bot args" into ("cmd", "args").
func parseCommand(text string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func (b *Bot) reply(ctx context.Context, m *Message, msg OutgoingMessage) error {
	_, err := b.messenger.Send(ctx, m.Ref.ChatID, msg)
	if err != nil {
		return fmt.Errorf("replying to %s: %w", m.From.ID, err)
	}
	return nil
}

// broadcast sends msg to every id except skip. Delivery is best-effort;
// failures are logged.
func (b *Bot) broadcast(ctx context.Context, ids []string, msg OutgoingMessage, skip string) int {
	sent := 0
	for _, id := range ids {
		if id == skip {
			continue
		}
		if _, err := b.messenger.Send(ctx, id, msg); err != nil {
			b.log.WithError(err).WithField("user", id).Warn("Broadcast delivery failed")
			continue
		}
		sent++
	}
	return sent
}

// notifyAdmins tells every configured admin about something.
func (b *Bot) notifyAdmins(ctx context.Context, text string) {
	b.broadcast(ctx, b.cfg.Access.AdminIDs, OutgoingMessage{Text: text, HTML: true, DisablePreview: true}, "")
}
