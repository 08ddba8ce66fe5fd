package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/rfdyn/acsbot/internal/acs"
	"github.com/rfdyn/acsbot/internal/presence"
	"github.com/rfdyn/acsbot/internal/slack"
	"github.com/rfdyn/acsbot/internal/user"
)

const callbackInOfficeUpdate = "in_office_update"

const (
	unexpectedAnswerText = "⚠️ Could not make sense of the ACS answer."
	alertAddUsage        = "Usage: /alert_add <full name from /in_office>"
	alertEraseUsage      = "Usage: /alert_erase <full name from /in_office>"
	alertFooter          = "Use /alert_add and /alert_erase to manage the list."
)

// DefaultHelp is sent on /help and after registration.
const DefaultHelp = `<b>ACS bot</b>

/day, /week, /month, /year: hours worked in the period
/status: today's first entry and last event
/in_office: who is in the office now
/alert_add &lt;name&gt;: tell me when they come or go
/alert_erase &lt;name&gt;: stop telling me
/alert_list: my alert list
/settings: notification settings
/chai: call everyone for tea
/chai &lt;text&gt;: say something to the tea crowd`

func (b *Bot) cmdHelp(ctx context.Context, m *Message, _ string) error {
	return b.sendHelp(ctx, m)
}

func (b *Bot) sendHelp(ctx context.Context, m *Message) error {
	return b.reply(ctx, m, OutgoingMessage{Text: b.help, HTML: true, DisablePreview: true})
}

func inOfficeKeyboard() Keyboard {
	return Keyboard{Row(Button{Text: "🔄", Data: callbackInOfficeUpdate})}
}

// historyCommand returns the handler for /day, /week, /month and /year.
func (b *Bot) historyCommand(period string) func(context.Context, *Message, string) error {
	return func(ctx context.Context, m *Message, _ string) error {
		p, err := acs.PeriodFor(period, b.now())
		if err != nil {
			return err
		}
		text, err := b.portal.History(ctx, b.store.BadgeID(m.From.ID), p.From, p.To, true)
		if err != nil {
			return b.portalFailed(ctx, m, "history", err)
		}
		answer, err := b.renderer.History(text, p)
		if err != nil {
			return b.unexpectedAnswer(ctx, m, err)
		}
		return b.reply(ctx, m, OutgoingMessage{Text: answer, HTML: true})
	}
}

func (b *Bot) cmdStatus(ctx context.Context, m *Message, _ string) error {
	today, err := acs.PeriodFor(acs.PeriodDay, b.now())
	if err != nil {
		return err
	}
	text, err := b.portal.History(ctx, b.store.BadgeID(m.From.ID), today.From, today.To, false)
	if err != nil {
		return b.portalFailed(ctx, m, "status", err)
	}
	answer, err := b.renderer.State(text)
	if err != nil {
		return b.unexpectedAnswer(ctx, m, err)
	}
	return b.reply(ctx, m, OutgoingMessage{Text: answer, HTML: true})
}

func (b *Bot) portalFailed(ctx context.Context, m *Message, what string, err error) error {
	b.log.WithError(err).WithField("command", what).Warn("Portal request failed")
	b.slack.Notify(slack.EventPortalUnavailable, map[string]string{
		slack.FieldCommand: what,
		slack.FieldError:   err.Error(),
	})
	return b.reply(ctx, m, OutgoingMessage{Text: presence.UnavailableText})
}

func (b *Bot) unexpectedAnswer(ctx context.Context, m *Message, err error) error {
	if !errors.Is(err, acs.ErrUnexpectedFormat) {
		b.log.WithError(err).Error("Rendering portal answer")
	} else {
		b.log.WithError(err).Warn("Portal answer not understood")
	}
	return b.reply(ctx, m, OutgoingMessage{Text: unexpectedAnswerText})
}

func (b *Bot) cmdInOffice(ctx context.Context, m *Message, _ string) error {
	listing := b.tracker.QueryPresenceFor(ctx, m.From.ID)
	return b.reply(ctx, m, OutgoingMessage{
		Text:     listing.Render(),
		HTML:     true,
		Keyboard: inOfficeKeyboard(),
	})
}

func (b *Bot) refreshInOffice(ctx context.Context, c *Callback) error {
	listing := b.tracker.QueryPresenceFor(ctx, c.From.ID)
	err := b.messenger.Edit(ctx, c.Message, OutgoingMessage{
		Text:     listing.Render(),
		HTML:     true,
		Keyboard: inOfficeKeyboard(),
	})
	if err != nil {
		// Telegram rejects edits that change nothing; the answer still goes out.
		b.log.WithError(err).Debug("In-office edit failed")
	}
	return b.messenger.AnswerCallback(ctx, c.ID, "✅ Updated", false)
}

func (b *Bot) cmdAlertAdd(ctx context.Context, m *Message, args string) error {
	_, err := b.store.AddWatch(m.From.ID, args)
	if errors.Is(err, user.ErrEmptyName) {
		return b.reply(ctx, m, OutgoingMessage{Text: alertAddUsage})
	}
	if err != nil {
		return b.storeFailed(ctx, m, err)
	}
	return b.reply(ctx, m, OutgoingMessage{Text: fmt.Sprintf("⚙️ Alerts about %s are on!", user.NormalizeName(args))})
}

func (b *Bot) cmdAlertErase(ctx context.Context, m *Message, args string) error {
	removed, err := b.store.RemoveWatch(m.From.ID, args)
	if errors.Is(err, user.ErrEmptyName) || (err == nil && !removed) {
		return b.reply(ctx, m, OutgoingMessage{Text: alertEraseUsage})
	}
	if err != nil {
		return b.storeFailed(ctx, m, err)
	}
	return b.reply(ctx, m, OutgoingMessage{Text: fmt.Sprintf("⚙️ Alerts about %s are off!", user.NormalizeName(args))})
}

func (b *Bot) cmdAlertList(ctx context.Context, m *Message, _ string) error {
	names := b.store.Watched(m.From.ID)
	if len(names) == 0 {
		return b.reply(ctx, m, OutgoingMessage{Text: "⚙️ Your alert list is empty.\n\n" + alertFooter})
	}
	var sb strings.Builder
	sb.WriteString("⚙️ Your alert list:\n")
	for _, name := range names {
		sb.WriteString("— <code>" + html.EscapeString(name) + "</code>\n")
	}
	sb.WriteString("\n" + alertFooter)
	return b.reply(ctx, m, OutgoingMessage{Text: sb.String(), HTML: true})
}

func (b *Bot) storeFailed(ctx context.Context, m *Message, err error) error {
	b.log.WithError(err).WithField("user", m.From.ID).Error("Store update failed")
	b.slack.Notify(slack.EventStoreError, map[string]string{
		slack.FieldUserID: m.From.ID,
		slack.FieldError:  err.Error(),
	})
	return b.reply(ctx, m, OutgoingMessage{Text: storeFailedText})
}

func (b *Bot) cmdDump(ctx context.Context, m *Message, _ string) error {
	data, err := b.store.Dump()
	if err != nil {
		return b.storeFailed(ctx, m, err)
	}
	if len(data) == 0 {
		return b.reply(ctx, m, OutgoingMessage{Text: "The user store is empty."})
	}
	for _, chunk := range splitText(string(data), maxMessageLen) {
		if err := b.reply(ctx, m, OutgoingMessage{Text: chunk}); err != nil {
			return err
		}
	}
	return nil
}
