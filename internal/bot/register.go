package bot

import (
	"context"
	"errors"
	"html"

	"github.com/rfdyn/acsbot/internal/slack"
	"github.com/rfdyn/acsbot/internal/user"
)

const (
	askPasswordText   = "❗️ <b>Authorization</b>\n\nEnter the password:"
	wrongPasswordText = "⛔ Wrong password!\n\nSend /start to try again."
	passwordOKText    = "✅ Password accepted!"
	badBadgeText      = "⚠️ That is not a number. Send your badge number, digits only."
	savedText         = "✅ Saved"
	storeFailedText   = "⚠️ Could not save your data, try again later."
)

func (b *Bot) cmdStart(ctx context.Context, m *Message, _ string) error {
	return b.startRegistration(ctx, m)
}

func (b *Bot) startRegistration(ctx context.Context, m *Message) error {
	switch b.reg.Start(m.From.ID) {
	case user.StateAwaitingBadgeID:
		return b.askBadge(ctx, m)
	default:
		return b.reply(ctx, m, OutgoingMessage{Text: askPasswordText, HTML: true})
	}
}

func (b *Bot) askBadge(ctx context.Context, m *Message) error {
	text := "❓ Your number in the <a href=\"" + html.EscapeString(b.cfg.Access.RegistrationLink) + "\">ACS</a>?\n" +
		"For example: 5059, 5060 and so on."
	return b.reply(ctx, m, OutgoingMessage{Text: text, HTML: true, DisablePreview: true})
}

// continueRegistration feeds a plain-text message into the pending
// registration conversation.
func (b *Bot) continueRegistration(ctx context.Context, m *Message, text string) error {
	log := b.log.WithField("user", m.From.ID)
	state, err := b.reg.Submit(m.From.ID, m.From.DisplayName(), text)

	switch {
	case errors.Is(err, user.ErrWrongPassword):
		log.Info("Wrong access password")
		b.slack.Notify(slack.EventAuthFailed, map[string]string{
			slack.FieldUserID: m.From.ID,
			slack.FieldName:   m.From.DisplayName(),
		})
		return b.reply(ctx, m, OutgoingMessage{Text: wrongPasswordText})

	case errors.Is(err, user.ErrInvalidBadgeID):
		return b.reply(ctx, m, OutgoingMessage{Text: badBadgeText})

	case err != nil:
		log.WithError(err).Error("Registration failed")
		b.slack.Notify(slack.EventStoreError, map[string]string{
			slack.FieldUserID: m.From.ID,
			slack.FieldError:  err.Error(),
		})
		return b.reply(ctx, m, OutgoingMessage{Text: storeFailedText})
	}

	switch state {
	case user.StateAwaitingBadgeID:
		log.Info("User authenticated")
		if err := b.reply(ctx, m, OutgoingMessage{Text: passwordOKText}); err != nil {
			return err
		}
		b.notifyAdmins(ctx, "✨ New user: "+m.From.Mention())
		return b.askBadge(ctx, m)

	case user.StateComplete:
		badge := b.store.BadgeID(m.From.ID)
		log.WithField("badge", badge).Info("User registered")
		b.slack.Notify(slack.EventUserRegistered, map[string]string{
			slack.FieldUserID: m.From.ID,
			slack.FieldName:   m.From.DisplayName(),
			slack.FieldBadge:  badge,
		})
		if err := b.reply(ctx, m, OutgoingMessage{Text: savedText}); err != nil {
			return err
		}
		return b.sendHelp(ctx, m)
	}
	return nil
}
