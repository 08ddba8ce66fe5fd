package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/rfdyn/acsbot/internal/user"
)

const (
	callbackSettingsPrefix  = "settings_"
	callbackSettingsHelp    = "settings_help_"
	callbackSettingsDefault = "settings_default"
	callbackSettingsDummy   = "settings_dummy"
)

const settingsPanelText = "Your settings\n\nTap a title on the left to see what it does."

// settingsKeyboard lays out one row per setting: the title (shows help) and
// the current value glyph (cycles the value).
func settingsKeyboard(s user.Settings) Keyboard {
	kb := Keyboard{Row(Button{Text: "Notifications:", Data: callbackSettingsDummy})}
	for _, def := range user.Definitions {
		kb = append(kb, Row(
			Button{Text: def.Title, Data: callbackSettingsHelp + def.Name},
			Button{Text: def.EmojiFor(s.Get(def.Name)), Data: callbackSettingsPrefix + def.Name},
		))
	}
	return append(kb, Row(Button{Text: "❎ Reset settings", Data: callbackSettingsDefault}))
}

func (b *Bot) cmdSettings(ctx context.Context, m *Message, _ string) error {
	s, err := b.store.Settings(m.From.ID)
	if err != nil {
		return b.storeFailed(ctx, m, err)
	}
	return b.reply(ctx, m, OutgoingMessage{Text: settingsPanelText, Keyboard: settingsKeyboard(s)})
}

func (b *Bot) settingsCallback(ctx context.Context, c *Callback) error {
	var (
		s   user.Settings
		err error
	)
	switch {
	case c.Data == callbackSettingsDummy:
		return b.messenger.AnswerCallback(ctx, c.ID, "", false)

	case strings.HasPrefix(c.Data, callbackSettingsHelp):
		def, ok := user.LookupDefinition(strings.TrimPrefix(c.Data, callbackSettingsHelp))
		if !ok {
			return b.messenger.AnswerCallback(ctx, c.ID, "Unknown setting", false)
		}
		return b.messenger.AnswerCallback(ctx, c.ID, def.Help, true)

	case c.Data == callbackSettingsDefault:
		s, err = b.store.ResetSettings(c.From.ID)

	default:
		s, err = b.store.ToggleSetting(c.From.ID, strings.TrimPrefix(c.Data, callbackSettingsPrefix))
	}

	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return b.messenger.AnswerCallback(ctx, c.ID, "Send /start first", false)
	case errors.Is(err, user.ErrUnknownSetting):
		return b.messenger.AnswerCallback(ctx, c.ID, "Unknown setting", false)
	case err != nil:
		b.log.WithError(err).WithField("user", c.From.ID).Error("Settings update failed")
		return b.messenger.AnswerCallback(ctx, c.ID, storeFailedText, false)
	}

	if err := b.messenger.AnswerCallback(ctx, c.ID, "✅ Settings updated", false); err != nil {
		return err
	}
	return b.messenger.Edit(ctx, c.Message, OutgoingMessage{Text: settingsPanelText, Keyboard: settingsKeyboard(s)})
}
