// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rfdyn/acsbot/internal/bot"
	"github.com/rfdyn/acsbot/internal/config"
	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/sirupsen/logrus"
)

// ErrBadChatID indicates a chat id that is not a Telegram integer id.
var ErrBadChatID = errors.New("invalid telegram chat id")

// Client implements bot.Messenger over the Bot API and produces bot.Updates
// by long polling.
type Client struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	log         *logrus.Entry
}

// New connects with the configured token. The token is checked with getMe.
func New(cfg config.TelegramConfig) (*Client, error) {
	return newClient(cfg, tgbotapi.APIEndpoint)
}

func newClient(cfg config.TelegramConfig, endpoint string) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	timeout := int(cfg.PollTimeout.Seconds())
	if timeout <= 0 {
		timeout = 60
	}
	c := &Client{
		api:         api,
		pollTimeout: timeout,
		log:         logging.NewLogger("telegram"),
	}
	c.log.WithField("bot", api.Self.UserName).Info("Connected to Telegram")
	return c, nil
}

// Username returns the bot's own username.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Updates long-polls for updates until ctx is done, then closes the
// returned channel.
func (c *Client) Updates(ctx context.Context) <-chan bot.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	raw := c.api.GetUpdatesChan(cfg)

	out := make(chan bot.Update)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-raw:
				if !ok {
					return
				}
				converted, ok := convertUpdate(u)
				if !ok {
					continue
				}
				select {
				case out <- converted:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Send implements bot.Messenger.
func (c *Client) Send(ctx context.Context, chatID string, msg bot.OutgoingMessage) (bot.MessageRef, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return bot.MessageRef{}, err
	}
	sent, err := c.api.Send(buildMessage(id, msg))
	if err != nil {
		return bot.MessageRef{}, fmt.Errorf("sending to %s: %w", chatID, err)
	}
	return bot.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Edit implements bot.Messenger.
func (c *Client) Edit(ctx context.Context, ref bot.MessageRef, msg bot.OutgoingMessage) error {
	id, err := parseChatID(ref.ChatID)
	if err != nil {
		return err
	}
	if _, err := c.api.Request(buildEdit(id, ref.MessageID, msg)); err != nil {
		return fmt.Errorf("editing message %d in %s: %w", ref.MessageID, ref.ChatID, err)
	}
	return nil
}

// AnswerCallback implements bot.Messenger.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadChatID, chatID)
	}
	return id, nil
}

func buildMessage(chatID int64, msg bot.OutgoingMessage) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	if msg.HTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	out.DisableWebPagePreview = msg.DisablePreview
	if len(msg.Keyboard) > 0 {
		out.ReplyMarkup = keyboardMarkup(msg.Keyboard)
	}
	return out
}

// buildEdit replaces text and keyboard. Telegram drops the inline keyboard
// when reply_markup is omitted.
func buildEdit(chatID int64, messageID int, msg bot.OutgoingMessage) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	if msg.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	edit.DisableWebPagePreview = msg.DisablePreview
	if len(msg.Keyboard) > 0 {
		markup := keyboardMarkup(msg.Keyboard)
		edit.ReplyMarkup = &markup
	}
	return edit
}

func keyboardMarkup(kb bot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func convertUser(u *tgbotapi.User) bot.Sender {
	if u == nil {
		return bot.Sender{}
	}
	return bot.Sender{
		ID:        strconv.FormatInt(u.ID, 10),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}

// convertUpdate maps private text messages and button presses. Everything
// else (joins, stickers, channel posts) is dropped.
func convertUpdate(u tgbotapi.Update) (bot.Update, bool) {
	switch {
	case u.Message != nil && u.Message.Text != "" && u.Message.Chat != nil:
		m := u.Message
		return bot.Update{Message: &bot.Message{
			Ref: bot.MessageRef{
				ChatID:    strconv.FormatInt(m.Chat.ID, 10),
				MessageID: m.MessageID,
			},
			From: convertUser(m.From),
			Text: m.Text,
		}}, true

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		cb := &bot.Callback{
			ID:   q.ID,
			From: convertUser(q.From),
			Data: q.Data,
		}
		if q.Message != nil && q.Message.Chat != nil {
			cb.Message = bot.MessageRef{
				ChatID:    strconv.FormatInt(q.Message.Chat.ID, 10),
				MessageID: q.Message.MessageID,
			}
			cb.MessageText = q.Message.Text
		}
		return bot.Update{Callback: cb}, true
	}
	return bot.Update{}, false
}
