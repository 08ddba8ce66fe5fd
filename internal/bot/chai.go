package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
)

const callbackChaiPrefix = "chai_"

// Tea break responses.
const (
	chaiGo   = "go"
	chai5Min = "5min"
	chaiNo   = "no"
)

// chaiInviteTTL bounds how long tea invitations accept responses.
const chaiInviteTTL = 12 * time.Hour

type chaiResponse struct {
	button    string
	ack       string
	broadcast string
}

var chaiResponses = map[string]chaiResponse{
	chaiGo: {
		button:    "Go!",
		ack:       "✅ You said you are coming to the kitchen now",
		broadcast: "✅ %s is coming to the kitchen now!",
	},
	chai5Min: {
		button:    "In 5 min",
		ack:       "🚗 You said you will come in 5 minutes",
		broadcast: "5️⃣ %s will come in 5 minutes.",
	},
	chaiNo: {
		button:    "No, later",
		ack:       "💔 You said you are not coming",
		broadcast: "⛔ %s does not want to or cannot come now.",
	},
}

// chaiInvite is one tea break call. Responses holds the last answer per
// user so pressing the same button twice is not re-broadcast.
type chaiInvite struct {
	host      Sender
	created   time.Time
	responses map[string]string
}

func chaiKeyboard(inviteID string) Keyboard {
	button := func(kind string) Button {
		return Button{Text: chaiResponses[kind].button, Data: callbackChaiPrefix + kind + ":" + inviteID}
	}
	return Keyboard{
		Row(button(chaiGo), button(chai5Min)),
		Row(button(chaiNo)),
	}
}

// cmdChai calls subscribers for tea, or relays text to them when given.
func (b *Bot) cmdChai(ctx context.Context, m *Message, args string) error {
	subscribers := b.cfg.Chai.Subscribers
	if args != "" {
		text := m.From.Mention() + ": " + html.EscapeString(args)
		n := b.broadcast(ctx, subscribers, OutgoingMessage{Text: text, HTML: true, DisablePreview: true}, m.From.ID)
		b.log.WithField("user", m.From.ID).WithField("delivered", n).Info("Tea message relayed")
		return nil
	}

	id := b.newInvite(m.From)
	text := html.EscapeString(m.From.DisplayName()) + " calls for tea! ☕️"
	n := b.broadcast(ctx, subscribers, OutgoingMessage{Text: text, HTML: true, Keyboard: chaiKeyboard(id)}, "")
	b.log.WithField("user", m.From.ID).WithField("invite", id).WithField("delivered", n).Info("Tea break called")
	return nil
}

func (b *Bot) newInvite(host Sender) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for id, inv := range b.invites {
		if now.Sub(inv.created) > chaiInviteTTL {
			delete(b.invites, id)
		}
	}
	id := uuid.NewString()
	b.invites[id] = &chaiInvite{host: host, created: now, responses: make(map[string]string)}
	return id
}

// recordResponse stores kind as userID's answer to the invite. It reports
// whether the invite exists and whether the answer is new.
func (b *Bot) recordResponse(inviteID, userID, kind string) (found, changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invites[inviteID]
	if !ok || b.now().Sub(inv.created) > chaiInviteTTL {
		return false, false
	}
	if inv.responses[userID] == kind {
		return true, false
	}
	inv.responses[userID] = kind
	return true, true
}

func (b *Bot) chaiCallback(ctx context.Context, c *Callback) error {
	kind, inviteID, _ := strings.Cut(strings.TrimPrefix(c.Data, callbackChaiPrefix), ":")
	resp, ok := chaiResponses[kind]
	if !ok {
		return b.messenger.AnswerCallback(ctx, c.ID, "", false)
	}

	found, changed := b.recordResponse(inviteID, c.From.ID, kind)
	if !found {
		return b.messenger.AnswerCallback(ctx, c.ID, "⌛ This tea break is over", false)
	}
	if changed {
		text := fmt.Sprintf(resp.broadcast, c.From.Mention())
		b.broadcast(ctx, b.cfg.Chai.Subscribers, OutgoingMessage{Text: text, HTML: true, DisablePreview: true}, "")
	}

	// Drop the buttons from the invitation the user answered.
	if err := b.messenger.Edit(ctx, c.Message, OutgoingMessage{Text: c.MessageText}); err != nil {
		b.log.WithError(err).Debug("Removing tea buttons failed")
	}
	return b.messenger.AnswerCallback(ctx, c.ID, resp.ack, false)
}
