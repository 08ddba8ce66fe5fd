// Package bot implements the chat front-end of the ACS portal: commands,
// callbacks, registration, settings, watch lists and tea breaks. It is
// transport-neutral; internal/telegram and internal/console plug in through
// Messenger and a channel of Updates.
package bot

import (
	"context"
	"html"
	"strings"
)

// Sender identifies the chat user behind an update.
type Sender struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
}

// DisplayName returns "First Last", falling back to the username and then
// the id.
func (s Sender) DisplayName() string {
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	switch {
	case name != "":
		return name
	case s.Username != "":
		return s.Username
	}
	return s.ID
}

// Mention returns an HTML link to the user.
func (s Sender) Mention() string {
	return `<a href="tg://user?id=` + html.EscapeString(s.ID) + `">` + html.EscapeString(s.DisplayName()) + `</a>`
}

// MessageRef points at a message that can later be edited.
type MessageRef struct {
	ChatID    string
	MessageID int
}

// Message is an incoming text message.
type Message struct {
	Ref  MessageRef
	From Sender
	Text string
}

// Callback is a pressed inline keyboard button.
type Callback struct {
	ID          string
	From        Sender
	Data        string
	Message     MessageRef
	MessageText string
}

// Update is one event from a transport. Exactly one event field is set.
type Update struct {
	Message  *Message
	Callback *Callback

	// Poll asks the runner for an immediate presence poll.
	Poll bool

	// Done, when set, is closed once the update has been handled.
	Done chan struct{}
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard, row by row.
type Keyboard [][]Button

// Row builds a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// OutgoingMessage is a message to send or the new content of an edited one.
type OutgoingMessage struct {
	Text string

	// HTML selects HTML parse mode.
	HTML bool

	// DisablePreview suppresses link previews.
	DisablePreview bool

	// Keyboard is attached below the message. Nil removes it on edit.
	Keyboard Keyboard
}

// Messenger is what the bot needs from a chat transport.
type Messenger interface {
	// Send delivers a message to a chat.
	Send(ctx context.Context, chatID string, msg OutgoingMessage) (MessageRef, error)

	// Edit replaces the text and keyboard of a sent message.
	Edit(ctx context.Context, ref MessageRef, msg OutgoingMessage) error

	// AnswerCallback acknowledges a button press. alert shows text as a
	// dialog instead of a toast.
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// maxMessageLen is the longest text one chat message may carry.
const maxMessageLen = 4096

// splitText cuts text into chunks of at most limit bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func splitText(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8Start(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
