// Package console is a terminal chat transport for the bot. One local user
// talks to the bot; messages the bot sends to other users are shown too so
// broadcasts and notices can be followed.
package console

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rfdyn/acsbot/internal/bot"
	"github.com/rfdyn/acsbot/internal/style"
)

// Help is printed when the console starts.
const Help = "Type commands as in the chat (/help). Press a button with !<n>, poll presence with /poll."

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// plainText turns chat HTML into terminal text.
func plainText(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}

type pressable struct {
	button bot.Button
	ref    bot.MessageRef
	text   string
}

// Console implements bot.Messenger for a terminal and turns typed lines
// into bot.Updates.
type Console struct {
	user    bot.Sender
	updates chan bot.Update
	done    chan struct{}

	mu         sync.Mutex
	emit       func(string)
	nextMsg    int
	nextButton int
	buttons    map[int]pressable
	closeOnce  sync.Once
}

// New creates a console for the local user. Output is discarded until Run
// (or SetOutput) attaches a writer.
func New(user bot.Sender) *Console {
	return &Console{
		user:    user,
		updates: make(chan bot.Update, 16),
		done:    make(chan struct{}),
		emit:    func(string) {},
		buttons: make(map[int]pressable),
	}
}

// Updates is the stream to hand to bot.NewRunner.
func (c *Console) Updates() <-chan bot.Update {
	return c.updates
}

// SetOutput writes every rendered line to w.
func (c *Console) SetOutput(w io.Writer) {
	var wmu sync.Mutex
	c.setEmit(func(line string) {
		wmu.Lock()
		defer wmu.Unlock()
		fmt.Fprintln(w, line)
	})
}

func (c *Console) setEmit(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit = fn
}

func (c *Console) print(line string) {
	c.mu.Lock()
	emit := c.emit
	c.mu.Unlock()
	emit(line)
}

// Send implements bot.Messenger.
func (c *Console) Send(ctx context.Context, chatID string, msg bot.OutgoingMessage) (bot.MessageRef, error) {
	c.mu.Lock()
	c.nextMsg++
	ref := bot.MessageRef{ChatID: chatID, MessageID: c.nextMsg}
	c.mu.Unlock()

	c.print(c.render(ref, msg, ""))
	return ref, nil
}

// Edit implements bot.Messenger.
func (c *Console) Edit(ctx context.Context, ref bot.MessageRef, msg bot.OutgoingMessage) error {
	c.mu.Lock()
	for n, p := range c.buttons {
		if p.ref == ref {
			delete(c.buttons, n)
		}
	}
	c.mu.Unlock()

	c.print(c.render(ref, msg, fmt.Sprintf("(edited #%d) ", ref.MessageID)))
	return nil
}

// AnswerCallback implements bot.Messenger.
func (c *Console) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if text == "" {
		return nil
	}
	if alert {
		c.print(style.Warning.Render("[!] ") + text)
		return nil
	}
	c.print(style.Dim.Render("« " + text + " »"))
	return nil
}

// render formats a message. Buttons of messages to the local user are
// numbered so they can be pressed.
func (c *Console) render(ref bot.MessageRef, msg bot.OutgoingMessage, prefix string) string {
	text := msg.Text
	if msg.HTML {
		text = plainText(text)
	}

	var b strings.Builder
	if ref.ChatID == c.user.ID {
		b.WriteString(style.Bot.Render("bot: "))
	} else {
		b.WriteString(style.Relay.Render("bot → " + ref.ChatID + ": "))
	}
	b.WriteString(prefix)
	b.WriteString(text)

	for _, row := range msg.Keyboard {
		labels := make([]string, 0, len(row))
		for _, btn := range row {
			if ref.ChatID != c.user.ID {
				labels = append(labels, "["+btn.Text+"]")
				continue
			}
			c.mu.Lock()
			c.nextButton++
			n := c.nextButton
			c.buttons[n] = pressable{button: btn, ref: ref, text: text}
			c.mu.Unlock()
			labels = append(labels, style.Button.Render(fmt.Sprintf("[%d] %s", n, btn.Text)))
		}
		b.WriteString("\n  " + strings.Join(labels, "  "))
	}
	return b.String()
}

// Buttons returns the numbers of the buttons that can be pressed.
func (c *Console) Buttons() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.buttons))
	for n := range c.buttons {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Parse turns a typed line into an update. ok is false for empty input and
// unknown buttons (a hint is printed for the latter).
func (c *Console) Parse(line string) (u bot.Update, ok bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return bot.Update{}, false

	case line == "/poll":
		return bot.Update{Poll: true}, true

	case strings.HasPrefix(line, "!"):
		n, err := strconv.Atoi(strings.TrimPrefix(line, "!"))
		c.mu.Lock()
		p, found := c.buttons[n]
		c.mu.Unlock()
		if err != nil || !found {
			c.print(style.Warning.Render("no button " + strings.TrimPrefix(line, "!")))
			return bot.Update{}, false
		}
		return bot.Update{Callback: &bot.Callback{
			ID:          "console-" + strconv.Itoa(n),
			From:        c.user,
			Data:        p.button.Data,
			Message:     p.ref,
			MessageText: p.text,
		}}, true
	}

	c.mu.Lock()
	c.nextMsg++
	id := c.nextMsg
	c.mu.Unlock()
	return bot.Update{Message: &bot.Message{
		Ref:  bot.MessageRef{ChatID: c.user.ID, MessageID: id},
		From: c.user,
		Text: line,
	}}, true
}

// deliver queues u for the runner unless the console has shut down.
func (c *Console) deliver(ctx context.Context, u bot.Update) bool {
	select {
	case c.updates <- u:
		return true
	case <-c.done:
	case <-ctx.Done():
	}
	return false
}

// shutdown stops accepting input. The update channel stays open; the
// runner stops on context cancellation.
func (c *Console) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}
