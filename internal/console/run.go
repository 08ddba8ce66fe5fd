package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rfdyn/acsbot/internal/bot"
	"github.com/rfdyn/acsbot/internal/logging"
	"github.com/rfdyn/acsbot/internal/style"
	"golang.org/x/term"
)

// IsInteractive reports whether both ends are terminals.
func IsInteractive(in io.Reader, out io.Writer) bool {
	fin, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(fin.Fd())) {
		return false
	}
	fout, ok := out.(*os.File)
	return ok && term.IsTerminal(int(fout.Fd()))
}

// Run talks to the bot until input ends, the user quits or ctx is done.
// A terminal gets the full-screen chat window; anything else gets line mode.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	defer c.shutdown()
	if IsInteractive(in, out) {
		return c.runTUI(ctx, in, out)
	}
	return c.RunLines(ctx, in, out)
}

// RunLines reads one line at a time and waits for each to be handled
// before reading the next, so piped scripts produce ordered output.
func (c *Console) RunLines(ctx context.Context, in io.Reader, out io.Writer) error {
	defer c.shutdown()
	c.SetOutput(out)
	fmt.Fprintln(out, style.Dim.Render(Help))

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		u, ok := c.Parse(scanner.Text())
		if !ok {
			continue
		}
		u.Done = make(chan struct{})
		if !c.deliver(ctx, u) {
			return ctx.Err()
		}
		select {
		case <-u.Done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// logWriter forwards log lines into the chat window.
type logWriter struct {
	c *Console
}

func (w logWriter) Write(p []byte) (int, error) {
	w.c.print(style.Dim.Render(string(trimNewline(p))))
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return p
}

func (c *Console) runTUI(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string, 256)
	c.setEmit(func(line string) {
		select {
		case lines <- line:
		case <-c.done:
		}
	})
	// Log output would tear the full-screen view; show it inline instead.
	logging.SetOutput(logWriter{c: c})
	defer logging.SetOutput(os.Stderr)

	m := newModel(ctx, c, lines)
	_, err := newProgram(ctx, m, in, out).Run()
	return err
}

// submit queues a typed line from the chat window.
func (c *Console) submit(ctx context.Context, line string) (bot.Update, bool) {
	u, ok := c.Parse(line)
	if !ok {
		return bot.Update{}, false
	}
	return u, c.deliver(ctx, u)
}
