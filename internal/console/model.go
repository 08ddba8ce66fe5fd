package console

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rfdyn/acsbot/internal/style"
)

// lineMsg is one rendered line of chat output.
type lineMsg string

// model is the full-screen chat window: a scrolling transcript above a
// single-line input.
type model struct {
	ctx      context.Context
	console  *Console
	incoming <-chan string

	viewport viewport.Model
	input    textinput.Model
	lines    []string
	ready    bool
}

func newModel(ctx context.Context, c *Console, incoming <-chan string) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "/help"
	ti.CharLimit = 1024
	ti.Focus()

	return model{
		ctx:      ctx,
		console:  c,
		incoming: incoming,
		input:    ti,
		lines:    []string{style.Dim.Render(Help)},
	}
}

func newProgram(ctx context.Context, m model, in io.Reader, out io.Writer) *tea.Program {
	return tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
}

func (m model) waitForLine() tea.Cmd {
	return func() tea.Msg {
		select {
		case line := <-m.incoming:
			return lineMsg(line)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForLine())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 2
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - 3
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(line) == "" {
				break
			}
			m.append(style.You.Render("you: ") + line)
			ctx, c := m.ctx, m.console
			cmds = append(cmds, func() tea.Msg {
				c.submit(ctx, line)
				return nil
			})
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case lineMsg:
		m.append(string(msg))
		cmds = append(cmds, m.waitForLine())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) append(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

// refresh wraps the transcript to the window width and follows the tail.
func (m *model) refresh() {
	if !m.ready {
		return
	}
	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	wrapped := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		wrapped = append(wrapped, wrap.Render(l))
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "Connecting..."
	}
	return m.viewport.View() + "\n" + style.Dim.Render(strings.Repeat("─", m.viewport.Width)) + "\n" + m.input.View()
}
