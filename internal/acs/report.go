package acs

import (
	"errors"
	"fmt"
	"strings"
	"html/template"
)

// The portal answers history queries with free text whose trailing tokens
// are a fixed-position summary row. Nothing in the response describes that
// layout, so extraction is guarded by token counts and fails with
// ErrUnexpectedFormat rather than guessing.
var (
	// ErrUnexpectedFormat indicates the portal text does not have the
	// expected token layout.
	ErrUnexpectedFormat = errors.New("unexpected portal response format")

	// ErrNoEventsToday indicates today's history has no badge events.
	ErrNoEventsToday = errors.New("no badge events today")
)

const (
	summaryMinTokens = 5

	// stateEventIndex is the token holding the direction of today's last event.
	stateEventIndex = 18
	stateEntryWord  = "Вход"
)

// Summary is the summary row of a history query.
type Summary struct {
	From       string
	To         string
	Worked     string
	Expected   string
	Difference string
	Days       string
}

// State is today's badge state.
type State struct {
	FirstEntry string
	LastEvent  string
	InOffice   bool
	Worked     string
}

// ParseSummary extracts the summary row from history text.
func ParseSummary(text string) (Summary, error) {
	tokens := strings.Fields(text)
	if len(tokens) < summaryMinTokens {
		return Summary{}, fmt.Errorf("%w: summary has %d tokens, want at least %d",
			ErrUnexpectedFormat, len(tokens), summaryMinTokens)
	}
	n := len(tokens)
	return Summary{
		Worked:     tokens[n-5],
		Expected:   tokens[n-4],
		Difference: tokens[n-2],
		Days:       tokens[n-1],
	}, nil
}

// ParseState extracts today's state from a single-day history text.
func ParseState(text string) (State, error) {
	tokens := strings.Fields(text)
	if len(tokens) <= stateEventIndex {
		return State{}, ErrNoEventsToday
	}
	n := len(tokens)
	return State{
		FirstEntry: tokens[n-6],
		LastEvent:  tokens[n-5],
		InOffice:   tokens[stateEventIndex] == stateEntryWord,
		Worked:     tokens[n-2],
	}, nil
}

// DefaultHistoryTemplate renders a Summary.
const DefaultHistoryTemplate = `📅 <b>{{.From}}</b> — <b>{{.To}}</b>
⏱ Worked: <b>{{.Worked}}</b> of {{.Expected}}
📈 Difference: {{.Difference}}
🗓 Days: {{.Days}}`

// DefaultStateTemplate renders a State.
const DefaultStateTemplate = `{{if .InOffice}}🏢 In the office{{else}}🚶 Not in the office{{end}}
🕘 First entry: <b>{{.FirstEntry}}</b>
🕒 Last event: {{.LastEvent}}
⏱ Today: {{.Worked}}`

// NotTodayText is shown when there are no badge events today.
const NotTodayText = "🌴 Not in the office today 🌴"

// Renderer formats portal answers for chat as Telegram HTML. Portal tokens
// are escaped, so templates may use tags but data never can.
type Renderer struct {
	history *template.Template
	state   *template.Template
}

// NewRenderer parses the reply templates. Empty strings select the defaults.
func NewRenderer(historyTmpl, stateTmpl string) (*Renderer, error) {
	if historyTmpl == "" {
		historyTmpl = DefaultHistoryTemplate
	}
	if stateTmpl == "" {
		stateTmpl = DefaultStateTemplate
	}
	h, err := template.New("history").Parse(historyTmpl)
	if err != nil {
		return nil, fmt.Errorf("parsing history template: %w", err)
	}
	s, err := template.New("state").Parse(stateTmpl)
	if err != nil {
		return nil, fmt.Errorf("parsing state template: %w", err)
	}
	return &Renderer{history: h, state: s}, nil
}

// History renders a history answer for the period.
func (r *Renderer) History(text string, period Period) (string, error) {
	summary, err := ParseSummary(text)
	if err != nil {
		return "", err
	}
	summary.From = period.From.Format(DateLayout)
	summary.To = period.To.Format(DateLayout)
	return r.execute(r.history, summary)
}

// State renders today's state.
func (r *Renderer) State(text string) (string, error) {
	state, err := ParseState(text)
	if errors.Is(err, ErrNoEventsToday) {
		return NotTodayText, nil
	}
	if err != nil {
		return "", err
	}
	return r.execute(r.state, state)
}

func (r *Renderer) execute(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return b.String(), nil
}
