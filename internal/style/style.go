// Package style holds the lipgloss styles shared by the CLI and the console chat.
package style

import "github.com/charmbracelet/lipgloss"

var (
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	Dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// Console speakers.
	You   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	Bot   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	Relay = Dim

	// Button is an inline keyboard button the console user can press.
	Button = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)

	// Watched highlights a watch-list name in presence listings.
	Watched = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

	SuccessPrefix = Success.Render("✓")
	ErrorPrefix   = Error.Render("✗")
	WatchedPrefix = Watched.Render("★")
)

// Pending marks a user who passed the password step but has no badge yet.
var Pending = Warning.Render("pending")
