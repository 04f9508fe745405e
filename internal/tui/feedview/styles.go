package feedview

import "github.com/charmbracelet/lipgloss"

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	accentColor  = lipgloss.Color("45")
	mutedColor   = lipgloss.Color("241")
	errorColor   = lipgloss.Color("196")
	ghostColor   = lipgloss.Color("236")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedCardStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 3)

	// Text styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	countStyle   = lipgloss.NewStyle().Foreground(primaryColor)
	votedStyle   = lipgloss.NewStyle().Foreground(accentColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	ghostStyle   = lipgloss.NewStyle().Foreground(ghostColor)
	spinnerStyle = lipgloss.NewStyle().Foreground(primaryColor)
	keyStyle     = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
)
