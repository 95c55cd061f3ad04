package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("12")
	colorMuted   = lipgloss.Color("8")
	colorDanger  = lipgloss.Color("9")
	colorWarn    = lipgloss.Color("11")
	colorGood    = lipgloss.Color("10")
	colorSurface = lipgloss.Color("0")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	tabStyle       = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	tabActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	paidStyle   = lipgloss.NewStyle().Foreground(colorGood)

	overdueStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)
	urgentStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	forgotStyle  = lipgloss.NewStyle().Foreground(colorAccent)

	toastStyle = lipgloss.NewStyle().
			Foreground(colorWarn).
			Background(colorSurface).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(colorMuted)

	evidenceStyle = lipgloss.NewStyle().Foreground(colorMuted).PaddingLeft(4)
)
