package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Panel styles
var (
	StyleAnswerBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red")).
			Bold(true)

	StyleLoading = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow"))
)

// Status styles
var (
	StyleListening = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	StyleIdle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleQuestion = lipgloss.NewStyle().
			Italic(true)

	StyleMeta = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
