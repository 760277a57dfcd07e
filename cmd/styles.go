package cmd

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorHeader  = lipgloss.Color("#8B5CF6")
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	headerStyle = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
)
