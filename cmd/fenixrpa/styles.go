package main

import "github.com/charmbracelet/lipgloss"

// Operator-facing palette.
var (
	primaryColor     = lipgloss.Color("#101F38")
	successColor     = lipgloss.Color("#8BC34A")
	warningColor     = lipgloss.Color("#FFC107")
	destructiveColor = lipgloss.Color("#e53935")
	infoColor        = lipgloss.Color("#2196F3")
	mutedColor       = lipgloss.Color("#9E9E9E")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(infoColor)

	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(destructiveColor).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)
