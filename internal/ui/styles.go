// Красота

package ui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("62") // Фиолетовый
	okColor      = lipgloss.Color("#04B575")
	warnColor    = lipgloss.Color("214")
	errColor     = lipgloss.Color("#FF0000")
	grayColor    = lipgloss.Color("240")

	// Баннер
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1).
			Bold(true)

	stageStyle = lipgloss.NewStyle().Bold(true).Render
	okStyle    = lipgloss.NewStyle().Foreground(okColor).Render
	warnStyle  = lipgloss.NewStyle().Foreground(warnColor).Render
	errorStyle = lipgloss.NewStyle().Foreground(errColor).Bold(true).Render
	dimStyle   = lipgloss.NewStyle().Foreground(grayColor).Render

	// Рамка итогов
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(grayColor).Width(12).Render
)
