// Package tui — Bubble Tea представление хода прогона (--tui).
//
// Цветовые схемы задают стили строк этапов, прогресс-бара и ошибок.
package tui

import "github.com/charmbracelet/lipgloss"

// ColorScheme определяет цвета элементов TUI.
type ColorScheme struct {
	Title   lipgloss.Color // Заголовок
	Stage   lipgloss.Color // Активный этап
	Done    lipgloss.Color // Завершённый этап
	Warning lipgloss.Color // Нефатальные ошибки (экспорт)
	Error   lipgloss.Color // Фатальные ошибки
	Dim     lipgloss.Color // Сообщения коллаборатора, подсказки
}

// ColorSchemes — предустановленные схемы.
var ColorSchemes = map[string]ColorScheme{
	"default": {
		Title:   lipgloss.Color("86"),
		Stage:   lipgloss.Color("252"),
		Done:    lipgloss.Color("42"),
		Warning: lipgloss.Color("214"),
		Error:   lipgloss.Color("196"),
		Dim:     lipgloss.Color("242"),
	},
	"dracula": {
		Title:   lipgloss.Color("#bd93f9"),
		Stage:   lipgloss.Color("#f8f8f2"),
		Done:    lipgloss.Color("#50fa7b"),
		Warning: lipgloss.Color("#ffb86c"),
		Error:   lipgloss.Color("#ff5555"),
		Dim:     lipgloss.Color("#6272a4"),
	},
}

// GetColorScheme возвращает схему по имени; неизвестное имя — default.
func GetColorScheme(name string) ColorScheme {
	if scheme, ok := ColorSchemes[name]; ok {
		return scheme
	}
	return ColorSchemes["default"]
}
