package tui

import (
	"github.com/charmbracelet/lipgloss"

	"cdbmap/internal/loader"
)

// Styles
var (
	baseFg    = lipgloss.Color("#E6E6E6")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	accentFg  = lipgloss.Color("#3A4FB7")
	okFg      = lipgloss.Color("#10B981")
	errFg     = lipgloss.Color("#EF4444")
	borderCol = lipgloss.Color("#243141")

	appStyle   = lipgloss.NewStyle().Foreground(baseFg)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(baseDimFg)
	errorStyle = boxStyle.BorderForeground(errFg)
)

func statusStyle(s loader.Status) lipgloss.Style {
	switch s {
	case loader.Success:
		return lipgloss.NewStyle().Foreground(okFg).Bold(true)
	case loader.Error:
		return lipgloss.NewStyle().Foreground(errFg).Bold(true)
	case loader.Processing:
		return titleStyle
	}
	return dimStyle
}
