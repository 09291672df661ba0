package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"cdbmap/internal/loader"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	_, _, mapWidth, mapHeight := m.mapArea()
	contentWidth := mapWidth

	// Header
	header := titleStyle.Render(" cdbmap ─ CartoDB map viewer ")
	header = lipgloss.JoinHorizontal(lipgloss.Top, header, " ", statusStyle(m.snap.Status).Render(m.snap.Status.String()))
	if vb := m.snap.ViewBox(); vb != "" {
		header += dimStyle.Render("  viewBox " + vb)
	}
	header = lipgloss.NewStyle().Width(contentWidth).Padding(0).Render(header)

	var mapView string
	switch {
	case m.showAttrs:
		// infer a reasonable width from columns
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		if colW == 0 {
			colW = min(60, contentWidth-6)
		}
		maxW := min(mapWidth, max(32, colW))
		m.tbl.SetWidth(maxW - 4)
		m.tbl.SetHeight(min(mapHeight-2, 20))
		attrsBox := boxStyle.Width(maxW).Render(m.tbl.View())
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, attrsBox)
	case m.queryMode:
		m.ta.SetWidth(min(mapWidth-4, 100))
		m.ta.SetHeight(min(mapHeight-2, 12))
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, boxStyle.Render(m.ta.View()))
	case m.snap.Status == loader.Error:
		box := errorStyle.MaxWidth(mapWidth).Render("query failed\n\n" + m.snap.ErrorText())
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, box)
	case m.snap.Loaded:
		ascii := renderMap(m.snap.Shapes, m.snap.Rings, m.snap.Index, m.snap.View.View, mapWidth, mapHeight)
		mapView = lipgloss.NewStyle().Width(mapWidth).Height(mapHeight).Render(ascii)
	default:
		msg := "no map loaded, press r"
		if m.snap.Status == loader.Processing {
			msg = m.spin.View() + " loading"
		}
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, dimStyle.Render(msg))
	}

	// inspect popup sits over the left of the map
	if m.inspectPopup != "" && !m.showAttrs && !m.queryMode {
		maxPopupW := max(20, min(48, contentWidth/2))
		box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MaxWidth(maxPopupW).Render(m.inspectPopup)
		mapView = lipgloss.JoinHorizontal(lipgloss.Top, box, lipgloss.NewStyle().MaxWidth(max(0, mapWidth-lipgloss.Width(box))).Render(mapView))
	}

	// Footer
	status := m.status
	if m.snap.Status == loader.Processing {
		status = m.spin.View() + " " + status
	}
	left := dimStyle.Render(" " + status + " ")
	coords := ""
	if m.hovering {
		coords = fmt.Sprintf("  x=%.5f y=%.5f", m.hoverX, m.hoverY)
		if m.hoverShape >= 0 && m.hoverShape < len(m.snap.Shapes) {
			coords += fmt.Sprintf("  shape %d %s", m.hoverShape+1, m.snap.Shapes[m.hoverShape].Fill)
		}
		coords = dimStyle.Render(coords + "  ")
	}
	spacerW := max(0, contentWidth-lipgloss.Width(left)-lipgloss.Width(coords))
	right := lipgloss.Place(spacerW+lipgloss.Width(coords), 1, lipgloss.Right, lipgloss.Center, coords)
	footer := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Width(contentWidth).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, left, right)),
		m.renderHelp(),
	)

	ui := lipgloss.JoinVertical(lipgloss.Left, header, mapView, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	return " " + m.help.View(m.keys)
}
