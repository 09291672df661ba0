package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"

	"cdbmap/internal/loader"
	"cdbmap/internal/render"
	"cdbmap/internal/viewport"
)

const (
	headerHeight = 1
	footerHeight = 2
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case snapshotMsg:
		m.setSnapshot(m.ld.Snapshot())
		return m, m.waitForSnapshot()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case exportedMsg:
		if msg.err != nil {
			m.status = "export error: " + msg.err.Error()
		} else {
			m.status = "exported " + msg.path
		}
	case tea.KeyMsg:
		if m.queryMode {
			return m.updateQuery(msg)
		}
		return m.updateKeys(msg)
	case tea.MouseMsg:
		m.updateHover(msg.X, msg.Y)
	}
	return m, nil
}

func (m *Model) setSnapshot(s loader.Snapshot) {
	prevGen := m.snap.Generation
	m.snap = s
	switch s.Status {
	case loader.Processing:
		m.status = "loading " + truncate(m.ld.Query(), 60)
	case loader.Success:
		m.status = fmt.Sprintf("%d shapes  %d points  %s", len(s.Shapes), s.Points, s.Duration().Round(time.Millisecond))
		if s.Generation != prevGen {
			m.inspectPopup = ""
			if m.showAttrs {
				m.refreshAttrs()
			}
		}
	case loader.Error:
		m.status = "load failed"
	}
}

func (m Model) updateQuery(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.queryMode = false
		m.ta.Blur()
		m.status = "view mode"
		return m, nil
	case "enter":
		q := strings.TrimSpace(m.ta.Value())
		m.queryMode = false
		m.ta.Blur()
		if q == "" {
			m.status = "default query"
		}
		return m, m.load(func(ctx context.Context) loader.Snapshot { return m.ld.Run(ctx, q) })
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showAttrs {
		switch {
		case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Attrs), msg.String() == "esc":
			m.showAttrs = false
			return m, nil
		}
		var cmd tea.Cmd
		m.tbl, cmd = m.tbl.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case msg.String() == "esc":
		m.inspectPopup = ""
	case key.Matches(msg, m.keys.ZoomIn):
		m.apply(viewport.OpZoomIn)
	case key.Matches(msg, m.keys.ZoomOut):
		m.apply(viewport.OpZoomOut)
	case key.Matches(msg, m.keys.Up):
		m.apply(viewport.OpMoveUp)
	case key.Matches(msg, m.keys.Down):
		m.apply(viewport.OpMoveDown)
	case key.Matches(msg, m.keys.Left):
		m.apply(viewport.OpMoveLeft)
	case key.Matches(msg, m.keys.Right):
		m.apply(viewport.OpMoveRight)
	case key.Matches(msg, m.keys.Reload):
		return m, m.load(m.ld.Load)
	case key.Matches(msg, m.keys.More):
		return m, m.load(m.ld.More)
	case key.Matches(msg, m.keys.Query):
		m.queryMode = true
		m.ta.SetValue(m.ld.Query())
		m.status = "sql editor"
		return m, m.ta.Focus()
	case key.Matches(msg, m.keys.Help):
		m.helpVisible = !m.helpVisible
	case key.Matches(msg, m.keys.Attrs):
		m.showAttrs = true
		m.refreshAttrs()
	case key.Matches(msg, m.keys.Inspect):
		m.inspect()
	case key.Matches(msg, m.keys.Export):
		return m, m.export()
	}
	return m, nil
}

func (m *Model) apply(op viewport.Op) {
	s, err := m.ld.Apply(op)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.snap = s
	m.status = "viewBox " + s.ViewBox()
}

// inspect lists the features under the center of the view.
func (m *Model) inspect() {
	if !m.snap.Loaded {
		m.inspectPopup = "no map loaded"
		return
	}
	cx, cy := m.snap.View.View.Center()
	hits := m.snap.Index.At(orb.Point{cx, cy})
	if len(hits) == 0 {
		m.inspectPopup = fmt.Sprintf("no feature at %.5f %.5f", cx, cy)
		m.status = m.inspectPopup
		return
	}
	lines := []string{fmt.Sprintf("center: %.6f %.6f", cx, cy)}
	for _, i := range hits {
		sh := m.snap.Shapes[i]
		lines = append(lines, fmt.Sprintf("shape %d  fill %s", i+1, sh.Fill))
		if sh.ID != nil {
			lines = append(lines, fmt.Sprintf("  id: %v", sh.ID))
		}
		for _, k := range sortedKeys(sh.Properties) {
			lines = append(lines, fmt.Sprintf("  %s: %s", k, formatValue(sh.Properties[k])))
		}
	}
	m.inspectPopup = strings.Join(lines, "\n")
	m.status = fmt.Sprintf("inspect: %d feature(s)", len(hits))
}

func (m Model) export() tea.Cmd {
	snap, path := m.snap, m.exportPath
	return func() tea.Msg {
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{path: path, err: err}
		}
		err = render.SVG(f, snap, render.DefaultWidth, render.DefaultHeight)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return exportedMsg{path: path, err: err}
	}
}

// mapArea is the cell rectangle the map is drawn into, matching View.
func (m Model) mapArea() (x, y, w, h int) {
	h = max(4, m.height-headerHeight-footerHeight)
	w = max(10, m.width)
	return 0, headerHeight, w, h
}

func (m *Model) updateHover(cx, cy int) {
	ox, oy, w, h := m.mapArea()
	if cx < ox || cx >= ox+w || cy < oy || cy >= oy+h || !m.snap.Loaded {
		m.hovering = false
		return
	}
	x, y, ok := cellToMap(m.snap.View.View, cx-ox, cy-oy, w, h)
	if !ok {
		m.hovering = false
		return
	}
	m.hovering = true
	m.hoverX, m.hoverY = x, y
	m.hoverShape = -1
	if hits := m.snap.Index.At(orb.Point{x, y}); len(hits) > 0 {
		m.hoverShape = hits[0]
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
