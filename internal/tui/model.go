package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	table "github.com/charmbracelet/bubbles/table"
	textarea "github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"cdbmap/internal/loader"
)

const DefaultExportPath = "cdbmap.svg"

type Model struct {
	width  int
	height int

	ctx     context.Context
	ld      *loader.Loader
	updates chan struct{}
	snap    loader.Snapshot

	keys        keyMap
	help        help.Model
	helpVisible bool
	spin        spinner.Model

	status     string
	exportPath string

	// query editor
	queryMode bool
	ta        textarea.Model

	// inspect popup
	inspectPopup string

	// hover state
	hovering   bool
	hoverX     float64
	hoverY     float64
	hoverShape int

	// attributes table
	showAttrs bool
	tbl       table.Model
}

type Option func(*Model)

// WithExportPath sets where the e key writes the SVG.
func WithExportPath(path string) Option {
	return func(m *Model) {
		if path != "" {
			m.exportPath = path
		}
	}
}

// New builds the terminal model around ld. Loads run with ctx and stop when
// it is cancelled.
func New(ctx context.Context, ld *loader.Loader, opts ...Option) Model {
	m := Model{
		ctx:         ctx,
		ld:          ld,
		updates:     make(chan struct{}, 1),
		snap:        ld.Snapshot(),
		keys:        defaultKeys(),
		help:        help.New(),
		helpVisible: true,
		spin:        spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(titleStyle)),
		status:      "cdbmap ready",
		exportPath:  DefaultExportPath,
		hoverShape:  -1,
	}
	for _, o := range opts {
		o(&m)
	}
	// textarea setup
	m.ta = textarea.New()
	m.ta.Placeholder = "SQL query with a the_geom column. Enter runs it, empty restores the default query, Esc cancels."
	m.ta.CharLimit = 0
	m.ta.ShowLineNumbers = false
	m.ta.SetWidth(60)
	m.ta.SetHeight(6)
	// attribute table, columns follow the loaded properties
	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)
	return m
}

// Subscribe connects the model to the loader. The returned func detaches it.
func (m Model) Subscribe() (cancel func()) {
	return m.ld.Subscribe(func(loader.Snapshot) {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), m.spin.Tick, m.load(m.ld.Load))
}

// snapshotMsg tells Update the loader committed a new snapshot.
type snapshotMsg struct{}

type exportedMsg struct {
	path string
	err  error
}

func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.updates:
			return snapshotMsg{}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// load runs fn off the update loop. Results arrive through the subscription.
func (m Model) load(fn func(context.Context) loader.Snapshot) tea.Cmd {
	return func() tea.Msg {
		fn(m.ctx)
		return nil
	}
}
