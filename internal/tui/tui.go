// Package tui is the terminal operator surface: keyboard commands and mouse
// clicks on an ASCII scatter plot drive a session controller.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kmeansviz/internal/api"
	"kmeansviz/internal/render"
	"kmeansviz/internal/session"
)

// Options configures the terminal surface
type Options struct {
	Methods         []string
	DefaultMethod   string
	DefaultClusters int
	ExportDir       string
	Timeout         time.Duration
}

const (
	headerHeight = 2
	footerHeight = 3
	maxInputLen  = 3

	defaultWidth  = 80
	defaultHeight = 24
)

// resultMsg carries the outcome of a controller command run off the update loop
type resultMsg struct {
	action string
	notice string
	err    error
}

// model represents the state of the TUI application.
type model struct {
	ctrl    *session.Controller
	options Options

	snap      session.Snapshot
	input     string
	methodIdx int
	status    string
	statusErr bool
	busy      map[string]bool
	width     int
	height    int
	quitting  bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF7F7F"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0C4DE"))
	activeStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	plotStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder())
)

// newModel returns the initial state of the TUI model.
func newModel(ctrl *session.Controller, options Options) model {
	if len(options.Methods) == 0 {
		options.Methods = api.Methods
	}
	if options.DefaultClusters <= 0 {
		options.DefaultClusters = session.DefaultClusterCount
	}
	if options.Timeout <= 0 {
		options.Timeout = 30 * time.Second
	}

	methodIdx := 0
	for i, m := range options.Methods {
		if m == options.DefaultMethod {
			methodIdx = i
		}
	}

	return model{
		ctrl:      ctrl,
		options:   options,
		snap:      ctrl.Snapshot(),
		input:     fmt.Sprintf("%d", options.DefaultClusters),
		methodIdx: methodIdx,
		busy:      make(map[string]bool),
		width:     defaultWidth,
		height:    defaultHeight,
	}
}

// Init is the first command that will be run. We don't need any for now.
func (m model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model accordingly.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m = m.handleClick(msg.X, msg.Y)
		}

	case resultMsg:
		delete(m.busy, msg.action)
		m.snap = m.ctrl.Snapshot()
		if msg.err != nil {
			m = m.setStatus(session.Describe(msg.err), true)
		} else if msg.notice != "" {
			m = m.setStatus(msg.notice, false)
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case "tab":
		m.methodIdx = (m.methodIdx + 1) % len(m.options.Methods)
	case "n":
		if m.snap.Controls.NewDataset {
			k := session.ParseClusterCount(m.input)
			m.input = fmt.Sprintf("%d", k)
			method := m.method()
			return m.run("initialize", func(ctx context.Context) (string, error) {
				return m.ctrl.Initialize(ctx, k, method)
			})
		}
	case "s":
		if m.snap.Controls.Step {
			return m.run("step", m.ctrl.Step)
		}
	case "c":
		if m.snap.Controls.Converge {
			return m.run("converge", m.ctrl.Converge)
		}
	case "r":
		if m.snap.Controls.Reset {
			return m.run("reset", m.ctrl.Reset)
		}
	case "e":
		m = m.export()
	default:
		if len(key) == 1 && key[0] >= '0' && key[0] <= '9' && len(m.input) < maxInputLen {
			m.input += key
		}
	}
	return m, nil
}

// run marks the action busy and executes it off the update loop
func (m model) run(action string, fn func(context.Context) (string, error)) (tea.Model, tea.Cmd) {
	if m.busy[action] {
		return m, nil
	}
	busy := make(map[string]bool, len(m.busy)+1)
	for k, v := range m.busy {
		busy[k] = v
	}
	busy[action] = true
	m.busy = busy

	timeout := m.options.Timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		notice, err := fn(ctx)
		return resultMsg{action: action, notice: notice, err: err}
	}
}

// handleClick places a centroid when the click lands on the plot
func (m model) handleClick(x, y int) model {
	p, ok := m.viewport().unproject(x, y)
	if !ok {
		return m
	}

	notice, err := m.ctrl.Place(p)
	m.snap = m.ctrl.Snapshot()
	if err != nil {
		if text := session.Describe(err); text != "" {
			return m.setStatus(text, true)
		}
		return m
	}
	if notice != "" {
		return m.setStatus(notice, false)
	}
	return m.setStatus(fmt.Sprintf("Placed centroid %d of %d at %s", len(m.snap.Centroids), m.snap.Target, p), false)
}

func (m model) export() model {
	scene := render.RenderScene(m.snap.Dataset, m.snap.Centroids, m.snap.Partition)
	// Exports have no placement handler, so they can zoom and pan
	scene.Draggable = true
	filename := fmt.Sprintf("kmeans_%s.html", time.Now().Format("20060102_150405"))
	path, err := render.WriteChartFile(scene, render.DefaultChartOptions(), m.options.ExportDir, filename)
	if err != nil {
		return m.setStatus(fmt.Sprintf("Export failed: %v", err), true)
	}
	return m.setStatus("Scene exported to "+path, false)
}

func (m model) setStatus(text string, isErr bool) model {
	m.status = text
	m.statusErr = isErr
	return m
}

func (m model) method() string {
	return m.options.Methods[m.methodIdx]
}

// viewport lays the plot out below the header, inside a one-cell border
func (m model) viewport() viewport {
	width := m.width - 2
	if width < 20 {
		width = 20
	}
	height := m.height - headerHeight - footerHeight - 2
	if height < 8 {
		height = 8
	}
	return newViewport(1, headerHeight+1, width, height, m.snap.Dataset)
}

// View renders the TUI.
func (m model) View() string {
	if m.quitting {
		return "Quitting...\n"
	}

	scene := render.RenderScene(m.snap.Dataset, m.snap.Centroids, m.snap.Partition)
	plot := plotStyle.Render(strings.Join(m.viewport().draw(scene), "\n"))

	lines := []string{
		titleStyle.Render(scene.Title) + "  " + mutedStyle.Render(m.modeLine()),
		m.inputLine(),
		plot,
		m.statusLine(),
		legend(scene),
		mutedStyle.Render(m.helpLine()),
	}
	return strings.Join(lines, "\n")
}

func (m model) modeLine() string {
	line := m.snap.Mode.String()
	if m.snap.Controls.PlaceCentroids {
		line += fmt.Sprintf(" (%d/%d placed)", len(m.snap.Centroids), m.snap.Target)
	}
	if m.snap.Iterations > 0 {
		line += fmt.Sprintf(" iterations %d inertia %.3f", m.snap.Iterations, m.snap.Inertia)
	}
	if len(m.busy) > 0 {
		line += " ..."
	}
	return line
}

func (m model) inputLine() string {
	var methods []string
	for i, name := range m.options.Methods {
		if i == m.methodIdx {
			methods = append(methods, activeStyle.Render("["+name+"]"))
		} else {
			methods = append(methods, mutedStyle.Render(name))
		}
	}
	return labelStyle.Render("clusters: ") + activeStyle.Render(m.input+"_") +
		"   " + labelStyle.Render("init: ") + strings.Join(methods, " ")
}

func (m model) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return errorStyle.Render(m.status)
	}
	return infoStyle.Render(m.status)
}

func (m model) helpLine() string {
	parts := []string{"[0-9] clusters", "[tab] method"}
	toggle := func(enabled bool, label string) {
		if enabled {
			parts = append(parts, label)
		}
	}
	toggle(m.snap.Controls.NewDataset, "[n] new dataset")
	toggle(m.snap.Controls.Step, "[s] step")
	toggle(m.snap.Controls.Converge, "[c] converge")
	toggle(m.snap.Controls.Reset, "[r] reset")
	toggle(m.snap.Controls.PlaceCentroids, "[click] place centroid")
	parts = append(parts, "[e] export", "[q] quit")
	return strings.Join(parts, " | ")
}

func legend(scene render.Scene) string {
	entries := make([]string, 0, len(scene.Series))
	for _, series := range scene.Series {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(series.Color))
		entries = append(entries, style.Render(fmt.Sprintf("■ %s (%d)", series.Name, len(series.Points))))
	}
	return strings.Join(entries, "  ")
}

// StartTUI initializes and starts the Bubble Tea application.
func StartTUI(ctrl *session.Controller, options Options) error {
	p := tea.NewProgram(newModel(ctrl, options), tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
