package tui

import (
	"context"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"kmeansviz/internal/api"
	"kmeansviz/internal/core"
	"kmeansviz/internal/render"
	"kmeansviz/internal/session"
)

type fakeService struct {
	steps int
}

func (f *fakeService) Initialize(ctx context.Context, sessionID string, req api.InitializeRequest) (*api.InitializeResponse, error) {
	data := []core.Point{{0, 0}, {1, 1}, {4, 4}, {5, 5}, {10, 10}}
	resp := &api.InitializeResponse{DataPoints: data}
	if req.InitMethod != api.MethodManual {
		resp.Centroids = data[:req.NumClusters]
	}
	return resp, nil
}

func (f *fakeService) Step(ctx context.Context, sessionID string, req api.IterateRequest) (*api.StepResponse, error) {
	f.steps++
	return &api.StepResponse{
		Centroids: []core.Point{{0.5, 0.5}, {6.3, 6.3}},
		Clusters:  [][]core.Point{{{0, 0}, {1, 1}}, {{4, 4}, {5, 5}, {10, 10}}},
	}, nil
}

func (f *fakeService) Converge(ctx context.Context, sessionID string, req api.IterateRequest) (*api.ConvergeResponse, error) {
	return &api.ConvergeResponse{Converged: true}, nil
}

func (f *fakeService) Reset(ctx context.Context, sessionID string) error {
	return nil
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testModel(svc session.Service) model {
	m := newModel(session.New(svc), Options{
		Methods:         []string{"random", "kmeans++", "manual"},
		DefaultMethod:   "random",
		DefaultClusters: 2,
		ExportDir:       "",
	})
	m.width, m.height = 60, 30
	return m
}

// press feeds a key and runs any resulting command to completion
func press(t *testing.T, m model, msg tea.KeyMsg) model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(model)
	if cmd != nil {
		next, _ = m.Update(cmd())
		m = next.(model)
	}
	return m
}

func TestViewportRoundTrip(t *testing.T) {
	v := newViewport(1, 3, 40, 12, core.Dataset{{-3, 2}, {7, 9}})

	for row := 0; row < v.height; row++ {
		for col := 0; col < v.width; col++ {
			p, ok := v.unproject(col+v.left, row+v.top)
			if !ok {
				t.Fatalf("Expected cell (%d,%d) inside the plot", col, row)
			}
			gotCol, gotRow, ok := v.project(p)
			if !ok || gotCol != col || gotRow != row {
				t.Fatalf("Cell (%d,%d) round-tripped to (%d,%d)", col, row, gotCol, gotRow)
			}
		}
	}
}

func TestViewportOutsideClicks(t *testing.T) {
	v := newViewport(1, 3, 40, 12, nil)

	for _, c := range [][2]int{{0, 3}, {41, 3}, {1, 2}, {1, 15}} {
		if _, ok := v.unproject(c[0], c[1]); ok {
			t.Errorf("Expected click at %v to miss the plot", c)
		}
	}
}

func TestViewportYAxisPointsUp(t *testing.T) {
	v := newViewport(0, 0, 10, 10, core.Dataset{{0, 0}, {1, 1}})

	_, lowRow, _ := v.project(core.NewPoint(0, 0))
	_, highRow, _ := v.project(core.NewPoint(0, 1))
	if highRow >= lowRow {
		t.Errorf("Expected larger y on a higher row, got low=%d high=%d", lowRow, highRow)
	}
}

func TestDrawPutsCentroidsOnTop(t *testing.T) {
	data := core.Dataset{{0, 0}, {1, 1}}
	v := newViewport(0, 0, 10, 5, data)
	lines := v.draw(render.RenderScene(data, core.CentroidSet{{0, 0}}, nil))

	if len(lines) != 5 {
		t.Fatalf("Expected 5 lines, got %d", len(lines))
	}
	all := strings.Join(lines, "\n")
	if !strings.Contains(all, "X") || !strings.Contains(all, "•") {
		t.Error("Expected both a centroid and a data marker")
	}
	if strings.Count(all, "•") != 1 {
		t.Errorf("Expected the centroid to hide the data point under it, got %d markers", strings.Count(all, "•"))
	}
}

func TestInputEditing(t *testing.T) {
	m := testModel(&fakeService{})

	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m = press(t, m, keyRunes("1"))
	m = press(t, m, keyRunes("2"))
	m = press(t, m, keyRunes("x"))
	if m.input != "12" {
		t.Errorf("Expected input 12, got %q", m.input)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.method() != "kmeans++" {
		t.Errorf("Expected kmeans++, got %s", m.method())
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.method() != "random" {
		t.Errorf("Expected method selector to wrap, got %s", m.method())
	}
}

func TestUnparsableInputDefaults(t *testing.T) {
	m := testModel(&fakeService{})
	m.input = ""

	m = press(t, m, keyRunes("n"))
	if m.snap.Target != session.DefaultClusterCount {
		t.Errorf("Expected default target %d, got %d", session.DefaultClusterCount, m.snap.Target)
	}
	if m.input != "3" {
		t.Errorf("Expected input normalized to 3, got %q", m.input)
	}
}

func TestStepKeyGatedByMode(t *testing.T) {
	svc := &fakeService{}
	m := testModel(svc)

	_, cmd := m.Update(keyRunes("s"))
	if cmd != nil {
		t.Error("Expected no command for step before initialization")
	}

	m = press(t, m, keyRunes("n"))
	if m.snap.Mode != session.ReadyToIterate {
		t.Fatalf("Expected ReadyToIterate, got %s", m.snap.Mode)
	}

	m = press(t, m, keyRunes("s"))
	if svc.steps != 1 {
		t.Errorf("Expected one step, got %d", svc.steps)
	}
	if len(m.snap.Partition) != 2 {
		t.Errorf("Expected partition of 2 groups, got %d", len(m.snap.Partition))
	}
}

func TestManualPlacementByClick(t *testing.T) {
	m := testModel(&fakeService{})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = press(t, m, keyRunes("n"))

	if m.snap.Mode != session.ManualPlacementArmed {
		t.Fatalf("Expected ManualPlacementArmed, got %s", m.snap.Mode)
	}
	if m.status != session.NoticePlaceCentroids {
		t.Errorf("Expected placement prompt, got %q", m.status)
	}

	click := func(x, y int) {
		next, _ := m.Update(tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
		m = next.(model)
	}

	v := m.viewport()
	click(0, 0) // header, not the plot
	if len(m.snap.Centroids) != 0 {
		t.Fatal("Expected clicks outside the plot to be ignored")
	}

	click(v.left+2, v.top+2)
	click(v.left+10, v.top+5)
	if m.snap.Mode != session.ReadyToIterate {
		t.Errorf("Expected ReadyToIterate after 2 clicks, got %s", m.snap.Mode)
	}
	if m.status != session.NoticePlacementComplete {
		t.Errorf("Expected completion notice, got %q", m.status)
	}

	click(v.left+4, v.top+4)
	if len(m.snap.Centroids) != 2 {
		t.Errorf("Expected extra click ignored, got %d centroids", len(m.snap.Centroids))
	}
}

func TestViewShowsControls(t *testing.T) {
	m := testModel(&fakeService{})
	view := m.View()

	if !strings.Contains(view, render.DefaultTitle) {
		t.Error("Expected title in view")
	}
	if strings.Contains(view, "[s] step") {
		t.Error("Expected step hidden before initialization")
	}

	m = press(t, m, keyRunes("n"))
	if !strings.Contains(m.View(), "[s] step") {
		t.Error("Expected step offered once ready")
	}
}

func TestExportWritesZoomableChart(t *testing.T) {
	m := testModel(&fakeService{})
	m.options.ExportDir = t.TempDir()
	m = press(t, m, keyRunes("n"))
	m = press(t, m, keyRunes("e"))

	if m.statusErr || !strings.HasPrefix(m.status, "Scene exported to ") {
		t.Fatalf("Expected export notice, got %q", m.status)
	}
	content, err := os.ReadFile(strings.TrimPrefix(m.status, "Scene exported to "))
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if !strings.Contains(string(content), render.CentroidSeriesName) || !strings.Contains(string(content), `"inside"`) {
		t.Error("Expected exported chart with centroid series and zoom")
	}
}

func TestQuit(t *testing.T) {
	m := testModel(&fakeService{})
	next, cmd := m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if !next.(model).quitting {
		t.Error("Expected model to be quitting")
	}
}
