package render

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"kmeansviz/internal/core"
)

func testData() core.Dataset {
	return core.Dataset{{0, 0}, {1, 1}, {5, 5}, {6, 6}}
}

func TestRenderScene_NoPartition(t *testing.T) {
	scene := RenderScene(testData(), core.CentroidSet{{0.5, 0.5}}, nil)

	if len(scene.Series) != 2 {
		t.Fatalf("Expected 2 series, got %d", len(scene.Series))
	}
	if scene.Series[0].Name != DataSeriesName || scene.Series[0].Color != DataColor {
		t.Errorf("Expected undifferentiated data series, got %+v", scene.Series[0])
	}
	if len(scene.Series[0].Points) != 4 {
		t.Errorf("Expected 4 data points, got %d", len(scene.Series[0].Points))
	}
	if scene.Title != DefaultTitle {
		t.Errorf("Expected title %q, got %q", DefaultTitle, scene.Title)
	}
	if scene.Draggable {
		t.Error("Expected dragging disabled")
	}
}

func TestRenderScene_EmptyCentroidSeriesKept(t *testing.T) {
	scene := RenderScene(testData(), nil, nil)

	centroids := scene.Centroids()
	if centroids.Name != CentroidSeriesName {
		t.Fatalf("Expected centroid series last, got %q", centroids.Name)
	}
	if centroids.Points == nil || len(centroids.Points) != 0 {
		t.Errorf("Expected empty (non-nil) centroid series, got %v", centroids.Points)
	}
	if centroids.MarkerSize <= scene.Series[0].MarkerSize {
		t.Error("Expected centroid markers larger than data markers")
	}
}

func TestRenderScene_SeriesCount(t *testing.T) {
	for groups := 0; groups <= 11; groups++ {
		partition := make(core.Partition, groups)
		centroids := make(core.CentroidSet, groups)
		for i := range partition {
			partition[i] = []core.Point{{float64(i), 0}}
			centroids[i] = core.NewPoint(float64(i), 0)
		}

		scene := RenderScene(testData(), centroids, partition)

		expected := groups
		if expected < 1 {
			expected = 1
		}
		expected++
		if len(scene.Series) != expected {
			t.Errorf("groups=%d: expected %d series, got %d", groups, expected, len(scene.Series))
		}
	}
}

func TestRenderScene_PaletteCycles(t *testing.T) {
	partition := make(core.Partition, 10)
	for i := range partition {
		partition[i] = []core.Point{{float64(i), float64(i)}}
	}

	scene := RenderScene(testData(), make(core.CentroidSet, 10), partition)

	if scene.Series[0].Color != Palette[0] {
		t.Errorf("Expected first group color %s, got %s", Palette[0], scene.Series[0].Color)
	}
	if scene.Series[8].Color != Palette[0] {
		t.Errorf("Expected group 9 to reuse %s, got %s", Palette[0], scene.Series[8].Color)
	}
	if scene.Series[9].Color != Palette[1] {
		t.Errorf("Expected group 10 to reuse %s, got %s", Palette[1], scene.Series[9].Color)
	}
	if scene.Series[0].Name != "Cluster 1" {
		t.Errorf("Expected 'Cluster 1', got %q", scene.Series[0].Name)
	}
}

func TestRenderScene_NoMemory(t *testing.T) {
	partition := core.Partition{{{0, 0}, {1, 1}}, {{5, 5}, {6, 6}}}
	first := RenderScene(testData(), core.CentroidSet{{0, 0}, {5, 5}}, partition)
	second := RenderScene(testData(), nil, nil)

	if len(first.Series) != 3 || len(second.Series) != 2 {
		t.Errorf("Expected each call to depend only on its inputs, got %d and %d series", len(first.Series), len(second.Series))
	}

	partition[0][0] = core.NewPoint(-9, -9)
	if first.Series[0].Points[0] == core.NewPoint(-9, -9) {
		t.Error("Expected scene to own its points")
	}
}

func TestSceneBounds(t *testing.T) {
	scene := RenderScene(testData(), core.CentroidSet{{-2, 10}}, nil)
	min, max, ok := scene.Bounds()
	if !ok {
		t.Fatal("Expected bounds")
	}
	if min != core.NewPoint(-2, 0) || max != core.NewPoint(6, 10) {
		t.Errorf("Expected (-2,0)-(6,10), got %v-%v", min, max)
	}
}

func TestWriteChart(t *testing.T) {
	scene := RenderScene(testData(), core.CentroidSet{{0.5, 0.5}}, nil)
	o := DefaultChartOptions()
	o.ClickEndpoint = "/api/session/centroids"
	o.RefreshEvent = "sceneChanged"

	var buf bytes.Buffer
	if err := WriteChart(&buf, scene, o); err != nil {
		t.Fatalf("WriteChart failed: %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		DefaultTitle,
		CentroidSeriesName,
		DataSeriesName,
		"goecharts_kmeans_scene",
		"convertFromPixel",
		"/api/session/centroids",
		"sceneChanged",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("Expected chart HTML to contain %q", want)
		}
	}
}

func TestWriteChart_NoClickHandler(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChart(&buf, RenderScene(testData(), nil, nil), DefaultChartOptions()); err != nil {
		t.Fatalf("WriteChart failed: %v", err)
	}
	if strings.Contains(buf.String(), "convertFromPixel") {
		t.Error("Expected no click handler without an endpoint")
	}
}

func TestWriteChart_DraggableEnablesZoom(t *testing.T) {
	scene := RenderScene(testData(), nil, nil)

	var fixed bytes.Buffer
	if err := WriteChart(&fixed, scene, DefaultChartOptions()); err != nil {
		t.Fatalf("WriteChart failed: %v", err)
	}
	if strings.Contains(fixed.String(), `"inside"`) {
		t.Error("Expected no zoom on a non-draggable scene")
	}

	scene.Draggable = true
	var zoomable bytes.Buffer
	if err := WriteChart(&zoomable, scene, DefaultChartOptions()); err != nil {
		t.Fatalf("WriteChart failed: %v", err)
	}
	if !strings.Contains(zoomable.String(), `"inside"`) {
		t.Error("Expected inside zoom on a draggable scene")
	}
}

func TestWriteChartFile(t *testing.T) {
	tmpDir := t.TempDir()
	path, err := WriteChartFile(RenderScene(testData(), nil, nil), DefaultChartOptions(), tmpDir, "scene.html")
	if err != nil {
		t.Fatalf("WriteChartFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read chart file: %v", err)
	}
	if !strings.Contains(string(content), DefaultTitle) {
		t.Error("Chart file should contain the scene title")
	}
}
