package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartOptions controls how a scene is turned into an echarts page.
type ChartOptions struct {
	ChartID string
	Width   string
	Height  string
	// ClickEndpoint, when set, receives a JSON {"x","y"} POST with the data-space
	// coordinate of every click on the plot area.
	ClickEndpoint string
	// RefreshEvent is dispatched on the parent document after a click was posted.
	RefreshEvent string
}

// DefaultChartOptions returns the options used by the web surface.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		ChartID: "kmeans_scene",
		Width:   "900px",
		Height:  "600px",
	}
}

func boolPtr(b bool) *bool {
	return &b
}

// NewChart builds a go-echarts scatter chart for the scene. Only a draggable
// scene gets zoom and pan; otherwise every click on the plot is a placement.
func NewChart(scene Scene, o ChartOptions) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: scene.Title,
			ChartID:   o.ChartID,
			Width:     o.Width,
			Height:    o.Height,
		}),
		charts.WithTitleOpts(opts.Title{Title: scene.Title}),
		charts.WithLegendOpts(opts.Legend{
			Show: boolPtr(true),
			Top:  "5%",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      boolPtr(true),
			Formatter: "{a}: {c}",
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
	)

	if scene.Draggable {
		scatter.SetGlobalOptions(charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", XAxisIndex: 0},
			opts.DataZoom{Type: "inside", YAxisIndex: 0},
		))
	}

	for _, series := range scene.Series {
		data := make([]opts.ScatterData, 0, len(series.Points))
		for _, p := range series.Points {
			data = append(data, opts.ScatterData{
				Value:      []interface{}{p.X(), p.Y()},
				SymbolSize: series.MarkerSize,
			})
		}
		scatter.AddSeries(series.Name, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: series.Color}))
	}

	if o.ClickEndpoint != "" && o.ChartID != "" {
		scatter.AddJSFuncs(clickHandler(o))
	}
	return scatter
}

// WriteChart renders the scene as a standalone HTML page.
func WriteChart(w io.Writer, scene Scene, o ChartOptions) error {
	if err := NewChart(scene, o).Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// WriteChartFile renders the scene into outputDir/filename and returns the path.
func WriteChartFile(scene Scene, o ChartOptions, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "exports"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file %s: %w", filePath, err)
	}
	defer f.Close()

	if err := WriteChart(f, scene, o); err != nil {
		return "", err
	}
	return filePath, nil
}

// clickHandler converts zrender pixel clicks into data coordinates. go-echarts
// strips newlines from JS functions, so every statement ends with a semicolon.
func clickHandler(o ChartOptions) string {
	var js strings.Builder
	fmt.Fprintf(&js, "goecharts_%s.getZr().on('click', function (params) {", o.ChartID)
	fmt.Fprintf(&js, "var chart = goecharts_%s;", o.ChartID)
	js.WriteString("var pixel = [params.offsetX, params.offsetY];")
	js.WriteString("if (!chart.containPixel({gridIndex: 0}, pixel)) { return; }")
	js.WriteString("var point = chart.convertFromPixel({gridIndex: 0}, pixel);")
	fmt.Fprintf(&js, "fetch(%q, {", o.ClickEndpoint)
	js.WriteString("method: 'POST',")
	js.WriteString("headers: {'Content-Type': 'application/json', 'Accept': 'application/json'},")
	js.WriteString("body: JSON.stringify({x: point[0], y: point[1]})")
	js.WriteString("}).then(function (resp) { return resp.json(); }).then(function (body) {")
	js.WriteString("if (body.notice) { alert(body.notice); }")
	if o.RefreshEvent != "" {
		fmt.Fprintf(&js, "if (body.changed && window.parent) { window.parent.document.body.dispatchEvent(new Event(%q)); }", o.RefreshEvent)
	}
	js.WriteString("});")
	js.WriteString("});")
	return js.String()
}
