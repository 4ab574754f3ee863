package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kmeansviz/internal/core"
	"kmeansviz/internal/render"
)

// viewport maps data space onto a block of terminal cells. Rows grow
// downwards, data y grows upwards.
type viewport struct {
	left, top     int
	width, height int
	min, max      core.Point
}

const boundsPadding = 0.05

func newViewport(left, top, width, height int, data core.Dataset) viewport {
	min, max, ok := core.Bounds(data)
	if !ok {
		min, max = core.NewPoint(-1, -1), core.NewPoint(1, 1)
	}

	for axis := 0; axis < 2; axis++ {
		span := max[axis] - min[axis]
		if span == 0 {
			min[axis]--
			max[axis]++
			span = 2
		}
		min[axis] -= span * boundsPadding
		max[axis] += span * boundsPadding
	}

	return viewport{
		left:   left,
		top:    top,
		width:  width,
		height: height,
		min:    min,
		max:    max,
	}
}

// project returns the plot-local cell of p
func (v viewport) project(p core.Point) (col, row int, ok bool) {
	fx := (p.X() - v.min.X()) / (v.max.X() - v.min.X())
	fy := (p.Y() - v.min.Y()) / (v.max.Y() - v.min.Y())

	col = int(math.Floor(fx * float64(v.width)))
	if col == v.width {
		col--
	}
	fromBottom := int(math.Floor(fy * float64(v.height)))
	if fromBottom == v.height {
		fromBottom--
	}
	row = v.height - 1 - fromBottom

	ok = col >= 0 && col < v.width && row >= 0 && row < v.height
	return col, row, ok
}

// unproject maps a terminal cell to the data coordinate at the cell center
func (v viewport) unproject(x, y int) (core.Point, bool) {
	col, row := x-v.left, y-v.top
	if col < 0 || col >= v.width || row < 0 || row >= v.height {
		return core.Point{}, false
	}

	fx := (float64(col) + 0.5) / float64(v.width)
	fy := (float64(v.height-1-row) + 0.5) / float64(v.height)

	return core.NewPoint(
		v.min.X()+fx*(v.max.X()-v.min.X()),
		v.min.Y()+fy*(v.max.Y()-v.min.Y()),
	), true
}

type cell struct {
	glyph rune
	color string
}

// draw renders the scene into width x height styled lines. Later series
// overwrite earlier ones, so centroids end up on top.
func (v viewport) draw(scene render.Scene) []string {
	grid := make([][]cell, v.height)
	for i := range grid {
		grid[i] = make([]cell, v.width)
	}

	for _, series := range scene.Series {
		glyph := '•'
		if series.MarkerSize >= render.CentroidSize {
			glyph = 'X'
		}
		for _, p := range series.Points {
			col, row, ok := v.project(p)
			if !ok {
				continue
			}
			grid[row][col] = cell{glyph: glyph, color: series.Color}
		}
	}

	lines := make([]string, v.height)
	for i, row := range grid {
		lines[i] = renderRow(row)
	}
	return lines
}

// renderRow styles consecutive cells of one color as a single run
func renderRow(row []cell) string {
	var b strings.Builder
	var run strings.Builder
	runColor := ""

	flush := func() {
		if run.Len() == 0 {
			return
		}
		if runColor == "" {
			b.WriteString(run.String())
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runColor)).Render(run.String()))
		}
		run.Reset()
	}

	for _, c := range row {
		if c.color != runColor {
			flush()
			runColor = c.color
		}
		if c.glyph == 0 {
			run.WriteRune(' ')
		} else {
			run.WriteRune(c.glyph)
		}
	}
	flush()
	return b.String()
}
