package render

import (
	"fmt"

	"kmeansviz/internal/core"
)

// Palette is cycled by group index when a partition has more groups than colors.
var Palette = []string{
	"#FF7F7F", "#FFA07A", "#D3D3D3", "#B0C4DE",
	"#FFE4E1", "#98FB98", "#ADD8E6", "#F08080",
}

const (
	// DefaultTitle is the chart title of every scene
	DefaultTitle = "KMeans Clustering Data"

	DataSeriesName     = "Data Points"
	CentroidSeriesName = "Centroids"

	DataColor     = "#A9A9A9"
	CentroidColor = "#FF0000"

	PointSize    = 6
	CentroidSize = 12
)

// Series is one visual layer of a scene.
type Series struct {
	Name       string       `json:"name"`
	Color      string       `json:"color"`
	MarkerSize int          `json:"marker_size"`
	Points     []core.Point `json:"points"`
}

// Scene describes a full redraw of the plot. The centroid series is always last.
type Scene struct {
	Title     string   `json:"title"`
	Draggable bool     `json:"draggable"`
	Series    []Series `json:"series"`
}

// RenderScene builds the scene for the given state. With a partition it emits one
// series per group, otherwise a single series for the whole dataset. The
// centroid series is always present, possibly empty, so redraws keep the same
// series identity.
func RenderScene(data core.Dataset, centroids core.CentroidSet, partition core.Partition) Scene {
	scene := Scene{
		Title:     DefaultTitle,
		Draggable: false,
		Series:    make([]Series, 0, len(partition)+2),
	}

	if len(partition) > 0 {
		for i, group := range partition {
			scene.Series = append(scene.Series, Series{
				Name:       fmt.Sprintf("Cluster %d", i+1),
				Color:      GroupColor(i),
				MarkerSize: PointSize,
				Points:     copyPoints(group),
			})
		}
	} else {
		scene.Series = append(scene.Series, Series{
			Name:       DataSeriesName,
			Color:      DataColor,
			MarkerSize: PointSize,
			Points:     copyPoints(data),
		})
	}

	scene.Series = append(scene.Series, Series{
		Name:       CentroidSeriesName,
		Color:      CentroidColor,
		MarkerSize: CentroidSize,
		Points:     copyPoints(centroids),
	})

	return scene
}

// GroupColor returns the palette color of group i
func GroupColor(i int) string {
	return Palette[i%len(Palette)]
}

// Centroids returns the centroid series.
func (s Scene) Centroids() Series {
	return s.Series[len(s.Series)-1]
}

// Bounds is the bounding box over every series.
func (s Scene) Bounds() (min, max core.Point, ok bool) {
	sets := make([][]core.Point, len(s.Series))
	for i, series := range s.Series {
		sets[i] = series.Points
	}
	return core.Bounds(sets...)
}

func copyPoints(points []core.Point) []core.Point {
	out := make([]core.Point, len(points))
	copy(out, points)
	return out
}
