// charts renders a session snapshot as an echarts page: a heatmap of each
// cell's greedy value and a line of per-episode returns.
package charts

import (
	"fmt"
	"io"

	"gridq/session"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Render writes the full html page for the snapshot.
func Render(w io.Writer, snap session.Snapshot) error {
	page := components.NewPage()
	page.PageTitle = "gridq"
	page.AddCharts(
		valueHeatMap(snap),
		returnsLine(snap),
	)
	return page.Render(w)
}

func axisLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprint(i)
	}
	return labels
}

// HeatMapItems returns [col, row, value] triples for the known cells. Rows
// are flipped so that row zero is drawn at the top.
func HeatMapItems(snap session.Snapshot) []opts.HeatMapData {
	n := len(snap.Cells)
	items := make([]opts.HeatMapData, 0, n*n)
	for row, cells := range snap.Cells {
		for col, cv := range cells {
			if !cv.Known {
				continue
			}
			items = append(items, opts.HeatMapData{
				Name:  cv.Position.String(),
				Value: [3]interface{}{col, n - 1 - row, cv.Value},
			})
		}
	}
	return items
}

func valueHeatMap(snap session.Snapshot) *charts.HeatMap {
	n := len(snap.Cells)
	rows := axisLabels(n)
	// The y axis runs bottom-up.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "max Q(s, a)",
			Subtitle: fmt.Sprintf("mode %s, episode %d", snap.Config.Mode, snap.Episode),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "col", Data: axisLabels(n)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "row", Data: rows}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min: float32(snap.MinValue),
			Max: float32(snap.MaxValue),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#313695", "#ffffbf", "#a50026"},
			},
		}),
	)
	hm.AddSeries("value", HeatMapItems(snap))
	return hm
}

func returnsLine(snap session.Snapshot) *charts.Line {
	episodes := make([]string, len(snap.Returns))
	items := make([]opts.LineData, len(snap.Returns))
	for i, ret := range snap.Returns {
		episodes[i] = fmt.Sprint(i)
		items[i] = opts.LineData{Value: ret}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "episode returns"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
	)
	line.SetXAxis(episodes).AddSeries("return", items)
	return line
}
