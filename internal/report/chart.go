// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

// WriteChart renders an interactive HTML page with the acceleration and
// pressure series.
func WriteChart(w io.Writer, samples []sample.Sample) error {
	agg := stats.New()
	agg.AddAll(samples)

	page := components.NewPage()
	page.SetPageTitle("NovaFC flight")
	page.AddCharts(
		lineChart("Acceleration", "acc (g)", agg.GLoads()),
		lineChart("Pressure", "pressure (Pa)", agg.Pressures()),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("report: render chart: %w", err)
	}
	return nil
}

func lineChart(title, yName string, values []float64) *charts.Line {
	x := make([]int, len(values))
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		x[i] = i
		data[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("samples=%d", len(values))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, NameLocation: "middle", NameGap: 50}),
	)
	line.SetXAxis(x).AddSeries(yName, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}
