// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

// Plot file names.
const (
	AccelerationPlot = "acceleration.png"
	PressurePlot     = "pressure.png"
)

// WritePlots draws acceleration magnitude and pressure against sample number.
// A plot whose series is empty is not written. It returns the files written.
func WritePlots(dir string, samples []sample.Sample) ([]string, error) {
	agg := stats.New()
	agg.AddAll(samples)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create %s: %w", dir, err)
	}

	var written []string
	for _, out := range []struct {
		file, title, yLabel string
		values              []float64
	}{
		{AccelerationPlot, "Acceleration", "acc (g)", agg.GLoads()},
		{PressurePlot, "Pressure", "pressure (Pa)", agg.Pressures()},
	} {
		if len(out.values) == 0 {
			monitoring.Logf("report: no data for %s, skipping", out.file)
			continue
		}
		path := filepath.Join(dir, out.file)
		if err := savePlot(path, out.title, out.yLabel, out.values); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func savePlot(path, title, yLabel string, values []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "sample"
	p.Y.Label.Text = yLabel

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("report: %s line: %w", title, err)
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}
