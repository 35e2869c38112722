// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

// Series file names read by the plotting tools.
const (
	GLoadFile     = "g_load.json"
	PressuresFile = "pressures.json"
)

// WriteSamplesJSON writes the samples as one JSON array.
func WriteSamplesJSON(w io.Writer, samples []sample.Sample) error {
	if samples == nil {
		samples = []sample.Sample{}
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(samples); err != nil {
		return fmt.Errorf("report: encode samples: %w", err)
	}
	return nil
}

// WriteSeries writes g_load.json (acceleration magnitudes in g) and
// pressures.json (pascals) into dir, each a flat JSON array in sample order.
func WriteSeries(dir string, samples []sample.Sample) error {
	agg := stats.New()
	agg.AddAll(samples)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create %s: %w", dir, err)
	}
	if err := writeFloats(filepath.Join(dir, GLoadFile), agg.GLoads()); err != nil {
		return err
	}
	return writeFloats(filepath.Join(dir, PressuresFile), agg.Pressures())
}

func writeFloats(path string, values []float64) error {
	if values == nil {
		values = []float64{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("report: encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
