// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stats

import (
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

// Series describes one reduced quantity. A nil Series in a Summary means the
// subset was empty.
type Series struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Summary is the reportable reduction of a run.
type Summary struct {
	GLoad    *Series        `json:"g_load"`
	Pressure *Series        `json:"pressure"`
	Counts   map[string]int `json:"counts"`
	Samples  int            `json:"samples"`
}

func newSeries(e extremum, values []float64) *Series {
	if !e.ok {
		return nil
	}
	s := &Series{Count: len(values), Min: e.min, Max: e.max}
	if len(values) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	} else {
		s.Mean = values[0]
	}
	return s
}

// Summary snapshots the aggregator.
func (a *Aggregator) Summary() Summary {
	sum := Summary{
		GLoad:    newSeries(a.gLoad, a.gLoads),
		Pressure: newSeries(a.pressure, a.pressures),
		Counts:   make(map[string]int, len(sample.Kinds)),
	}
	for k, n := range a.Counts() {
		sum.Counts[k.String()] = n
		sum.Samples += n
	}
	return sum
}

// Reduce computes the summary of a sample slice in one pass.
func Reduce(samples []sample.Sample) Summary {
	a := New()
	a.AddAll(samples)
	return a.Summary()
}
