// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stats reduces decoded samples to the flight summary: extrema of
// acceleration magnitude and barometric pressure.
package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

// ErrEmpty is returned by an extremum query when no sample of the relevant
// kind has been seen. It is never reported as a zero value.
var ErrEmpty = errors.New("stats: no samples")

// extremum tracks min and max of one series. ok is false until the first value.
type extremum struct {
	ok       bool
	min, max float64
}

func (e *extremum) add(v float64) {
	if !e.ok {
		e.ok, e.min, e.max = true, v, v
		return
	}
	e.min = math.Min(e.min, v)
	e.max = math.Max(e.max, v)
}

func (e *extremum) merge(o extremum) {
	if !o.ok {
		return
	}
	e.add(o.min)
	e.add(o.max)
}

// Aggregator is fed samples incrementally. The reduction does not depend on
// sample order, so aggregators built over disjoint page sets can be merged.
// Not safe for concurrent use.
type Aggregator struct {
	gLoad    extremum
	pressure extremum
	counts   map[sample.Kind]int

	// retained series for mean and standard deviation
	gLoads    []float64
	pressures []float64
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{counts: make(map[sample.Kind]int)}
}

// Add folds one sample into the running statistics.
func (a *Aggregator) Add(s sample.Sample) {
	if a.counts == nil {
		a.counts = make(map[sample.Kind]int)
	}
	switch d := s.Data.(type) {
	case sample.HighGAccelerometer:
		m := d.Magnitude()
		a.gLoad.add(m)
		a.gLoads = append(a.gLoads, m)
	case sample.Barometer:
		a.pressure.add(d.Pressure)
		a.pressures = append(a.pressures, d.Pressure)
	case sample.Gyro:
	default:
		panic(fmt.Sprintf("stats: unhandled sample kind %T", s.Data))
	}
	a.counts[s.Kind()]++
}

// AddAll folds a slice of samples.
func (a *Aggregator) AddAll(samples []sample.Sample) {
	for _, s := range samples {
		a.Add(s)
	}
}

// Merge folds another aggregator's state into a. Series from o are appended
// after a's own.
func (a *Aggregator) Merge(o *Aggregator) {
	if o == nil {
		return
	}
	if a.counts == nil {
		a.counts = make(map[sample.Kind]int)
	}
	a.gLoad.merge(o.gLoad)
	a.pressure.merge(o.pressure)
	for k, n := range o.counts {
		a.counts[k] += n
	}
	a.gLoads = append(a.gLoads, o.gLoads...)
	a.pressures = append(a.pressures, o.pressures...)
}

// MaxAccelMagnitude is the largest sqrt(x²+y²+z²) over accelerometer samples.
func (a *Aggregator) MaxAccelMagnitude() (float64, error) {
	if !a.gLoad.ok {
		return 0, fmt.Errorf("max acceleration: %w", ErrEmpty)
	}
	return a.gLoad.max, nil
}

// MinAccelMagnitude is the smallest sqrt(x²+y²+z²) over accelerometer samples.
func (a *Aggregator) MinAccelMagnitude() (float64, error) {
	if !a.gLoad.ok {
		return 0, fmt.Errorf("min acceleration: %w", ErrEmpty)
	}
	return a.gLoad.min, nil
}

// MaxPressure is the largest barometer pressure in pascals.
func (a *Aggregator) MaxPressure() (float64, error) {
	if !a.pressure.ok {
		return 0, fmt.Errorf("max pressure: %w", ErrEmpty)
	}
	return a.pressure.max, nil
}

// MinPressure is the smallest barometer pressure in pascals.
func (a *Aggregator) MinPressure() (float64, error) {
	if !a.pressure.ok {
		return 0, fmt.Errorf("min pressure: %w", ErrEmpty)
	}
	return a.pressure.min, nil
}

// Counts returns the number of samples seen per kind. Every known kind is
// present in the map, zero when absent.
func (a *Aggregator) Counts() map[sample.Kind]int {
	out := make(map[sample.Kind]int, len(sample.Kinds))
	for _, k := range sample.Kinds {
		out[k] = a.counts[k]
	}
	return out
}

// GLoads returns a copy of the acceleration magnitudes in feed order.
func (a *Aggregator) GLoads() []float64 {
	return append([]float64(nil), a.gLoads...)
}

// Pressures returns a copy of the pressures in feed order.
func (a *Aggregator) Pressures() []float64 {
	return append([]float64(nil), a.pressures...)
}
