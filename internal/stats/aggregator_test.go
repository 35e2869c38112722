// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

func accel(x, y, z float64) sample.Sample {
	return sample.New(sample.HighGAccelerometer{X: x, Y: y, Z: z})
}

func baro(p float64) sample.Sample {
	return sample.New(sample.Barometer{Temperature: 290, Pressure: p})
}

func gyro() sample.Sample { return sample.New(sample.Gyro{X: 1}) }

func TestExtrema(t *testing.T) {
	a := New()
	a.AddAll([]sample.Sample{
		accel(3, 4, 0), // 5
		gyro(),
		baro(101325),
		accel(0, 0, 1), // 1
		baro(90000),
		accel(0, 6, 8), // 10
		baro(95000),
	})

	maxG, err := a.MaxAccelMagnitude()
	require.NoError(t, err)
	assert.Equal(t, 10.0, maxG)
	minG, err := a.MinAccelMagnitude()
	require.NoError(t, err)
	assert.Equal(t, 1.0, minG)

	maxP, err := a.MaxPressure()
	require.NoError(t, err)
	assert.Equal(t, 101325.0, maxP)
	minP, err := a.MinPressure()
	require.NoError(t, err)
	assert.Equal(t, 90000.0, minP)

	assert.Equal(t, map[sample.Kind]int{
		sample.KindHighGAccelerometer: 3,
		sample.KindGyro:               1,
		sample.KindBarometer:          3,
	}, a.Counts())
}

func TestEmptySubsetsAreErrors(t *testing.T) {
	tests := []struct {
		name    string
		samples []sample.Sample
		accel   bool
		press   bool
	}{
		{name: "nothing", samples: nil},
		{name: "gyro only", samples: []sample.Sample{gyro(), gyro()}},
		{name: "accel only", samples: []sample.Sample{accel(0, 0, 0)}, accel: true},
		{name: "baro only", samples: []sample.Sample{baro(0)}, press: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := New()
			a.AddAll(tt.samples)

			check := func(v float64, err error, present bool) {
				if present {
					require.NoError(t, err)
					assert.Equal(t, 0.0, v)
					return
				}
				assert.ErrorIs(t, err, ErrEmpty)
			}
			v, err := a.MaxAccelMagnitude()
			check(v, err, tt.accel)
			v, err = a.MinAccelMagnitude()
			check(v, err, tt.accel)
			v, err = a.MaxPressure()
			check(v, err, tt.press)
			v, err = a.MinPressure()
			check(v, err, tt.press)
		})
	}
}

func TestMergeMatchesSinglePass(t *testing.T) {
	first := []sample.Sample{accel(1, 0, 0), baro(100), accel(0, 2, 0)}
	second := []sample.Sample{baro(50), gyro(), accel(0, 0, 0.5), baro(300)}

	whole := New()
	whole.AddAll(append(append([]sample.Sample(nil), first...), second...))

	a, b := New(), New()
	a.AddAll(first)
	b.AddAll(second)
	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, whole.Summary(), a.Summary())
	assert.Equal(t, whole.GLoads(), a.GLoads())

	// merging into an empty aggregator adopts the other side
	empty := New()
	empty.Merge(b)
	minP, err := empty.MinPressure()
	require.NoError(t, err)
	assert.Equal(t, 50.0, minP)
}

func TestSummary(t *testing.T) {
	sum := Reduce([]sample.Sample{baro(2), baro(4), baro(4), baro(4), baro(5), baro(5), baro(7), baro(9)})

	assert.Nil(t, sum.GLoad)
	require.NotNil(t, sum.Pressure)
	assert.Equal(t, 8, sum.Pressure.Count)
	assert.Equal(t, 2.0, sum.Pressure.Min)
	assert.Equal(t, 9.0, sum.Pressure.Max)
	assert.InDelta(t, 5.0, sum.Pressure.Mean, 1e-12)
	// sample (n-1) standard deviation
	assert.InDelta(t, 2.138089935, sum.Pressure.StdDev, 1e-9)
	assert.Equal(t, 8, sum.Samples)
	assert.Equal(t, map[string]int{"high_g_accelerometer": 0, "gyro": 0, "barometer": 8}, sum.Counts)

	single := Reduce([]sample.Sample{accel(0, 3, 4)})
	require.NotNil(t, single.GLoad)
	assert.Equal(t, Series{Count: 1, Min: 5, Max: 5, Mean: 5}, *single.GLoad)
}

func TestSummaryJSONUsesNullForEmptySubset(t *testing.T) {
	b, err := json.Marshal(Reduce([]sample.Sample{gyro()}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"g_load":null,"pressure":null,"counts":{"high_g_accelerometer":0,"gyro":1,"barometer":0},"samples":1}`, string(b))
}

func TestAddPanicsOnMissingData(t *testing.T) {
	assert.Panics(t, func() { New().Add(sample.Sample{}) })
}
