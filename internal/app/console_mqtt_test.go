// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/novafc_decoder/internal/publish"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

func TestFormatPage(t *testing.T) {
	m := publish.PageMessage{
		RunID: "0f8fad5b-d9cb-469f-a165-70867728950e",
		Page:  70,
		Samples: []sample.Sample{
			sample.New(sample.HighGAccelerometer{Z: 2}),
			sample.New(sample.Gyro{X: 10}),
			sample.New(sample.HighGAccelerometer{X: 3, Z: 4}),
			sample.New(sample.Barometer{Temperature: 290, Pressure: 99000}),
		},
	}
	assert.Equal(t,
		"[PAGE   70] run=0f8fad5b len=4 high_g_accelerometer=2 gyro=1 barometer=1 max_g=5.000",
		formatPage(m))
}

func TestFormatPageWithoutAccel(t *testing.T) {
	m := publish.PageMessage{RunID: "abc", Page: 64}
	assert.Equal(t, "[PAGE   64] run=abc len=0 high_g_accelerometer=0 gyro=0 barometer=0", formatPage(m))
}

func TestFormatSummary(t *testing.T) {
	samples := []sample.Sample{
		sample.New(sample.HighGAccelerometer{Z: 1}),
		sample.New(sample.HighGAccelerometer{Z: 3}),
	}
	m := publish.SummaryMessage{RunID: "run-1", Pages: 3, FailedPages: 1, Summary: stats.Reduce(samples)}

	want := "[SUMMARY] run=run-1 pages=3 failed=1 samples=2\n" +
		"  g load   min=1.000g max=3.000g mean=2.000g\n" +
		"  pressure n/a\n"
	assert.Equal(t, want, formatSummary(m))
}
