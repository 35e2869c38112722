// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package synth

import (
	"encoding/base64"
	"math"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

// Flight describes a fake flight profile. The zero value is not useful; start
// from DefaultFlight.
type Flight struct {
	PageCount      int     // number of pages to generate
	RecordsPerPage int     // accel+gyro pairs per page; one baro record per page
	TruncateTail   bool    // end each page with a record cut off by the page boundary
	BurnPages      int     // pages of motor burn at the start
	BurnG          float64 // peak axial acceleration during burn
	ApogeeMeters   float64
	GroundPascal   float64
	GroundTempC    float64
}

// DefaultFlight is a short hobby rocket flight that fits in a handful of pages.
var DefaultFlight = Flight{
	PageCount:      12,
	RecordsPerPage: 24,
	TruncateTail:   true,
	BurnPages:      2,
	BurnG:          4.5,
	ApogeeMeters:   900,
	GroundPascal:   101325,
	GroundTempC:    18,
}

// Pages renders the flight as page buffers. Output is a pure function of f.
func (f Flight) Pages() [][]byte {
	pages := make([][]byte, 0, f.PageCount)
	total := f.PageCount * f.RecordsPerPage
	for p := 0; p < f.PageCount; p++ {
		b := NewPage()
		for r := 0; r < f.RecordsPerPage; r++ {
			i := p*f.RecordsPerPage + r
			phase := float64(i) / float64(total)

			// axial load: burn spike, then coast near 0 g, then 1 g under chute
			axial := 1.0
			switch {
			case p < f.BurnPages:
				axial = 1 + f.BurnG*math.Sin(math.Pi*float64(r+p*f.RecordsPerPage)/float64(f.BurnPages*f.RecordsPerPage))
			case phase < 0.5:
				axial = 0.05
			}
			wobble := 0.2 * math.Sin(float64(i)*0.7)
			b.Accel(gCounts(wobble), gCounts(-wobble), gCounts(axial))
			b.Gyro(dpsCounts(30*math.Sin(float64(i)*0.3)), dpsCounts(20*math.Cos(float64(i)*0.2)), dpsCounts(360*phase))
		}

		alt := f.altitude(float64(p) / float64(max(f.PageCount-1, 1)))
		b.Baro(int32(math.Round((f.GroundTempC-0.0065*alt)*100)), int32(math.Round(f.pressureAt(alt))))
		if f.TruncateTail {
			b.Raw('A', 'A', 0x01, 0x02, 0x03)
		}
		pages = append(pages, b.Bytes())
	}
	return pages
}

// Lines encodes each page as one base64 line, the way the recorder dump
// prints them. With DefaultFlight every line is longer than the ingest
// threshold.
func (f Flight) Lines() []string {
	pages := f.Pages()
	lines := make([]string, len(pages))
	for i, p := range pages {
		lines[i] = base64.StdEncoding.EncodeToString(p)
	}
	return lines
}

// altitude is a parabola peaking at ApogeeMeters mid-flight.
func (f Flight) altitude(t float64) float64 {
	return math.Max(0, f.ApogeeMeters*4*t*(1-t))
}

// pressureAt uses the standard barometric formula.
func (f Flight) pressureAt(alt float64) float64 {
	return f.GroundPascal * math.Pow(1-2.25577e-5*alt, 5.25588)
}

func gCounts(g float64) int16 {
	return clampCounts(g / sample.AccelFullScaleG * sample.RawFullScale)
}

func dpsCounts(dps float64) int16 {
	return clampCounts(dps / sample.GyroFullScaleDPS * sample.RawFullScale)
}

func clampCounts(v float64) int16 {
	return int16(math.Max(-sample.RawFullScale, math.Min(sample.RawFullScale, math.Round(v))))
}
