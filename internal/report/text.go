// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package report renders a finished run: the console summary, JSON dumps,
// the g-load and pressure series and their plots.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
)

const noSamples = "n/a (no samples)"

// WriteText prints one "len N" line per page followed by the extrema from
// the run summary. An empty subset prints n/a instead of a number.
func WriteText(w io.Writer, res pipeline.Result) error {
	bw := bufio.NewWriter(w)
	for _, pr := range res.Pages {
		if pr.Err != nil {
			fmt.Fprintf(bw, "page %d: failed after %d records: %v\n", pr.Index, pr.Records, pr.Err)
			continue
		}
		fmt.Fprintf(bw, "page %d: len %d\n", pr.Index, pr.Records)
	}

	sum := res.Summary
	line := func(label string, s *stats.Series, pick func(*stats.Series) float64) {
		if s == nil {
			fmt.Fprintf(bw, "%s %s\n", label, noSamples)
			return
		}
		fmt.Fprintf(bw, "%s %s\n", label, formatFloat(pick(s)))
	}
	line("Max g load", sum.GLoad, seriesMax)
	line("Min g load", sum.GLoad, seriesMin)
	line("Min pressure", sum.Pressure, seriesMin)
	line("Max pressure", sum.Pressure, seriesMax)

	if res.FailedPages > 0 {
		fmt.Fprintf(bw, "%d of %d pages failed\n", res.FailedPages, len(res.Pages))
	}
	return bw.Flush()
}

func seriesMin(s *stats.Series) float64 { return s.Min }
func seriesMax(s *stats.Series) float64 { return s.Max }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
