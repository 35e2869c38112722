// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/publish"
	"github.com/relabs-tech/novafc_decoder/internal/report"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/synth"
)

// consoleSink prints one line per committed page.
type consoleSink struct {
	w     io.Writer
	runID string
}

func (c *consoleSink) Publish(pageIndex int, samples []sample.Sample) error {
	_, err := fmt.Fprintln(c.w, formatPage(publish.PageMessage{RunID: c.runID, Page: pageIndex, Samples: samples}))
	return err
}

// RunDemo streams a synthetic flight through the decoder one page per
// interval, printing each page as it lands and the report at the end.
func RunDemo(ctx context.Context, out io.Writer, interval time.Duration) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("demo: %w", errNoConfig)
	}
	if out == nil {
		out = os.Stdout
	}

	ingestOpts := cfg.IngestOptions()
	ingestOpts.Encoding = ingest.EncodingBase64

	sink := &consoleSink{w: out}
	opts := cfg.PipelineOptions()
	opts.Sinks = append(opts.Sinks, sink)
	proc := pipeline.NewProcessor(opts)
	sink.runID = proc.RunID()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(playLines(ctx, pw, synth.DefaultFlight.Lines(), interval))
	}()
	defer pr.Close()

	res, runErr := runScanner(ctx, proc, ingest.NewScanner(pr, ingestOpts))
	if err := report.WriteText(out, res); err != nil {
		return err
	}
	if err := writeArtifacts(cfg, res); err != nil {
		return err
	}
	if err := archiveRun(cfg, res, "demo"); err != nil {
		return err
	}
	return runErr
}

// playLines writes one line per tick, the way the recorder dumps pages.
func playLines(ctx context.Context, w io.Writer, lines []string, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for _, line := range lines {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
