// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the decoder packages into the runnable tools under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/db"
	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/page"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/report"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

// DecodeOptions are the switches of a decode run that have no config key.
type DecodeOptions struct {
	JSON bool // print the samples as a JSON array instead of the text report
	Dump bool // log every record with its raw fields

	// In is read when the config has no INPUT_PATH. Defaults to os.Stdin.
	In io.Reader
	// Out receives the report. Defaults to os.Stdout.
	Out io.Writer
}

var errNoConfig = errors.New("config not initialised")

// RunDecode decodes a page dump and writes the report, the optional series,
// plots and chart, and archives the run when DB_PATH is set. The report is
// written even when a fatal page aborts the run; the abort is then returned.
func RunDecode(ctx context.Context, o DecodeOptions) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("decode: %w", errNoConfig)
	}
	out := o.Out
	if out == nil {
		out = os.Stdout
	}

	in, source, err := openInput(cfg, o.In)
	if err != nil {
		return err
	}
	defer in.Close()

	opts := cfg.PipelineOptions()
	if o.Dump {
		opts.Trace = dumpRecord
	}
	proc := pipeline.NewProcessor(opts)
	monitoring.Logf("decode: run %s reading %s", proc.RunID(), source)

	res, runErr := runScanner(ctx, proc, ingest.NewScanner(in, cfg.IngestOptions()))

	if o.JSON {
		err = report.WriteSamplesJSON(out, res.Samples)
	} else {
		err = report.WriteText(out, res)
	}
	if err != nil {
		return err
	}
	if err := writeArtifacts(cfg, res); err != nil {
		return err
	}
	if err := archiveRun(cfg, res, source); err != nil {
		return err
	}
	return runErr
}

// openInput returns the configured input file, or fallback (stdin when nil).
func openInput(cfg *config.Config, fallback io.Reader) (io.ReadCloser, string, error) {
	if cfg.InputPath != "" {
		f, err := os.Open(cfg.InputPath)
		if err != nil {
			return nil, "", fmt.Errorf("decode: open input: %w", err)
		}
		return f, cfg.InputPath, nil
	}
	if fallback == nil {
		fallback = os.Stdin
	}
	return io.NopCloser(fallback), "stdin", nil
}

// runScanner feeds the scanner into the processor. A read or line decoding
// error surfaces after the pages before it were committed.
func runScanner(ctx context.Context, proc *pipeline.Processor, sc *ingest.Scanner) (pipeline.Result, error) {
	pages := make(chan ingest.Page, 16)
	feedErr := make(chan error, 1)
	go func() {
		feedErr <- sc.Feed(ctx, pages)
	}()

	res, err := proc.Run(ctx, pages)
	if err != nil {
		return res, err
	}
	if err := <-feedErr; err != nil {
		return res, err
	}
	if n := sc.SkippedLines(); n > 0 {
		monitoring.Logf("decode: skipped %d short lines", n)
	}
	return res, nil
}

// writeArtifacts writes whichever of the series, plots and chart are configured.
func writeArtifacts(cfg *config.Config, res pipeline.Result) error {
	if cfg.SeriesDir != "" {
		if err := report.WriteSeries(cfg.SeriesDir, res.Samples); err != nil {
			return err
		}
		monitoring.Logf("decode: series written to %s", cfg.SeriesDir)
	}
	if cfg.PlotDir != "" {
		files, err := report.WritePlots(cfg.PlotDir, res.Samples)
		if err != nil {
			return err
		}
		for _, f := range files {
			monitoring.Logf("decode: plot written to %s", f)
		}
	}
	if cfg.ChartPath != "" {
		f, err := os.Create(cfg.ChartPath)
		if err != nil {
			return fmt.Errorf("decode: create chart: %w", err)
		}
		if err := report.WriteChart(f, res.Samples); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("decode: close chart: %w", err)
		}
		monitoring.Logf("decode: chart written to %s", cfg.ChartPath)
	}
	return nil
}

// archiveRun saves the run when DB_PATH is set.
func archiveRun(cfg *config.Config, res pipeline.Result, source string) error {
	if cfg.DBPath == "" {
		return nil
	}
	archive, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer archive.Close()

	meta := db.RunMeta{Source: source, DesyncPolicy: cfg.DesyncPolicy.String()}
	if err := archive.SaveRun(res, meta); err != nil {
		return err
	}
	monitoring.Logf("decode: run %s saved to %s", res.RunID, cfg.DBPath)
	return nil
}

func dumpRecord(pageIndex int, rec page.Record) {
	f := rec.Raw.Fields
	switch d := rec.Sample.Data.(type) {
	case sample.HighGAccelerometer:
		monitoring.Logf("dump: page %d @%d %c raw=[%d %d %d] x=%g y=%g z=%g |a|=%g",
			pageIndex, rec.Offset, rec.Raw.Kind.Tag(), f[0], f[1], f[2], d.X, d.Y, d.Z, d.Magnitude())
	case sample.Gyro:
		monitoring.Logf("dump: page %d @%d %c raw=[%d %d %d] x=%g y=%g z=%g",
			pageIndex, rec.Offset, rec.Raw.Kind.Tag(), f[0], f[1], f[2], d.X, d.Y, d.Z)
	case sample.Barometer:
		monitoring.Logf("dump: page %d @%d %c raw=[%d %d] temperature=%gK pressure=%gPa",
			pageIndex, rec.Offset, rec.Raw.Kind.Tag(), f[0], f[1], d.Temperature, d.Pressure)
	}
}
