// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/report"
)

// openSerial is replaced in tests.
var openSerial = func(cfg ingest.SerialConfig, opts ingest.Options) (*ingest.Scanner, io.Closer, error) {
	src, err := ingest.OpenSerial(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return src.Scanner, src, nil
}

// RunCapture opens the flight computer's serial port, decodes the recorder
// dump as it streams in and prints the report once the dump ends (the last
// page of the window, or ctx cancelled). The run is archived when DB_PATH is
// set.
func RunCapture(ctx context.Context, out io.Writer) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("capture: %w", errNoConfig)
	}
	if out == nil {
		out = os.Stdout
	}

	sc, port, err := openSerial(ingest.SerialConfig{
		PortName: cfg.SerialPort,
		BaudRate: uint(cfg.SerialBaudRate),
	}, cfg.IngestOptions())
	if err != nil {
		return err
	}
	defer port.Close()

	proc := pipeline.NewProcessor(cfg.PipelineOptions())
	monitoring.Logf("capture: run %s waiting for pages on %s", proc.RunID(), cfg.SerialPort)

	res, runErr := runScanner(ctx, proc, sc)
	if errors.Is(runErr, context.Canceled) {
		monitoring.Logf("capture: interrupted after %d pages", len(res.Pages))
		runErr = nil
	}

	if err := report.WriteText(out, res); err != nil {
		return err
	}
	if err := writeArtifacts(cfg, res); err != nil {
		return err
	}
	if err := archiveRun(cfg, res, cfg.SerialPort); err != nil {
		return err
	}
	return runErr
}
