// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	"github.com/relabs-tech/novafc_decoder/internal/config"
	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/pipeline"
	"github.com/relabs-tech/novafc_decoder/internal/publish"
)

// summaryPublisher is the part of *publish.MQTTPublisher RunPublisher needs.
type summaryPublisher interface {
	pipeline.SampleSink
	SetRunID(id string)
	PublishSummary(res pipeline.Result) error
	Close()
}

// connectPublisher is replaced in tests.
var connectPublisher = func(cfg publish.Config) (summaryPublisher, error) {
	p, err := publish.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RunPublisher decodes the configured input and publishes every committed
// page to TOPIC_SAMPLES, then the run summary to TOPIC_SUMMARY.
func RunPublisher(ctx context.Context, in io.Reader) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("publisher: %w", errNoConfig)
	}

	r, source, err := openInput(cfg, in)
	if err != nil {
		return err
	}
	defer r.Close()

	pub, err := connectPublisher(cfg.PublishConfig(cfg.MQTTClientIDPublisher))
	if err != nil {
		return err
	}
	defer pub.Close()
	monitoring.Logf("publisher: connected to MQTT broker at %s", cfg.MQTTBroker)

	opts := cfg.PipelineOptions()
	opts.Sinks = append(opts.Sinks, pub)
	proc := pipeline.NewProcessor(opts)
	pub.SetRunID(proc.RunID())

	res, runErr := runScanner(ctx, proc, ingest.NewScanner(r, cfg.IngestOptions()))
	if err := pub.PublishSummary(res); err != nil {
		return err
	}
	monitoring.Logf("publisher: run %s from %s published: %d pages, %d samples, %d failed",
		res.RunID, source, len(res.Pages), len(res.Samples), res.FailedPages)
	return runErr
}
