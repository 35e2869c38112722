// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline drives a decode run: every page is decoded by a fresh
// page.Decoder, its samples appended to the run's store in page order and
// folded into the aggregator.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/novafc_decoder/internal/ingest"
	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/page"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
	"github.com/relabs-tech/novafc_decoder/internal/stats"
	"github.com/relabs-tech/novafc_decoder/internal/store"
)

// SampleSink receives each page's samples once they are committed to the run.
type SampleSink interface {
	Publish(pageIndex int, samples []sample.Sample) error
}

// Observer is told about every page decode. metrics.Metrics implements it.
type Observer interface {
	ObservePage(counts map[sample.Kind]int, st page.Stats, err error, took time.Duration)
}

// Options configures a run.
type Options struct {
	Decode page.Options
	// AbortOnFatal stops the run at the first page with a fatal decode error.
	// When false the page's samples are dropped and the run continues.
	AbortOnFatal bool
	// Workers > 1 decodes pages concurrently; results are still committed in
	// input order.
	Workers int
	Sinks   []SampleSink
	// Observer may be nil.
	Observer Observer
	// Trace, when set, sees every record with its page index. In parallel
	// mode it is called from worker goroutines.
	Trace func(pageIndex int, rec page.Record)
}

// DefaultOptions aborts on the first fatal page and decodes sequentially.
func DefaultOptions() Options {
	return Options{AbortOnFatal: true, Workers: 1}
}

// PageResult is the outcome of one page.
type PageResult struct {
	Index         int
	Line          int
	Records       int
	SkippedBytes  int
	TrailingBytes int
	Err           error
}

// Result is the outcome of a run.
type Result struct {
	RunID       string
	Pages       []PageResult
	Samples     []sample.Sample
	Summary     stats.Summary
	FailedPages int
}

// Processor accumulates one run. It is not safe for concurrent use; the
// parallel Run mode only shares the pure decode step between goroutines.
type Processor struct {
	opts   Options
	runID  string
	store  *store.Store
	agg    *stats.Aggregator
	pages  []PageResult
	failed int
}

// NewProcessor starts a run with a fresh run ID.
func NewProcessor(opts Options) *Processor {
	return &Processor{
		opts:  opts,
		runID: uuid.New().String(),
		store: store.New(),
		agg:   stats.New(),
	}
}

// RunID identifies this run in the database and on MQTT.
func (p *Processor) RunID() string { return p.runID }

// Store exposes the run's samples. It may be read while the run progresses.
func (p *Processor) Store() *store.Store { return p.store }

// Aggregator exposes the running statistics.
func (p *Processor) Aggregator() *stats.Aggregator { return p.agg }

// decoded is a page decoded but not yet committed to the run.
type decoded struct {
	seq     int
	pg      ingest.Page
	samples []sample.Sample
	stats   page.Stats
	err     error
	took    time.Duration
}

func (p *Processor) decode(seq int, pg ingest.Page) decoded {
	opts := p.opts.Decode
	if trace := p.opts.Trace; trace != nil {
		idx := pg.Index
		opts.Trace = func(rec page.Record) { trace(idx, rec) }
	}
	start := time.Now()
	d := page.NewDecoder(pg.Bytes, opts)
	samples, err := d.Decode()
	return decoded{seq: seq, pg: pg, samples: samples, stats: d.Stats(), err: err, took: time.Since(start)}
}

// commit applies a decoded page to the run. A non-nil error means the run
// must stop. A page whose samples cannot be stored is recorded as failed.
func (p *Processor) commit(d decoded) (PageResult, error) {
	var storeErr error
	if d.err == nil {
		if storeErr = p.store.AppendPage(d.pg.Index, d.samples); storeErr != nil {
			d.err = storeErr
		}
	}

	res := PageResult{
		Index:         d.pg.Index,
		Line:          d.pg.Line,
		Records:       d.stats.Records,
		SkippedBytes:  d.stats.SkippedBytes,
		TrailingBytes: d.stats.TrailingBytes,
		Err:           d.err,
	}
	if p.opts.Observer != nil {
		p.opts.Observer.ObservePage(countKinds(d.samples), d.stats, d.err, d.took)
	}
	p.pages = append(p.pages, res)

	if d.err != nil {
		p.failed++
		monitoring.Logf("decode: page %d (line %d): %v, dropping %d samples", d.pg.Index, d.pg.Line, d.err, len(d.samples))
		if storeErr != nil {
			return res, storeErr
		}
		if p.opts.AbortOnFatal {
			return res, fmt.Errorf("page %d: %w", d.pg.Index, d.err)
		}
		return res, nil
	}

	p.agg.AddAll(d.samples)
	for _, sink := range p.opts.Sinks {
		if err := sink.Publish(d.pg.Index, d.samples); err != nil {
			monitoring.Logf("decode: page %d: sink error: %v", d.pg.Index, err)
		}
	}
	return res, nil
}

// ProcessPage decodes and commits one page. The returned error is non-nil
// only when the run must abort.
func (p *Processor) ProcessPage(index int, buf []byte) (PageResult, error) {
	return p.commit(p.decode(len(p.pages), ingest.Page{Index: index, Bytes: buf}))
}

// Result snapshots the run so far.
func (p *Processor) Result() Result {
	return Result{
		RunID:       p.runID,
		Pages:       append([]PageResult(nil), p.pages...),
		Samples:     p.store.Samples(),
		Summary:     p.agg.Summary(),
		FailedPages: p.failed,
	}
}

func countKinds(samples []sample.Sample) map[sample.Kind]int {
	counts := make(map[sample.Kind]int, len(sample.Kinds))
	for _, s := range samples {
		counts[s.Kind()]++
	}
	return counts
}
