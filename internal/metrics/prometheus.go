// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes decode counters for Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relabs-tech/novafc_decoder/internal/page"
	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

// Metrics contains the decoder's Prometheus metrics.
type Metrics struct {
	PagesDecoded   prometheus.Counter
	PagesFailed    *prometheus.CounterVec
	Records        *prometheus.CounterVec
	SkippedBytes   prometheus.Counter
	TrailingBytes  prometheus.Counter
	RecordsPerPage prometheus.Histogram
	DecodeDuration prometheus.Histogram
	Runs           *prometheus.CounterVec
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PagesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "novafc_pages_decoded_total",
			Help: "Total number of pages decoded to a clean end of page",
		}),
		PagesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novafc_pages_failed_total",
			Help: "Total number of pages that stopped on a fatal decode error",
		}, []string{"reason"}),
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novafc_records_total",
			Help: "Total number of records decoded, by sample kind",
		}, []string{"kind"}),
		SkippedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "novafc_desync_skipped_bytes_total",
			Help: "Total number of bytes skipped while resynchronizing on doubled tags",
		}),
		TrailingBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "novafc_trailing_bytes_total",
			Help: "Total number of bytes left after the last complete record of a page",
		}),
		RecordsPerPage: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novafc_records_per_page",
			Help:    "Number of records decoded per page",
			Buckets: prometheus.LinearBuckets(0, 16, 10),
		}),
		DecodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "novafc_page_decode_duration_seconds",
			Help:    "Time spent decoding one page",
			Buckets: prometheus.ExponentialBuckets(0.000005, 2, 12), // 5µs to ~10ms
		}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novafc_runs_total",
			Help: "Total number of decode runs, by outcome",
		}, []string{"outcome"}),
	}
}

// ObservePage records one page decode.
func (m *Metrics) ObservePage(counts map[sample.Kind]int, st page.Stats, err error, took time.Duration) {
	for kind, n := range counts {
		if n > 0 {
			m.Records.WithLabelValues(kind.String()).Add(float64(n))
		}
	}
	m.SkippedBytes.Add(float64(st.SkippedBytes))
	m.TrailingBytes.Add(float64(st.TrailingBytes))
	m.RecordsPerPage.Observe(float64(st.Records))
	m.DecodeDuration.Observe(took.Seconds())
	if err != nil {
		m.PagesFailed.WithLabelValues(FailureReason(err)).Inc()
		return
	}
	m.PagesDecoded.Inc()
}

// ObserveRun records the outcome of a whole run.
func (m *Metrics) ObserveRun(err error) {
	if err != nil {
		m.Runs.WithLabelValues("aborted").Inc()
		return
	}
	m.Runs.WithLabelValues("ok").Inc()
}

// FailureReason maps a fatal page error to a low-cardinality label.
func FailureReason(err error) string {
	var (
		hdr    *page.UnexpectedByteError
		tag    *page.UnknownTagError
		desync *page.DesyncError
	)
	switch {
	case errors.As(err, &hdr):
		return "header_mismatch"
	case errors.As(err, &tag):
		return "unknown_tag"
	case errors.As(err, &desync):
		return "desync"
	default:
		return "other"
	}
}
