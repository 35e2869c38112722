// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store keeps the decoded samples of one run in decode order.
package store

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

// Span locates one page's samples inside the store.
type Span struct {
	Page  int // page index as numbered by ingestion
	Start int // first sample position
	Count int
}

// Store is an append-only sample sequence. Appends must arrive in page order;
// reads may happen concurrently with appends (the web viewer reads while a
// capture is still running).
type Store struct {
	mu      sync.RWMutex
	samples []sample.Sample
	spans   []Span
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// AppendPage adds the samples decoded from one page. Page indices must be
// strictly increasing.
func (s *Store) AppendPage(pageIndex int, samples []sample.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.spans); n > 0 && pageIndex <= s.spans[n-1].Page {
		return fmt.Errorf("store: page %d appended after page %d", pageIndex, s.spans[n-1].Page)
	}
	s.spans = append(s.spans, Span{Page: pageIndex, Start: len(s.samples), Count: len(samples)})
	s.samples = append(s.samples, samples...)
	return nil
}

// Len is the number of samples stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Samples returns a copy of every sample in decode order.
func (s *Store) Samples() []sample.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sample.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Spans returns the page boundaries in append order.
func (s *Store) Spans() []Span {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Span, len(s.spans))
	copy(out, s.spans)
	return out
}

// Page returns the samples decoded from one page.
func (s *Store) Page(pageIndex int) ([]sample.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.spans {
		if sp.Page == pageIndex {
			out := make([]sample.Sample, sp.Count)
			copy(out, s.samples[sp.Start:sp.Start+sp.Count])
			return out, true
		}
	}
	return nil, false
}

// Filter returns the samples of one kind, in order.
func (s *Store) Filter(kind sample.Kind) []sample.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []sample.Sample
	for _, smp := range s.samples {
		if smp.Kind() == kind {
			out = append(out, smp)
		}
	}
	return out
}

// Each calls fn for every sample until fn returns false.
func (s *Store) Each(fn func(i int, smp sample.Sample) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, smp := range s.samples {
		if !fn(i, smp) {
			return
		}
	}
}
