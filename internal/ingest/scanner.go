// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ingest turns a recorder dump (one encoded page per text line) into
// numbered page buffers.
package ingest

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Encoding is the text encoding of one page line.
type Encoding uint8

const (
	EncodingBase64 Encoding = iota
	EncodingHex
)

func (e Encoding) String() string {
	switch e {
	case EncodingBase64:
		return "base64"
	case EncodingHex:
		return "hex"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// ParseEncoding accepts "base64" or "hex".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base64", "":
		return EncodingBase64, nil
	case "hex":
		return EncodingHex, nil
	default:
		return 0, fmt.Errorf("unknown page encoding %q (want base64 or hex)", s)
	}
}

func (e Encoding) decode(line string) ([]byte, error) {
	switch e {
	case EncodingHex:
		return hex.DecodeString(line)
	default:
		return base64.StdEncoding.DecodeString(line)
	}
}

// Recorder defaults: the dump tool numbers the first data page 64 and the
// flash holds pages up to 1868. Shorter lines are banners and prompts.
const (
	DefaultMinLineLength  = 500
	DefaultFirstPageIndex = 64
	DefaultLastPageIndex  = 1868

	maxLineBytes = 1 << 20
)

// Options controls which lines become pages and how they are numbered.
type Options struct {
	// Lines with length <= MinLineLength are skipped.
	MinLineLength  int
	Encoding       Encoding
	FirstPageIndex int
	// Ingestion stops once the next index would exceed LastPageIndex.
	// Zero or negative disables the limit.
	LastPageIndex int
}

// DefaultOptions returns the recorder dump defaults.
func DefaultOptions() Options {
	return Options{
		MinLineLength:  DefaultMinLineLength,
		Encoding:       EncodingBase64,
		FirstPageIndex: DefaultFirstPageIndex,
		LastPageIndex:  DefaultLastPageIndex,
	}
}

// Page is one decoded line.
type Page struct {
	Index int    // recorder page number
	Line  int    // 1-based input line the page came from
	Bytes []byte // raw page contents, starting with the magic header
}

// DecodeError reports a page line that is not valid for the configured encoding.
type DecodeError struct {
	Line     int
	Encoding Encoding
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ingest: line %d: invalid %s page: %v", e.Line, e.Encoding, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Scanner reads pages from a text stream.
type Scanner struct {
	sc      *bufio.Scanner
	opts    Options
	line    int
	next    int
	skipped int
	done    bool
}

// NewScanner wraps r. Options with a zero FirstPageIndex start numbering at 0.
func NewScanner(r io.Reader, opts Options) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Scanner{sc: sc, opts: opts, next: opts.FirstPageIndex}
}

// Next returns the next page, io.EOF at the end of input or once the page
// window is exhausted, or a *DecodeError for a malformed page line.
func (s *Scanner) Next() (Page, error) {
	if s.done {
		return Page{}, io.EOF
	}
	if s.opts.LastPageIndex > 0 && s.next > s.opts.LastPageIndex {
		s.done = true
		return Page{}, io.EOF
	}
	for s.sc.Scan() {
		s.line++
		text := strings.TrimSpace(s.sc.Text())
		if len(text) <= s.opts.MinLineLength {
			s.skipped++
			continue
		}
		b, err := s.opts.Encoding.decode(text)
		if err != nil {
			s.done = true
			return Page{}, &DecodeError{Line: s.line, Encoding: s.opts.Encoding, Err: err}
		}
		p := Page{Index: s.next, Line: s.line, Bytes: b}
		s.next++
		return p, nil
	}
	s.done = true
	if err := s.sc.Err(); err != nil {
		return Page{}, fmt.Errorf("ingest: read line %d: %w", s.line+1, err)
	}
	return Page{}, io.EOF
}

// SkippedLines is the number of lines too short to be pages.
func (s *Scanner) SkippedLines() int { return s.skipped }

// ReadAll drains the scanner.
func (s *Scanner) ReadAll() ([]Page, error) {
	var pages []Page
	for {
		p, err := s.Next()
		if err == io.EOF {
			return pages, nil
		}
		if err != nil {
			return pages, err
		}
		pages = append(pages, p)
	}
}

// Feed sends every page to out and closes it. It stops early when ctx is
// cancelled.
func (s *Scanner) Feed(ctx context.Context, out chan<- Page) error {
	defer close(out)
	for {
		p, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Literal builds a page stream from in-memory lines.
func Literal(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n"))
}
