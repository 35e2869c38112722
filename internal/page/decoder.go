// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package page decodes one recorder page: a 4-byte "NOVA" header followed by
// records, each introduced by a tag byte sent twice and a fixed-width
// little-endian payload whose shape depends on the tag.
//
// A page ends at the first record that does not fit in the buffer. That is
// the normal end-of-page condition and is not reported as an error.
package page

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/relabs-tech/novafc_decoder/internal/sample"
)

var magic = [4]byte{'N', 'O', 'V', 'A'}

// Magic returns the header that starts every page.
func Magic() [4]byte { return magic }

// State is the decoder's position in the page grammar.
type State uint8

const (
	StateAwaitingHeader State = iota
	StateScanning
	StateDispatching
	StateDone
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateAwaitingHeader:
		return "awaiting-header"
	case StateScanning:
		return "scanning"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// DesyncPolicy decides what happens when a tag candidate is not followed by
// an identical byte.
type DesyncPolicy uint8

const (
	// DesyncSkip drops the unmatched byte and retries with the next one.
	DesyncSkip DesyncPolicy = iota
	// DesyncFatal stops the page with a DesyncError.
	DesyncFatal
)

func (p DesyncPolicy) String() string {
	switch p {
	case DesyncSkip:
		return "skip"
	case DesyncFatal:
		return "fatal"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParseDesyncPolicy accepts "skip" or "fatal".
func ParseDesyncPolicy(s string) (DesyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip":
		return DesyncSkip, nil
	case "fatal":
		return DesyncFatal, nil
	default:
		return 0, fmt.Errorf("unknown desync policy %q (want skip or fatal)", s)
	}
}

// Record is one decoded record as seen by a trace hook.
type Record struct {
	Offset int // index of the first tag byte
	Raw    sample.Raw
	Sample sample.Sample
}

// Options configures a Decoder.
type Options struct {
	DesyncPolicy DesyncPolicy

	// Trace, when set, is called for every record after conversion.
	Trace func(Record)
}

// Stats describes how a page was consumed.
type Stats struct {
	Records       int // complete records decoded
	SkippedBytes  int // unmatched tag candidates dropped under DesyncSkip
	ConsumedBytes int // offset just past the last complete record (or header)
	TrailingBytes int // bytes after ConsumedBytes, including any partial record
}

// Decoder turns one page buffer into samples. A Decoder is single use: create
// a new one for every page.
type Decoder struct {
	cur   *Cursor
	opts  Options
	state State
	err   error
	stats Stats

	pending   sample.Kind
	tagOffset int
}

// NewDecoder prepares a decoder over buf. The buffer is not modified.
func NewDecoder(buf []byte, opts Options) *Decoder {
	return &Decoder{cur: NewCursor(buf), opts: opts}
}

// State returns the current decoder state.
func (d *Decoder) State() State { return d.state }

// Stats returns consumption counters collected so far.
func (d *Decoder) Stats() Stats { return d.stats }

// Next returns the next sample in the page. It returns io.EOF once the page
// is exhausted. A fatal error is returned again on every later call.
func (d *Decoder) Next() (sample.Sample, error) {
	for {
		switch d.state {
		case StateAwaitingHeader:
			if err := d.readHeader(); err != nil {
				return sample.Sample{}, d.stop(err)
			}
			d.stats.ConsumedBytes = d.cur.Offset()
			d.state = StateScanning

		case StateScanning:
			kind, err := d.scanTag()
			if err != nil {
				return sample.Sample{}, d.stop(err)
			}
			if kind == 0 {
				continue
			}
			d.pending = kind
			d.state = StateDispatching

		case StateDispatching:
			s, err := d.dispatch()
			if err != nil {
				return sample.Sample{}, d.stop(err)
			}
			d.state = StateScanning
			return s, nil

		case StateDone:
			return sample.Sample{}, io.EOF

		case StateFatal:
			return sample.Sample{}, d.err

		default:
			panic(fmt.Sprintf("page: unhandled decoder state %d", uint8(d.state)))
		}
	}
}

// Decode runs the page to completion. On a fatal error it returns the samples
// decoded before the fault together with the error.
func (d *Decoder) Decode() ([]sample.Sample, error) {
	var out []sample.Sample
	for {
		s, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

// DecodePage decodes buf with a fresh decoder.
func DecodePage(buf []byte, opts Options) ([]sample.Sample, Stats, error) {
	d := NewDecoder(buf, opts)
	samples, err := d.Decode()
	return samples, d.Stats(), err
}

// stop moves the decoder to a terminal state. Underflow ends the page cleanly.
func (d *Decoder) stop(err error) error {
	d.stats.TrailingBytes = d.cur.Len() - d.stats.ConsumedBytes
	if errors.Is(err, ErrBufferUnderflow) {
		d.state = StateDone
		return io.EOF
	}
	d.state = StateFatal
	d.err = err
	return err
}

func (d *Decoder) readHeader() error {
	for i, want := range magic {
		got, err := d.cur.Next()
		if err != nil {
			return err
		}
		if got != want {
			return &UnexpectedByteError{Expected: want, Got: got, Index: i}
		}
	}
	return nil
}

// scanTag reads one doubled tag. It returns kind 0 when a byte was skipped.
func (d *Decoder) scanTag() (sample.Kind, error) {
	start := d.cur.Offset()
	first, err := d.cur.Next()
	if err != nil {
		return 0, err
	}
	second, err := d.cur.Peek()
	if err != nil {
		return 0, err
	}
	if first != second {
		if d.opts.DesyncPolicy == DesyncFatal {
			return 0, &DesyncError{Got: first, Next: second, Index: start}
		}
		d.stats.SkippedBytes++
		return 0, nil
	}
	if _, err := d.cur.Next(); err != nil {
		return 0, err
	}

	kind, ok := sample.KindForTag(first)
	if !ok {
		return 0, &UnknownTagError{Tag: first, Index: start}
	}
	d.tagOffset = start
	return kind, nil
}

func (d *Decoder) dispatch() (sample.Sample, error) {
	layout := d.pending.Layout()
	raw := sample.Raw{Kind: d.pending}
	for i := 0; i < layout.Fields; i++ {
		switch layout.Width {
		case 2:
			v, err := d.cur.ReadInt16LE()
			if err != nil {
				return sample.Sample{}, err
			}
			raw.Fields[i] = int32(v)
		case 4:
			v, err := d.cur.ReadInt32LE()
			if err != nil {
				return sample.Sample{}, err
			}
			raw.Fields[i] = v
		default:
			panic(fmt.Sprintf("page: unsupported field width %d", layout.Width))
		}
	}

	s := sample.Convert(raw)
	d.stats.Records++
	d.stats.ConsumedBytes = d.cur.Offset()
	if d.opts.Trace != nil {
		d.opts.Trace(Record{Offset: d.tagOffset, Raw: raw, Sample: s})
	}
	return s, nil
}
