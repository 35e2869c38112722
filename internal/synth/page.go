// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package synth builds recorder pages in the on-flash format. Tests use it to
// craft exact byte layouts and the demo tool uses it to fake a flight.
package synth

import (
	"bytes"
	"encoding/binary"

	"github.com/relabs-tech/novafc_decoder/internal/page"
)

// Builder appends records to a page buffer.
type Builder struct {
	buf bytes.Buffer
}

// NewPage starts a page with the magic header.
func NewPage() *Builder {
	b := &Builder{}
	hdr := page.Magic()
	b.buf.Write(hdr[:])
	return b
}

// Empty starts a buffer without a header, for malformed-page tests.
func Empty() *Builder {
	return &Builder{}
}

// Accel appends a doubled 'A' record.
func (b *Builder) Accel(x, y, z int16) *Builder {
	b.buf.Write([]byte{'A', 'A'})
	b.int16s(x, y, z)
	return b
}

// Gyro appends a doubled 'G' record.
func (b *Builder) Gyro(x, y, z int16) *Builder {
	b.buf.Write([]byte{'G', 'G'})
	b.int16s(x, y, z)
	return b
}

// Baro appends a doubled 'B' record. rawTemp is in hundredths of °C.
func (b *Builder) Baro(rawTemp, pressurePascal int32) *Builder {
	b.buf.Write([]byte{'B', 'B'})
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], uint32(rawTemp))
	b.buf.Write(w[:])
	binary.LittleEndian.PutUint32(w[:], uint32(pressurePascal))
	b.buf.Write(w[:])
	return b
}

// Raw appends arbitrary bytes (noise, truncated payloads, bad tags).
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf.Write(p)
	return b
}

// Len is the current page length.
func (b *Builder) Len() int { return b.buf.Len() }

// Bytes returns a copy of the page.
func (b *Builder) Bytes() []byte {
	return bytes.Clone(b.buf.Bytes())
}

func (b *Builder) int16s(v ...int16) {
	var w [2]byte
	for _, x := range v {
		binary.LittleEndian.PutUint16(w[:], uint16(x))
		b.buf.Write(w[:])
	}
}
