// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package page

import "encoding/binary"

// Cursor is a bounds-checked sequential reader over a page buffer.
// It never writes to the buffer; the only mutable state is the offset, and a
// failed read leaves the offset where it was.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset is the index of the next unread byte.
func (c *Cursor) Offset() int { return c.off }

// Len is the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining is the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

func (c *Cursor) ensure(n int) error {
	if n < 0 || n > len(c.buf)-c.off {
		return ErrBufferUnderflow
	}
	return nil
}

// Peek returns the next byte without advancing.
func (c *Cursor) Peek() (byte, error) {
	if err := c.ensure(1); err != nil {
		return 0, err
	}
	return c.buf[c.off], nil
}

// Next returns the next byte and advances past it.
func (c *Cursor) Next() (byte, error) {
	if err := c.ensure(1); err != nil {
		return 0, err
	}
	b := c.buf[c.off]
	c.off++
	return b, nil
}

// ReadFixed returns a copy of the next width bytes and advances past them.
func (c *Cursor) ReadFixed(width int) ([]byte, error) {
	if err := c.ensure(width); err != nil {
		return nil, err
	}
	out := make([]byte, width)
	c.off += copy(out, c.buf[c.off:c.off+width])
	return out, nil
}

// readInto fills dst with the same all-or-nothing semantics as ReadFixed.
func (c *Cursor) readInto(dst []byte) error {
	if err := c.ensure(len(dst)); err != nil {
		return err
	}
	c.off += copy(dst, c.buf[c.off:c.off+len(dst)])
	return nil
}

// ReadInt16LE reads a little-endian two's-complement 16-bit integer.
func (c *Cursor) ReadInt16LE() (int16, error) {
	var b [2]byte
	if err := c.readInto(b[:]); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b[:])), nil
}

// ReadInt32LE reads a little-endian two's-complement 32-bit integer.
func (c *Cursor) ReadInt32LE() (int32, error) {
	var b [4]byte
	if err := c.readInto(b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}
