// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package page

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorPeekNext(t *testing.T) {
	c := NewCursor([]byte{0x10, 0x20})

	b, err := c.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), b)
	assert.Equal(t, 0, c.Offset(), "peek must not advance")

	b, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), b)
	b, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), b)
	assert.Equal(t, 2, c.Offset())
	assert.Equal(t, 0, c.Remaining())

	_, err = c.Peek()
	assert.ErrorIs(t, err, ErrBufferUnderflow)
	_, err = c.Next()
	assert.ErrorIs(t, err, ErrBufferUnderflow)
	assert.Equal(t, 2, c.Offset())
}

func TestCursorReadFixedIsAtomic(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	c := NewCursor(buf)

	got, err := c.ReadFixed(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got[0] = 99
	assert.Equal(t, byte(1), buf[0], "ReadFixed must return a copy")

	_, err = c.ReadFixed(3)
	assert.ErrorIs(t, err, ErrBufferUnderflow)
	assert.Equal(t, 3, c.Offset(), "failed read must not advance")

	_, err = c.ReadFixed(-1)
	assert.ErrorIs(t, err, ErrBufferUnderflow)

	got, err = c.ReadFixed(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, got)

	got, err = c.ReadFixed(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCursorLittleEndian(t *testing.T) {
	c := NewCursor([]byte{
		0xFF, 0x7F, // 32767
		0x00, 0x80, // -32768
		0xC4, 0x09, 0x00, 0x00, // 2500
		0xFF, 0xFF, 0xFF, 0xFF, // -1
		0x01,
	})

	v16, err := c.ReadInt16LE()
	require.NoError(t, err)
	assert.Equal(t, int16(math.MaxInt16), v16)

	v16, err = c.ReadInt16LE()
	require.NoError(t, err)
	assert.Equal(t, int16(math.MinInt16), v16)

	v32, err := c.ReadInt32LE()
	require.NoError(t, err)
	assert.Equal(t, int32(2500), v32)

	v32, err = c.ReadInt32LE()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v32)

	_, err = c.ReadInt16LE()
	assert.ErrorIs(t, err, ErrBufferUnderflow)
	_, err = c.ReadInt32LE()
	assert.ErrorIs(t, err, ErrBufferUnderflow)
	assert.Equal(t, 1, c.Remaining())
}

func TestCursorEmpty(t *testing.T) {
	c := NewCursor(nil)
	assert.Equal(t, 0, c.Len())
	_, err := c.Next()
	assert.ErrorIs(t, err, ErrBufferUnderflow)
}
