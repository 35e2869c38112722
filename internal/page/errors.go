// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package page

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferUnderflow reports a read past the end of the page. The decoder
	// treats it as the normal end of a page and never returns it.
	ErrBufferUnderflow = errors.New("page: buffer underflow")

	// ErrFatal matches (via errors.Is) every error that makes a page
	// undecodable: header mismatch, unknown tag and, under DesyncFatal,
	// an unmatched tag byte.
	ErrFatal = errors.New("page: fatal decode error")
)

// UnexpectedByteError is a magic header mismatch.
type UnexpectedByteError struct {
	Expected byte
	Got      byte
	Index    int
}

func (e *UnexpectedByteError) Error() string {
	return fmt.Sprintf("page: unexpected byte 0x%02x, expected 0x%02x (%q) at index %d",
		e.Got, e.Expected, rune(e.Expected), e.Index)
}

func (e *UnexpectedByteError) Is(target error) bool { return target == ErrFatal }

// UnknownTagError is a correctly doubled tag byte that names no known sensor.
type UnknownTagError struct {
	Tag   byte
	Index int
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("page: unknown doubled tag 0x%02x at index %d", e.Tag, e.Index)
}

func (e *UnknownTagError) Is(target error) bool { return target == ErrFatal }

// DesyncError is a tag candidate that was not repeated, returned only under
// DesyncFatal.
type DesyncError struct {
	Got   byte
	Next  byte
	Index int
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("page: lost tag sync at index %d: 0x%02x followed by 0x%02x", e.Index, e.Got, e.Next)
}

func (e *DesyncError) Is(target error) bool { return target == ErrFatal }
