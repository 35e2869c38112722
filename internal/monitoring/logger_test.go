// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("decode: page %d", 64)
	assert.Equal(t, "decode: page 64", got)

	got = ""
	SetLogger(nil)
	Logf("decode: page %d", 65)
	assert.Empty(t, got, "nil logger must be a no-op")
}

func TestLogfDefault(t *testing.T) {
	assert.NotNil(t, Logf)
}
