// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
	"github.com/relabs-tech/novafc_decoder/internal/synth"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestScannerSkipsShortLinesAndNumbersPages(t *testing.T) {
	flight := synth.DefaultFlight
	flight.PageCount = 3
	lines := flight.Lines()
	pages := flight.Pages()

	input := []string{
		"NovaFC recorder dump v1",
		lines[0],
		"",
		strings.Repeat("x", DefaultMinLineLength), // exactly at threshold: skipped
		lines[1],
		"> done",
		lines[2] + "\r",
	}
	sc := NewScanner(Literal(input...), DefaultOptions())
	got, err := sc.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Page{Index: 64, Line: 2, Bytes: pages[0]}, got[0])
	assert.Equal(t, Page{Index: 65, Line: 5, Bytes: pages[1]}, got[1])
	assert.Equal(t, Page{Index: 66, Line: 7, Bytes: pages[2]}, got[2])
	assert.Equal(t, 4, sc.SkippedLines())

	_, err = sc.Next()
	assert.Equal(t, io.EOF, err)
}

func TestScannerStopsAfterLastPage(t *testing.T) {
	lines := synth.DefaultFlight.Lines()
	opts := DefaultOptions()
	opts.FirstPageIndex = 1866
	sc := NewScanner(Literal(lines...), opts)

	got, err := sc.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1868, got[2].Index)

	opts.LastPageIndex = 0
	got, err = NewScanner(Literal(lines...), opts).ReadAll()
	require.NoError(t, err)
	assert.Len(t, got, len(lines))
}

func TestScannerHexEncoding(t *testing.T) {
	pg := synth.NewPage().Accel(1, 2, 3).Bytes()
	opts := DefaultOptions()
	opts.Encoding = EncodingHex
	opts.MinLineLength = 10

	got, err := NewScanner(Literal("short", hex.EncodeToString(pg)), opts).ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pg, got[0].Bytes)
	assert.Equal(t, 2, got[0].Line)
}

func TestScannerRejectsMalformedLine(t *testing.T) {
	opts := DefaultOptions()
	opts.MinLineLength = 3
	good := base64.StdEncoding.EncodeToString([]byte("NOVA"))

	sc := NewScanner(Literal(good, "!!not base64!!"), opts)
	got, err := sc.ReadAll()
	require.Len(t, got, 1)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Line)
	assert.Equal(t, EncodingBase64, de.Encoding)
	assert.Contains(t, err.Error(), "line 2")

	_, err = sc.Next()
	assert.Equal(t, io.EOF, err)
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in          string
		want        Encoding
		name        string
		expectError bool
	}{
		{in: "base64", want: EncodingBase64, name: "base64"},
		{in: "", want: EncodingBase64, name: "base64"},
		{in: " HEX ", want: EncodingHex, name: "hex"},
		{in: "base32", expectError: true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if tt.expectError {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.name, got.String())
	}
}

func TestFeedClosesChannel(t *testing.T) {
	lines := synth.DefaultFlight.Lines()
	out := make(chan Page)
	errc := make(chan error, 1)
	go func() { errc <- NewScanner(Literal(lines...), DefaultOptions()).Feed(context.Background(), out) }()

	n := 0
	for range out {
		n++
	}
	assert.Equal(t, len(lines), n)
	assert.NoError(t, <-errc)
}

func TestFeedHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan Page)
	err := NewScanner(Literal(synth.DefaultFlight.Lines()...), DefaultOptions()).Feed(ctx, out)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := <-out
	assert.False(t, ok)
}

type fakePort struct {
	io.Reader
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *fakePort) Close() error               { p.closed = true; return nil }

func TestOpenSerial(t *testing.T) {
	lines := synth.DefaultFlight.Lines()[:2]
	port := &fakePort{Reader: bytes.NewBufferString(strings.Join(lines, "\r\n") + "\r\n")}

	var gotOpts serial.OpenOptions
	orig := openPort
	openPort = func(o serial.OpenOptions) (io.ReadWriteCloser, error) {
		gotOpts = o
		return port, nil
	}
	t.Cleanup(func() { openPort = orig })

	src, err := OpenSerial(SerialConfig{PortName: "/dev/ttyUSB0", BaudRate: 115200}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", gotOpts.PortName)
	assert.Equal(t, uint(115200), gotOpts.BaudRate)

	pages, err := src.ReadAll()
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	require.NoError(t, src.Close())
	assert.True(t, port.closed)
}

func TestOpenSerialError(t *testing.T) {
	orig := openPort
	openPort = func(serial.OpenOptions) (io.ReadWriteCloser, error) { return nil, errors.New("no such device") }
	t.Cleanup(func() { openPort = orig })

	_, err := OpenSerial(SerialConfig{PortName: "/dev/nope", BaudRate: 9600}, DefaultOptions())
	assert.ErrorContains(t, err, "no such device")
}
