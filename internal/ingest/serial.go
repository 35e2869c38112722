// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"fmt"
	"io"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/novafc_decoder/internal/monitoring"
)

// SerialConfig names the port the flight computer dumps its recorder on.
type SerialConfig struct {
	PortName string
	BaudRate uint
}

// openPort is replaced in tests.
var openPort = func(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	return serial.Open(opts)
}

// SerialSource is a page scanner reading directly from the flight computer.
type SerialSource struct {
	*Scanner
	port io.ReadWriteCloser
	name string
}

// OpenSerial opens the port and wraps it in a Scanner. The caller must Close it.
func OpenSerial(cfg SerialConfig, opts Options) (*SerialSource, error) {
	serialOpts := serial.OpenOptions{
		PortName:              cfg.PortName,
		BaudRate:              cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := openPort(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("ingest: open serial %s: %w", cfg.PortName, err)
	}
	monitoring.Logf("capture: serial port opened on %s at %d baud", cfg.PortName, cfg.BaudRate)
	return &SerialSource{Scanner: NewScanner(port, opts), port: port, name: cfg.PortName}, nil
}

// Close releases the port.
func (s *SerialSource) Close() error {
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("ingest: close serial %s: %w", s.name, err)
	}
	return nil
}
