// go-mfrc522
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-mfrc522.
//
// go-mfrc522 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-mfrc522 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-mfrc522; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package uart exposes the MFRC522 UART host interface as the register bus
// the driver expects. Register transfers framed for SPI are decoded and
// replayed as the chip's one-byte address/data UART protocol.
package uart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	// DefaultBaudRate is the chip's rate after reset. Other rates need
	// SerialSpeedReg reprogrammed first.
	DefaultBaudRate = 9600

	spiReadFlag  byte = 0x80
	uartReadFlag byte = 0x80
)

var errNoResponse = errors.New("no response from chip")

// Config selects the serial port and the reset line.
type Config struct {
	// Port is the serial device, e.g. "/dev/ttyUSB0" or "COM3".
	Port string
	// ResetPin drives NRSTPD. Empty when the line is tied high or not
	// reachable from the host.
	ResetPin string
	// BaudRate is the line rate. Zero uses DefaultBaudRate.
	BaudRate int
}

// Transport implements mfrc522.Bus over the chip's UART interface
type Transport struct {
	port     serial.Port
	rst      mfrc522.Pin
	portName string
	timeout  time.Duration
	mu       syncutil.Mutex
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// getWindowsTimeout returns Windows-specific timeout values
func getWindowsTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens the serial port at 8N1 and the reset line
func New(cfg Config) (*Transport, error) {
	rst := mfrc522.NoPin
	if cfg.ResetPin != "" {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize periph host: %w", err)
		}
		pin := gpioreg.ByName(cfg.ResetPin)
		if pin == nil {
			return nil, fmt.Errorf("%w: GPIO %s", mfrc522.ErrDeviceNotFound, cfg.ResetPin)
		}
		rst = pin
	}

	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", cfg.Port, err)
	}

	transport, err := newTransport(port, rst, cfg.Port)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return transport, nil
}

// Open is New followed by mfrc522.Open. The port is closed if the chip
// fails to reset.
func Open(cfg Config, opts ...mfrc522.Option) (*mfrc522.Device, error) {
	transport, err := New(cfg)
	if err != nil {
		return nil, err
	}
	device, err := mfrc522.Open(transport, opts...)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return device, nil
}

func newTransport(port serial.Port, rst mfrc522.Pin, name string) (*Transport, error) {
	// 50ms proven to work on Linux/Mac, 100ms needed for Windows stability
	timeout := getWindowsTimeout()
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("failed to reset UART input buffer: %w", err)
	}
	if err := rst.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to drive reset line high: %w", err)
	}

	return &Transport{
		port:     port,
		rst:      rst,
		portName: name,
		timeout:  timeout,
	}, nil
}

// Tx decodes an SPI register frame and performs it over UART. Each data
// byte of a write frame is sent as address then value, and the chip echoes
// the address. Each position after the address of a read frame is one
// address byte with bit 7 set, answered by the register value.
//
//nolint:varnamelen // Interface compliance requires these parameter names
func (t *Transport) Tx(w, r []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return mfrc522.NewTransportClosedError("uart", t.portName)
	}
	if len(w) == 0 {
		return nil
	}
	reg := (w[0] >> 1) & 0x3F

	if w[0]&spiReadFlag == 0 {
		for _, b := range w[1:] {
			if err := t.writeRegister(reg, b); err != nil {
				return err
			}
		}
		return nil
	}

	if len(r) != len(w) {
		return fmt.Errorf("%w: read buffer %d bytes, frame %d", mfrc522.ErrShortExchange, len(r), len(w))
	}
	r[0] = 0
	for i := 1; i < len(w); i++ {
		value, err := t.readRegister(reg)
		if err != nil {
			return err
		}
		r[i] = value
	}
	return nil
}

func (t *Transport) writeRegister(reg, value byte) error {
	if err := t.write([]byte{reg, value}); err != nil {
		return err
	}
	echo, err := t.readByte()
	if err != nil {
		return fmt.Errorf("UART write register 0x%02X: %w", reg, err)
	}
	if echo != reg {
		return fmt.Errorf("%w: register 0x%02X echoed as 0x%02X",
			mfrc522.NewTransportWriteError("uart", t.portName), reg, echo)
	}
	return nil
}

func (t *Transport) readRegister(reg byte) (byte, error) {
	if err := t.write([]byte{reg | uartReadFlag}); err != nil {
		return 0, err
	}
	value, err := t.readByte()
	if err != nil {
		return 0, fmt.Errorf("UART read register 0x%02X: %w", reg, err)
	}
	return value, nil
}

func (t *Transport) write(data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("UART write failed: %w", err)
	}
	if n != len(data) {
		return mfrc522.NewTransportWriteError("write", t.portName)
	}
	return nil
}

// readByte reads one byte, retrying interrupted system calls. A read
// timeout surfaces as a transient read error.
func (t *Transport) readByte() (byte, error) {
	const maxRetries = 3
	buf := make([]byte, 1)

	for attempt := 0; attempt < maxRetries; attempt++ {
		n, err := t.port.Read(buf)
		if err != nil {
			if isInterruptedSystemCall(err) {
				continue
			}
			return 0, fmt.Errorf("%w: %w", mfrc522.ErrTransportRead, err)
		}
		if n == 1 {
			return buf[0], nil
		}
		return 0, fmt.Errorf("%w after %v: %w", errNoResponse, t.timeout,
			mfrc522.NewTransportReadError("read", t.portName))
	}
	return 0, mfrc522.NewTransportReadError("read", t.portName)
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// SetTimeout changes the per-byte read timeout
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return mfrc522.NewTransportClosedError("uart", t.portName)
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("UART set timeout failed: %w", err)
	}
	t.timeout = timeout
	return nil
}

// Conn returns the transport itself
func (t *Transport) Conn() mfrc522.Conn {
	return t
}

// ChipSelect returns NoPin; UART has no chip select
func (*Transport) ChipSelect() mfrc522.Pin {
	return mfrc522.NoPin
}

// ResetLine returns the NRSTPD line
func (t *Transport) ResetLine() mfrc522.Pin {
	return t.rst
}

// Type returns the transport type
func (*Transport) Type() mfrc522.TransportType {
	return mfrc522.TransportUART
}

// String returns the port name
func (t *Transport) String() string {
	return t.portName
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

var _ mfrc522.Bus = (*Transport)(nil)
