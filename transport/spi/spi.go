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

// Package spi opens an MFRC522 wired to a Linux spidev port, with chip
// select and reset driven from GPIO lines through periph.io.
package spi

import (
	"fmt"

	"github.com/ZaparooProject/go-mfrc522"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultFrequency is the SPI clock the driver was characterised at.
	// The chip accepts up to 10 MHz.
	DefaultFrequency = 1 * physic.MegaHertz

	mode = spi.Mode0 // CPOL=0, CPHA=0, MSB first
	bits = 8
)

// Config selects the SPI port and the GPIO lines wired to the chip.
// Pin names are periph gpioreg names such as "GPIO25" or "P1_22".
type Config struct {
	// Port is the spireg port name. Empty opens the first available port.
	Port string
	// ChipSelectPin drives NSS. Empty when the SPI controller drives it.
	ChipSelectPin string
	// ResetPin drives NRSTPD. Empty when the line is tied high.
	ResetPin string
	// Frequency is the SPI clock. Zero uses DefaultFrequency.
	Frequency physic.Frequency
}

// DefaultConfig returns the wiring used by the common Raspberry Pi RC522
// breakout: SPI0 CE0 with the hardware chip select and RST on GPIO25.
func DefaultConfig() Config {
	return Config{
		Port:      "/dev/spidev0.0",
		ResetPin:  "GPIO25",
		Frequency: DefaultFrequency,
	}
}

// Transport is an opened SPI port plus the chip select and reset lines.
// It implements mfrc522.Bus.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	cs       mfrc522.Pin
	rst      mfrc522.Pin
	portName string
}

// New initialises the periph host drivers, opens the SPI port and looks up
// the configured GPIO lines. Both lines are driven high before return.
func New(cfg Config) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	cs, err := lookupPin(cfg.ChipSelectPin)
	if err != nil {
		return nil, err
	}
	rst, err := lookupPin(cfg.ResetPin)
	if err != nil {
		return nil, err
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", cfg.Port, err)
	}

	transport, err := newTransport(port, cs, rst, cfg)
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

// newTransport connects an already opened port. Split from New for tests.
func newTransport(port spi.PortCloser, cs, rst mfrc522.Pin, cfg Config) (*Transport, error) {
	freq := cfg.Frequency
	if freq == 0 {
		freq = DefaultFrequency
	}

	conn, err := port.Connect(freq, mode, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	for _, line := range []mfrc522.Pin{cs, rst} {
		if err := line.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("failed to drive control line high: %w", err)
		}
	}

	name := cfg.Port
	if name == "" {
		name = port.String()
	}

	mfrc522.Debugf("SPI %s connected at %s", name, freq)
	return &Transport{
		port:     port,
		conn:     conn,
		cs:       cs,
		rst:      rst,
		portName: name,
	}, nil
}

// lookupPin resolves a gpioreg name. An empty name is an unwired line.
func lookupPin(name string) (mfrc522.Pin, error) {
	if name == "" {
		return mfrc522.NoPin, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: GPIO %s", mfrc522.ErrDeviceNotFound, name)
	}
	return pin, nil
}

// Conn returns the SPI connection
func (t *Transport) Conn() mfrc522.Conn {
	return t.conn
}

// ChipSelect returns the NSS line
func (t *Transport) ChipSelect() mfrc522.Pin {
	return t.cs
}

// ResetLine returns the NRSTPD line
func (t *Transport) ResetLine() mfrc522.Pin {
	return t.rst
}

// Type returns the transport type
func (*Transport) Type() mfrc522.TransportType {
	return mfrc522.TransportSPI
}

// String returns the port name
func (t *Transport) String() string {
	return t.portName
}

// Close closes the SPI port
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("failed to close SPI port: %w", err)
	}
	return nil
}

var _ mfrc522.Bus = (*Transport)(nil)
