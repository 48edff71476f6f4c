// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package i2c exposes the MFRC522 I2C host interface as the register bus the
// driver expects. Register transfers framed for SPI are decoded and replayed
// as I2C register accesses.
package i2c

import (
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-mfrc522"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddr is the 7-bit address of RC522 I2C modules with EA low
	// and ADR pins strapped to 0b0101000.
	DefaultAddr uint16 = 0x28

	// Max clock frequency (400 kHz Fast mode).
	maxClockFreq = 400 * physic.KiloHertz

	spiReadFlag byte = 0x80
)

// Config selects the I2C bus, the chip address and the reset line.
type Config struct {
	// Bus is the i2creg bus name, e.g. "/dev/i2c-1" or "1". A detection
	// path of the form "/dev/i2c-1:0x28" is accepted.
	Bus string
	// ResetPin drives NRSTPD. Empty when the line is tied high.
	ResetPin string
	// Addr is the 7-bit chip address. Zero uses DefaultAddr.
	Addr uint16
}

// Transport implements mfrc522.Bus over I2C
type Transport struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser // Held so Close() can release the OS file descriptor
	rst     mfrc522.Pin
	busName string
}

// parseI2CPath extracts the bus path from a composite detection path.
// Accepts "/dev/i2c-1:0x28" (detection format) or "/dev/i2c-1" (bare bus).
func parseI2CPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens the I2C bus and the reset line
func New(cfg Config) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	rst := mfrc522.NoPin
	if cfg.ResetPin != "" {
		pin := gpioreg.ByName(cfg.ResetPin)
		if pin == nil {
			return nil, fmt.Errorf("%w: GPIO %s", mfrc522.ErrDeviceNotFound, cfg.ResetPin)
		}
		rst = pin
	}

	bus, err := i2creg.Open(parseI2CPath(cfg.Bus))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", cfg.Bus, err)
	}

	transport, err := newTransport(bus, rst, cfg)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return transport, nil
}

// Open is New followed by mfrc522.Open. The bus is closed if the chip
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

func newTransport(bus i2c.BusCloser, rst mfrc522.Pin, cfg Config) (*Transport, error) {
	addr := cfg.Addr
	if addr == 0 {
		addr = DefaultAddr
	}

	// Ignore error, continue with default speed
	_ = bus.SetSpeed(maxClockFreq)

	if err := rst.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to drive reset line high: %w", err)
	}

	name := parseI2CPath(cfg.Bus)
	if name == "" {
		name = bus.String()
	}

	return &Transport{
		dev:     &i2c.Dev{Addr: addr, Bus: bus},
		bus:     bus,
		rst:     rst,
		busName: fmt.Sprintf("%s:0x%02X", name, addr),
	}, nil
}

// Tx decodes an SPI register frame and performs it over I2C. A write
// frame sends the register address followed by the data bytes. A read
// frame reads the register once for each byte after the address, leaving
// r[0] zero like the SPI interface.
//
//nolint:varnamelen // Interface compliance requires these parameter names
func (t *Transport) Tx(w, r []byte) error {
	if t.bus == nil {
		return mfrc522.NewTransportClosedError("i2c", t.busName)
	}
	if len(w) == 0 {
		return nil
	}
	reg := (w[0] >> 1) & 0x3F

	if w[0]&spiReadFlag == 0 {
		buf := make([]byte, 0, len(w))
		buf = append(buf, reg)
		buf = append(buf, w[1:]...)
		if err := t.dev.Tx(buf, nil); err != nil {
			return fmt.Errorf("i2c write register 0x%02X: %w", reg, err)
		}
		return nil
	}

	if len(r) != len(w) {
		return fmt.Errorf("%w: read buffer %d bytes, frame %d", mfrc522.ErrShortExchange, len(r), len(w))
	}
	r[0] = 0
	for i := 1; i < len(w); i++ {
		if err := t.dev.Tx([]byte{reg}, r[i:i+1]); err != nil {
			return fmt.Errorf("i2c read register 0x%02X: %w", reg, err)
		}
	}
	return nil
}

// Conn returns the transport itself
func (t *Transport) Conn() mfrc522.Conn {
	return t
}

// ChipSelect returns NoPin; I2C has no chip select
func (*Transport) ChipSelect() mfrc522.Pin {
	return mfrc522.NoPin
}

// ResetLine returns the NRSTPD line
func (t *Transport) ResetLine() mfrc522.Pin {
	return t.rst
}

// Type returns the transport type
func (*Transport) Type() mfrc522.TransportType {
	return mfrc522.TransportI2C
}

// String returns the bus name and chip address
func (t *Transport) String() string {
	return t.busName
}

// Close closes the I2C bus
func (t *Transport) Close() error {
	if t.bus == nil {
		return nil
	}
	err := t.bus.Close()
	t.bus = nil
	if err != nil {
		return fmt.Errorf("failed to close I2C bus: %w", err)
	}
	return nil
}

var _ mfrc522.Bus = (*Transport)(nil)
