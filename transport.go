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

package mfrc522

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Conn is the full-duplex byte exchange the register layer runs on. Tx
// clocks out w and fills r with the same number of bytes clocked in.
// periph.io's spi.Conn satisfies it directly.
type Conn interface {
	Tx(w, r []byte) error
}

// Pin is one digital output line: chip select or reset/power-down.
// periph.io's gpio.PinOut satisfies it directly.
type Pin interface {
	Out(l gpio.Level) error
}

// NoPin is used for a line that is not wired to a GPIO, e.g. when the SPI
// controller drives chip select itself or RST is tied high.
var NoPin Pin = noPin{}

type noPin struct{}

func (noPin) Out(gpio.Level) error { return nil }

// Delay blocks the calling goroutine for d. The driver uses it for the fixed
// transceive and reset settle windows; tests substitute a no-op.
type Delay func(d time.Duration)

// TransportType represents the host interface the chip is wired with
type TransportType string

const (
	// TransportSPI represents SPI bus transport.
	TransportSPI TransportType = "spi"
	// TransportI2C represents the MFRC522 I2C host interface.
	TransportI2C TransportType = "i2c"
	// TransportUART represents the MFRC522 UART host interface.
	TransportUART TransportType = "uart"
	// TransportMock represents a simulated chip for testing
	TransportMock TransportType = "mock"
)

// Bus bundles an opened transport with the lines wired next to it. The
// transport packages return a Bus so callers can hand it to Open.
type Bus interface {
	// Conn returns the byte exchange for register access
	Conn() Conn
	// ChipSelect returns the chip select line, or NoPin
	ChipSelect() Pin
	// ResetLine returns the reset/power-down line, or NoPin
	ResetLine() Pin
	// Type returns the transport type
	Type() TransportType
	// String returns the port name for logs and errors
	String() string
	// Close releases the port
	Close() error
}

// Open creates a Device on an opened Bus. Closing the Device closes the Bus.
// On error the Bus is left open for the caller to close.
func Open(bus Bus, opts ...Option) (*Device, error) {
	opts = append([]Option{WithPortName(bus.String())}, opts...)
	device, err := New(bus.Conn(), bus.ChipSelect(), bus.ResetLine(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s device %s: %w", bus.Type(), bus, err)
	}
	device.bus = bus
	return device, nil
}
