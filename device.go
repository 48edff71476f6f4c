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

const (
	// DefaultTransceiveWait is the fixed budget a transceive or
	// authentication waits for the chip before reading the FIFO.
	DefaultTransceiveWait = 25 * time.Millisecond
	// DefaultResetSettle is held on each edge of the reset line.
	DefaultResetSettle = 50 * time.Millisecond
	// DefaultAbsenceThreshold is the number of consecutive silent polls
	// after which the current tag is considered gone.
	DefaultAbsenceThreshold = 2

	defaultTraceSize = 32
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Delay blocks for the chip timing windows. Defaults to time.Sleep.
	Delay Delay
	// TransceiveWait is how long a command cycle waits before stopping
	TransceiveWait time.Duration
	// ResetSettle is how long each reset edge is held
	ResetSettle time.Duration
	// AbsenceThreshold is the silent poll count that drops the current tag
	AbsenceThreshold int
	// TraceSize bounds the wire trace attached to bus errors
	TraceSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Delay:            time.Sleep,
		TransceiveWait:   DefaultTransceiveWait,
		ResetSettle:      DefaultResetSettle,
		AbsenceThreshold: DefaultAbsenceThreshold,
		TraceSize:        defaultTraceSize,
	}
}

// Device represents an MFRC522 reader chip.
//
// Thread Safety: Device is NOT thread-safe. It owns the bus and both control
// lines for its lifetime, and the register read-modify-write helpers take two
// bus transactions. All methods must be called from a single goroutine or
// protected with external synchronization (see the polling package).
type Device struct {
	conn        Conn
	cs          Pin
	rst         Pin
	bus         Bus
	config      *DeviceConfig
	trace       *TraceBuffer
	uid         *UID
	port        string
	absentCount int
}

// New creates a Device on conn with the given chip select and reset lines
// and runs Reset. Pass NoPin for a line that is not wired.
func New(conn Conn, cs, rst Pin, opts ...Option) (*Device, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil conn", ErrInvalidParameter)
	}
	if cs == nil {
		cs = NoPin
	}
	if rst == nil {
		rst = NoPin
	}

	device := &Device{
		conn:   conn,
		cs:     cs,
		rst:    rst,
		config: DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if err := device.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset device: %w", err)
	}

	return device, nil
}

// Reset pulses the reset/power-down line and configures the chip for
// ISO 14443A: 100% ASK modulation, CRC preset 0x6363 and the antenna on.
// It may be called again to recover a wedged chip. The framing registers a
// transceive touches are written back to their power-on values, so Reset
// also recovers a chip whose reset line is not wired.
func (d *Device) Reset() error {
	d.begin("Reset")

	if err := d.rst.Out(gpio.Low); err != nil {
		return d.lineError("reset low", ErrResetLineFailed, err)
	}
	d.config.Delay(d.config.ResetSettle)
	if err := d.rst.Out(gpio.High); err != nil {
		return d.lineError("reset high", ErrResetLineFailed, err)
	}
	d.config.Delay(d.config.ResetSettle)

	for _, reg := range []Register{TxModeReg, RxModeReg, BitFramingReg} {
		if err := d.writeRegister(reg, 0x00); err != nil {
			return err
		}
	}
	if err := d.writeRegister(TxASKReg, force100ASK); err != nil {
		return err
	}
	if err := d.writeRegister(ModeReg, modeCRCPreset); err != nil {
		return err
	}
	if err := d.setRegisterBits(TxControlReg, antennaOn); err != nil {
		return err
	}

	debugln("MFRC522 reset complete")
	return nil
}

// CurrentUID returns the tag the presence tracker currently holds.
func (d *Device) CurrentUID() (UID, bool) {
	if d.uid == nil {
		return UID{}, false
	}
	return *d.uid, true
}

// ForgetTag drops the current tag so the next IsNewTagPresent that sees it
// reports it as new again.
func (d *Device) ForgetTag() {
	d.uid = nil
	d.absentCount = 0
}

// Version reads VersionReg. Genuine chips report 0x91 (v1.0) or 0x92 (v2.0).
func (d *Device) Version() (byte, error) {
	d.begin("Version")
	return d.readRegister(VersionReg)
}

// AntennaOn enables both antenna drivers.
func (d *Device) AntennaOn() error {
	d.begin("AntennaOn")
	return d.setRegisterBits(TxControlReg, antennaOn)
}

// AntennaOff disables both antenna drivers. Tags in the field lose power.
func (d *Device) AntennaOff() error {
	d.begin("AntennaOff")
	return d.clearRegisterBits(TxControlReg, antennaOn)
}

// ReadRegister reads one register. Intended for diagnostics.
func (d *Device) ReadRegister(reg Register) (byte, error) {
	d.begin("ReadRegister")
	return d.readRegister(reg)
}

// WriteRegister writes one register. Intended for diagnostics.
func (d *Device) WriteRegister(reg Register, value byte) error {
	d.begin("WriteRegister")
	return d.writeRegister(reg, value)
}

// Config returns a copy of the device configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Close releases the Bus when the Device was created with Open. The
// control lines are left at their last level.
func (d *Device) Close() error {
	if d.bus == nil {
		return nil
	}
	if err := d.bus.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	d.bus = nil
	return nil
}

// begin starts a fresh wire trace for a public operation.
func (d *Device) begin(op string) {
	d.trace = NewTraceBuffer(op, d.config.TraceSize)
}

// lineError wraps a control line failure as a transient transport error.
func (d *Device) lineError(op string, kind, err error) error {
	return d.trace.WrapError(NewTransportError(op, d.port, fmt.Errorf("%w: %w", kind, err), ErrorTypeTransient))
}
