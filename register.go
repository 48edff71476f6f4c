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

package mfrc522

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// readFrame encodes a register address for an SPI read: address in bits
// 6..1, bit 7 set.
func readFrame(reg Register) byte {
	return byte(reg)<<1 | spiReadFlag
}

// writeFrame encodes a register address for an SPI write: bit 7 clear.
func writeFrame(reg Register) byte {
	return byte(reg) << 1
}

// exchange runs one bus transfer inside a chip select window. Chip select
// is released even when the transfer fails.
func (d *Device) exchange(w []byte, note string) ([]byte, error) {
	r := make([]byte, len(w))

	if err := d.cs.Out(gpio.Low); err != nil {
		return nil, d.lineError("chip select", ErrChipSelectFailed, err)
	}
	d.trace.RecordTX(w, note)
	txErr := d.conn.Tx(w, r)
	csErr := d.cs.Out(gpio.High)

	if txErr != nil {
		return nil, d.trace.WrapError(d.busError(txErr))
	}
	if csErr != nil {
		return nil, d.lineError("chip deselect", ErrChipSelectFailed, csErr)
	}
	d.trace.RecordRX(r, note)
	return r, nil
}

// busError classifies a failed transfer. Errors the transport already
// classified pass through; a vanished device node is permanent.
func (d *Device) busError(err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	errType := ErrorTypeTransient
	if isDeviceGoneError(err) {
		errType = ErrorTypePermanent
	}
	return NewTransportError("exchange", d.port, fmt.Errorf("%w: %w", ErrTransportRead, err), errType)
}

func (d *Device) readRegister(reg Register) (byte, error) {
	r, err := d.exchange([]byte{readFrame(reg), 0x00}, "read "+reg.String())
	if err != nil {
		return 0, err
	}
	return r[1], nil
}

func (d *Device) writeRegister(reg Register, value byte) error {
	_, err := d.exchange([]byte{writeFrame(reg), value}, "write "+reg.String())
	return err
}

// setRegisterBits is a read-modify-write of two transactions; it relies on
// the Device being the only bus user.
func (d *Device) setRegisterBits(reg Register, mask byte) error {
	current, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, current|mask)
}

func (d *Device) clearRegisterBits(reg Register, mask byte) error {
	current, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, current&^mask)
}

var registerNames = map[Register]string{
	CommandReg:    "CommandReg",
	ComIEnReg:     "ComIEnReg",
	DivIEnReg:     "DivIEnReg",
	ComIrqReg:     "ComIrqReg",
	DivIrqReg:     "DivIrqReg",
	ErrorReg:      "ErrorReg",
	Status1Reg:    "Status1Reg",
	Status2Reg:    "Status2Reg",
	FIFODataReg:   "FIFODataReg",
	FIFOLevelReg:  "FIFOLevelReg",
	WaterLevelReg: "WaterLevelReg",
	ControlReg:    "ControlReg",
	BitFramingReg: "BitFramingReg",
	CollReg:       "CollReg",
	ModeReg:       "ModeReg",
	TxModeReg:     "TxModeReg",
	RxModeReg:     "RxModeReg",
	TxControlReg:  "TxControlReg",
	TxASKReg:      "TxASKReg",
	TModeReg:      "TModeReg",
	TPrescalerReg: "TPrescalerReg",
	TReloadRegH:   "TReloadRegH",
	TReloadRegL:   "TReloadRegL",
	VersionReg:    "VersionReg",
}

// String returns the datasheet register name
func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reg(0x%02X)", byte(r))
}
