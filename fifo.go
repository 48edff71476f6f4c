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

// readFifo pops n bytes with one register read each.
func (d *Device) readFifo(n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		b, err := d.readRegister(FIFODataReg)
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

func (d *Device) readFifoByte() (byte, error) {
	return d.readRegister(FIFODataReg)
}

// readFifoShort pops two bytes as a little-endian value, low byte first.
func (d *Device) readFifoShort() (uint16, error) {
	buf, err := d.readFifo(2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[1])<<8 | uint16(buf[0]), nil
}

func (d *Device) writeFifo(data ...byte) error {
	for _, b := range data {
		if err := d.writeRegister(FIFODataReg, b); err != nil {
			return err
		}
	}
	return nil
}

// fifoLevel returns the number of bytes queued in the FIFO.
func (d *Device) fifoLevel() (int, error) {
	level, err := d.readRegister(FIFOLevelReg)
	if err != nil {
		return 0, err
	}
	return int(level), nil
}
