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

import "fmt"

// SelectTag sends SELECT for cascade level 1 with the full UID and reports
// whether the card answered with exactly one SAK byte of a MIFARE Classic 1K.
func (d *Device) SelectTag(uid UID) (bool, error) {
	d.begin("SelectTag")

	full := uid.Full()
	payload := make([]byte, 0, 2+len(full))
	payload = append(payload, PICCSelect1, PICCSelect2)
	payload = append(payload, full[:]...)

	if err := d.transceive(true, payload...); err != nil {
		return false, err
	}

	level, err := d.fifoLevel()
	if err != nil {
		return false, err
	}
	if level != 1 {
		return false, nil
	}
	sak, err := d.readFifoByte()
	if err != nil {
		return false, err
	}
	return sak == PICCSelectAcknowledge, nil
}

// ReadBlock authenticates block with key and reads its 16 bytes. A key of
// kind KeyNone returns ErrMissingKey without touching the bus.
//
// The authentication step has no success signal of its own. When the card
// refuses the key the FIFO holds no block data, and the bytes returned are
// whatever the FIFO read yields, so callers that must know should compare
// against expected content or use WriteBlock's acknowledge.
func (d *Device) ReadBlock(block byte, uid UID, key AuthKey) ([]byte, error) {
	if !key.IsSet() {
		return nil, ErrMissingKey
	}
	d.begin("ReadBlock")

	if err := d.authenticate(key, block, uid); err != nil {
		return nil, err
	}
	if err := d.transceive(true, PICCRead, block); err != nil {
		return nil, err
	}
	return d.readFifo(blockSize)
}

// WriteBlock authenticates block with key and writes data, zero padded to 16
// bytes. It returns true only when the card acknowledged both the WRITE
// command and the data frame. A key of kind KeyNone returns ErrMissingKey and
// data longer than a block returns ErrDataTooLarge, both without bus traffic.
func (d *Device) WriteBlock(block byte, uid UID, data []byte, key AuthKey) (bool, error) {
	if !key.IsSet() {
		return false, ErrMissingKey
	}
	if len(data) > blockSize {
		return false, fmt.Errorf("%w: block data is %d bytes, max %d", ErrDataTooLarge, len(data), blockSize)
	}
	d.begin("WriteBlock")

	if err := d.authenticate(key, block, uid); err != nil {
		return false, err
	}
	if err := d.transceive(true, PICCWrite, block); err != nil {
		return false, err
	}
	ack, err := d.readFifoByte()
	if err != nil {
		return false, err
	}
	if ack != PICCAcknowledge {
		debugf("write to block %d refused: %02X", block, ack)
		return false, nil
	}

	buf := make([]byte, blockSize)
	copy(buf, data)
	if err := d.transceive(true, buf...); err != nil {
		return false, err
	}
	ack, err = d.readFifoByte()
	if err != nil {
		return false, err
	}
	return ack == PICCAcknowledge, nil
}

// HaltTag sends HLTA. The selected card stops answering REQA until it
// leaves and re-enters the field, so presence tracking drops it once the
// absence threshold is reached.
func (d *Device) HaltTag() error {
	d.begin("HaltTag")
	return d.transceive(true, PICCHalt, 0x00)
}
