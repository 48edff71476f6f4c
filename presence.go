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

// IsTagPresent sends REQA as a 7-bit short frame and reports whether a
// card answered with exactly the two ATQA bytes of a MIFARE Classic card.
func (d *Device) IsTagPresent() (bool, error) {
	d.begin("IsTagPresent")
	return d.isTagPresent()
}

func (d *Device) isTagPresent() (bool, error) {
	if err := d.request(); err != nil {
		return false, err
	}

	level, err := d.fifoLevel()
	if err != nil {
		return false, err
	}
	if level != 2 {
		return false, nil
	}
	atqa, err := d.readFifoShort()
	if err != nil {
		return false, err
	}
	return atqa == PICCAnswerToRequest, nil
}

// IsNewTagPresent polls for a tag and tracks arrival and departure. It
// returns true only when a tag with a valid UID different from the current
// one answers; that UID becomes current. The current UID is dropped after
// AbsenceThreshold consecutive polls without an answer, so a single missed
// poll does not deregister a card that is still in the field.
func (d *Device) IsNewTagPresent() (bool, error) {
	d.begin("IsNewTagPresent")

	present, err := d.isTagPresent()
	if err != nil {
		return false, err
	}

	if present {
		uid, complete, err := d.readUID()
		if err != nil {
			return false, err
		}
		valid := complete && uid.IsValid()

		if valid && (d.uid == nil || !uid.Equal(*d.uid)) {
			d.uid = &uid
			d.absentCount = 0
			debugf("new tag %s", uid)
			return true, nil
		}
		switch {
		case !complete:
			debugf("ignoring tag with a short anticollision answer")
		case !valid:
			debugf("ignoring tag with bad check byte: %s", uid.DebugString())
		}
		d.absentCount = 0
		return false, nil
	}

	if d.uid != nil {
		d.absentCount++
		if d.absentCount >= d.config.AbsenceThreshold {
			debugf("tag %s left the field after %d silent polls", *d.uid, d.absentCount)
			d.uid = nil
			d.absentCount = 0
		}
	}
	return false, nil
}

// request sends REQA as a short frame. TxLastBits is returned to whole
// bytes even when the exchange fails.
func (d *Device) request() (err error) {
	defer func() {
		err = keepFirst(err, func() error { return d.writeRegister(BitFramingReg, 0x00) })
	}()
	if err := d.writeRegister(BitFramingReg, shortFrameBits); err != nil {
		return err
	}
	return d.transceive(false, PICCRequest)
}

// readUID runs one anticollision round and reads identifier and BCC from
// the FIFO. complete is false when the FIFO holds fewer than five bytes;
// an empty FIFO would otherwise read as UID 00000000 with a matching BCC.
// Validity is left to the caller.
func (d *Device) readUID() (uid UID, complete bool, err error) {
	if err := d.transceive(false, PICCAnticollision1, PICCAnticollision2); err != nil {
		return UID{}, false, err
	}
	level, err := d.fifoLevel()
	if err != nil {
		return UID{}, false, err
	}
	if level < uidSize+1 {
		return UID{}, false, nil
	}
	raw, err := d.readFifo(uidSize + 1)
	if err != nil {
		return UID{}, false, err
	}
	return NewUID(raw), true, nil
}
