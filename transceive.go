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

// transceive runs one command cycle against the card in the field: idle,
// flush, load the FIFO, start, wait the fixed budget, stop. The chip is not
// polled for completion. Callers inspect the FIFO afterwards. The CRC enable
// bits and StartSend are restored before return on every path, including
// bus errors; the first error wins.
func (d *Device) transceive(enableCRC bool, payload ...byte) (err error) {
	if enableCRC {
		defer func() { err = keepFirst(err, d.disableCRC) }()
		if err := d.setRegisterBits(TxModeReg, crcEnable); err != nil {
			return err
		}
		if err := d.setRegisterBits(RxModeReg, crcEnable); err != nil {
			return err
		}
	}

	if err := d.loadFifo(payload); err != nil {
		return err
	}

	if err := d.writeRegister(CommandReg, PCDTransceive); err != nil {
		return err
	}
	defer func() { err = keepFirst(err, d.stopSend) }()
	if err := d.setRegisterBits(BitFramingReg, startSend); err != nil {
		return err
	}

	d.config.Delay(d.config.TransceiveWait)
	return nil
}

func (d *Device) stopSend() error {
	return d.clearRegisterBits(BitFramingReg, startSend)
}

// disableCRC clears both CRC enable bits. RxModeReg is cleared even when
// TxModeReg fails.
func (d *Device) disableCRC() error {
	txErr := d.clearRegisterBits(TxModeReg, crcEnable)
	rxErr := d.clearRegisterBits(RxModeReg, crcEnable)
	if txErr != nil {
		return txErr
	}
	return rxErr
}

// keepFirst runs cleanup and returns err, or cleanup's error when err is nil
func keepFirst(err error, cleanup func() error) error {
	if cleanupErr := cleanup(); err == nil {
		return cleanupErr
	}
	return err
}

// authenticate hands key and UID to the chip's MFAuthent engine and waits
// the fixed budget. Nothing is read back: the chip only reveals a failed
// authentication by refusing the next block command.
func (d *Device) authenticate(key AuthKey, block byte, uid UID) error {
	payload := make([]byte, 0, 2+keySize+uidSize)
	payload = append(payload, key.command(), block)
	payload = append(payload, key.Bytes[:]...)
	payload = append(payload, uid.Bytes[:]...)

	if err := d.loadFifo(payload); err != nil {
		return err
	}
	if err := d.writeRegister(CommandReg, PCDMifareAuthenticate); err != nil {
		return err
	}

	d.config.Delay(d.config.TransceiveWait)
	return nil
}

// loadFifo idles the chip, flushes the FIFO and writes payload into it.
func (d *Device) loadFifo(payload []byte) error {
	if err := d.writeRegister(CommandReg, PCDIdle); err != nil {
		return err
	}
	if err := d.setRegisterBits(FIFOLevelReg, fifoFlush); err != nil {
		return err
	}
	return d.writeFifo(payload...)
}
