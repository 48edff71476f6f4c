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

// Register identifies one of the MFRC522 control, status or FIFO registers.
// Addresses are the 6-bit values from the datasheet register map (section 9).
type Register byte

// Page 0: command and status
const (
	CommandReg    Register = 0x01
	ComIEnReg     Register = 0x02
	DivIEnReg     Register = 0x03
	ComIrqReg     Register = 0x04
	DivIrqReg     Register = 0x05
	ErrorReg      Register = 0x06
	Status1Reg    Register = 0x07
	Status2Reg    Register = 0x08
	FIFODataReg   Register = 0x09
	FIFOLevelReg  Register = 0x0A
	WaterLevelReg Register = 0x0B
	ControlReg    Register = 0x0C
	BitFramingReg Register = 0x0D
	CollReg       Register = 0x0E
)

// Page 1: command configuration
const (
	ModeReg        Register = 0x11
	TxModeReg      Register = 0x12
	RxModeReg      Register = 0x13
	TxControlReg   Register = 0x14
	TxASKReg       Register = 0x15
	TxSelReg       Register = 0x16
	RxSelReg       Register = 0x17
	RxThresholdReg Register = 0x18
	DemodReg       Register = 0x19
	MfTxReg        Register = 0x1C
	MfRxReg        Register = 0x1D
	SerialSpeedReg Register = 0x1F
)

// Page 2: configuration
const (
	CRCResultRegH   Register = 0x21
	CRCResultRegL   Register = 0x22
	ModWidthReg     Register = 0x24
	RFCfgReg        Register = 0x26
	GsNReg          Register = 0x27
	CWGsPReg        Register = 0x28
	ModGsPReg       Register = 0x29
	TModeReg        Register = 0x2A
	TPrescalerReg   Register = 0x2B
	TReloadRegH     Register = 0x2C
	TReloadRegL     Register = 0x2D
	TCounterValRegH Register = 0x2E
	TCounterValRegL Register = 0x2F
)

// Page 3: test registers
const (
	AutoTestReg Register = 0x36
	VersionReg  Register = 0x37
)

// PCD commands written to CommandReg.
const (
	PCDIdle               byte = 0x00
	PCDMem                byte = 0x01
	PCDGenerateRandomID   byte = 0x02
	PCDCalcCRC            byte = 0x03
	PCDTransmit           byte = 0x04
	PCDNoCmdChange        byte = 0x07
	PCDReceive            byte = 0x08
	PCDTransceive         byte = 0x0C
	PCDMifareAuthenticate byte = 0x0E
	PCDSoftReset          byte = 0x0F
)

// PICC commands sent to the card through the FIFO.
const (
	PICCRequest          byte = 0x26 // REQA, sent as a 7-bit short frame
	PICCWakeUp           byte = 0x52 // WUPA
	PICCAnticollision1   byte = 0x93 // SEL, cascade level 1
	PICCAnticollision2   byte = 0x20 // NVB for a full anticollision round
	PICCSelect1          byte = 0x93
	PICCSelect2          byte = 0x70 // NVB for a full 40-bit select
	PICCAuthenticateKeyA byte = 0x60
	PICCAuthenticateKeyB byte = 0x61
	PICCRead             byte = 0x30
	PICCWrite            byte = 0xA0
	PICCHalt             byte = 0x50
)

// PICC responses.
const (
	// PICCAnswerToRequest is the ATQA of a MIFARE Classic card, as the
	// little-endian value of the two FIFO bytes.
	PICCAnswerToRequest uint16 = 0x0004

	// PICCSelectAcknowledge is the SAK of a MIFARE Classic 1K card.
	PICCSelectAcknowledge byte = 0x08

	// PICCAcknowledge is the 4-bit MIFARE ACK.
	PICCAcknowledge byte = 0x0A
)

// Register bits used by the driver.
const (
	crcEnable      byte = 0x80 // TxModeReg/RxModeReg TxCRCEn/RxCRCEn
	fifoFlush      byte = 0x80 // FIFOLevelReg FlushBuffer
	startSend      byte = 0x80 // BitFramingReg StartSend
	shortFrameBits byte = 0x07 // BitFramingReg TxLastBits for REQA
	force100ASK    byte = 0x40 // TxASKReg Force100ASK
	modeCRCPreset  byte = 0x3D // ModeReg: TxWaitRF, polarity high, CRC preset 0x6363
	antennaOn      byte = 0x03 // TxControlReg Tx1RFEn|Tx2RFEn
	spiReadFlag    byte = 0x80
)

const (
	blockSize = 16
	keySize   = 6
	uidSize   = 4
)
