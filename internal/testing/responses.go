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

package testing

// Register addresses and command bytes mirrored from the mfrc522 package to
// avoid an import cycle with its internal tests.
const (
	RegCommand    byte = 0x01
	RegComIrq     byte = 0x04
	RegError      byte = 0x06
	RegStatus2    byte = 0x08
	RegFIFOData   byte = 0x09
	RegFIFOLevel  byte = 0x0A
	RegControl    byte = 0x0C
	RegBitFraming byte = 0x0D
	RegMode       byte = 0x11
	RegTxMode     byte = 0x12
	RegRxMode     byte = 0x13
	RegTxControl  byte = 0x14
	RegTxASK      byte = 0x15
	RegVersion    byte = 0x37
)

const (
	CmdIdle       byte = 0x00
	CmdCalcCRC    byte = 0x03
	CmdTransceive byte = 0x0C
	CmdMFAuthent  byte = 0x0E
	CmdSoftReset  byte = 0x0F
)

const (
	PICCReqA        byte = 0x26
	PICCWupA        byte = 0x52
	PICCSelCL1      byte = 0x93
	PICCNVBAnticoll byte = 0x20
	PICCNVBSelect   byte = 0x70
	PICCAuthA       byte = 0x60
	PICCAuthB       byte = 0x61
	PICCRead        byte = 0x30
	PICCWrite       byte = 0xA0
	PICCHalt        byte = 0x50

	PICCAck byte = 0x0A
	PICCNak byte = 0x04
)

// Chip versions reported in VersionReg
const (
	VersionV1      byte = 0x91
	VersionV2      byte = 0x92
	VersionFM17522 byte = 0x88
)

// Test UIDs
var (
	TestUIDA = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	TestUIDB = []byte{0x04, 0x12, 0x34, 0x56}
)

// DefaultKey is the factory MIFARE Classic key
var DefaultKey = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// BCC returns the XOR check byte of a 4 byte UID
func BCC(uid []byte) byte {
	var bcc byte
	for _, b := range uid {
		bcc ^= b
	}
	return bcc
}

// UIDWithBCC returns uid followed by its check byte
func UIDWithBCC(uid []byte) []byte {
	out := make([]byte, 0, len(uid)+1)
	out = append(out, uid...)
	return append(out, BCC(uid))
}
