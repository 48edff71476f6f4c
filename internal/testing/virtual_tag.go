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

package testing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

const (
	mifare1KBlocks  = 64
	mifare1KSectors = 16
	blockLen        = 16
	keyLen          = 6
)

// Key type selectors accepted by Authenticate
const (
	MIFAREKeyA byte = 0x00
	MIFAREKeyB byte = 0x01
)

var (
	errTagNotPresent    = errors.New("tag not present")
	errNotAuthenticated = errors.New("not authenticated")
)

// VirtualTag is a simulated MIFARE Classic 1K card. The anticollision and
// select answers are configurable so tests can present malformed cards.
type VirtualTag struct {
	// ATQA is the answer to REQA/WUPA, low byte first in the FIFO.
	ATQA []byte
	// SAK is the answer to SELECT.
	SAK []byte
	// UID is the 4 byte cascade level 1 identifier.
	UID []byte
	// CorruptBCC makes anticollision return an inverted check byte.
	CorruptBCC bool

	memory     [mifare1KBlocks][blockLen]byte
	mu         sync.Mutex
	authSector int
	present    bool
	halted     bool
	selected   bool
}

// NewVirtualMIFARE1K creates a present MIFARE Classic 1K card with factory
// keys in every sector trailer.
func NewVirtualMIFARE1K(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestUIDA
	}
	tag := &VirtualTag{
		UID:        append([]byte(nil), uid...),
		ATQA:       []byte{0x04, 0x00},
		SAK:        []byte{0x08},
		present:    true,
		authSector: -1,
	}
	tag.initMemory()
	return tag
}

func (v *VirtualTag) initMemory() {
	copy(v.memory[0][:], v.UID)
	v.memory[0][4] = BCC(v.UID)
	for sector := 0; sector < mifare1KSectors; sector++ {
		v.memory[sector*4+3] = [blockLen]byte{
			0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // Key A
			0xFF, 0x07, 0x80, 0x69, // Access bits
			0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // Key B
		}
	}
}

// UIDString returns the UID as lowercase hex
func (v *VirtualTag) UIDString() string {
	return hex.EncodeToString(v.UID)
}

// Remove takes the card out of the field. Halt, selection and
// authentication state are lost.
func (v *VirtualTag) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = false
	v.resetLocked()
}

// Insert puts the card back into the field in the idle state
func (v *VirtualTag) Insert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = true
	v.resetLocked()
}

// Present reports whether the card is in the field
func (v *VirtualTag) Present() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present
}

// Halted reports whether the card received HLTA since it last entered
// the field.
func (v *VirtualTag) Halted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.halted
}

// Selected reports whether the card is in the ACTIVE state
func (v *VirtualTag) Selected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// AuthenticatedSector returns the sector unlocked by the last successful
// authentication, or -1.
func (v *VirtualTag) AuthenticatedSector() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.authSector
}

// Block returns a copy of a memory block without authentication
func (v *VirtualTag) Block(block int) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if block < 0 || block >= mifare1KBlocks {
		return nil
	}
	out := make([]byte, blockLen)
	copy(out, v.memory[block][:])
	return out
}

// SetBlock overwrites a memory block without authentication
func (v *VirtualTag) SetBlock(block int, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if block < 0 || block >= mifare1KBlocks {
		return fmt.Errorf("block %d out of range", block)
	}
	if len(data) != blockLen {
		return fmt.Errorf("data must be exactly %d bytes, got %d", blockLen, len(data))
	}
	copy(v.memory[block][:], data)
	return nil
}

// SetSectorKeys rewrites key A and key B in a sector trailer
func (v *VirtualTag) SetSectorKeys(sector int, keyA, keyB [keyLen]byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if sector < 0 || sector >= mifare1KSectors {
		return fmt.Errorf("sector %d out of range", sector)
	}
	trailer := &v.memory[sector*4+3]
	copy(trailer[0:6], keyA[:])
	copy(trailer[10:16], keyB[:])
	return nil
}

// Authenticate checks key against the sector trailer. A failed attempt
// clears any previous authentication.
func (v *VirtualTag) Authenticate(sector int, keyType byte, key []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.authenticateLocked(sector, keyType, key)
}

func (v *VirtualTag) authenticateLocked(sector int, keyType byte, key []byte) error {
	if !v.present {
		return errTagNotPresent
	}
	if len(key) != keyLen {
		return errors.New("MIFARE key must be 6 bytes")
	}
	if sector < 0 || sector >= mifare1KSectors {
		v.authSector = -1
		return fmt.Errorf("sector %d out of range", sector)
	}

	trailer := v.memory[sector*4+3]
	var expected []byte
	switch keyType {
	case MIFAREKeyA:
		expected = trailer[0:6]
	case MIFAREKeyB:
		expected = trailer[10:16]
	default:
		return fmt.Errorf("invalid key type: 0x%02X", keyType)
	}

	if !bytes.Equal(key, expected) {
		v.authSector = -1
		return errors.New("authentication failed: incorrect key")
	}
	v.authSector = sector
	return nil
}

func (v *VirtualTag) resetLocked() {
	v.halted = false
	v.selected = false
	v.authSector = -1
}

// answerRequest handles REQA and WUPA. A halted card only answers WUPA.
func (v *VirtualTag) answerRequest(wakeUp bool) ([]byte, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present || (v.halted && !wakeUp) {
		return nil, false
	}
	v.halted = false
	v.selected = false
	v.authSector = -1
	return append([]byte(nil), v.ATQA...), true
}

func (v *VirtualTag) anticollision() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present {
		return nil
	}
	out := UIDWithBCC(v.UID)
	if v.CorruptBCC {
		out[len(out)-1] ^= 0xFF
	}
	return out
}

func (v *VirtualTag) selectCard(full []byte) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present || !bytes.Equal(full, UIDWithBCC(v.UID)) {
		return nil
	}
	v.selected = true
	return append([]byte(nil), v.SAK...)
}

func (v *VirtualTag) halt() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.halted = true
	v.selected = false
	v.authSector = -1
}

// readAuthenticated returns a block when its sector is unlocked
func (v *VirtualTag) readAuthenticated(block int) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present {
		return nil, errTagNotPresent
	}
	if block < 0 || block >= mifare1KBlocks || v.authSector != block/4 {
		return nil, errNotAuthenticated
	}
	out := make([]byte, blockLen)
	copy(out, v.memory[block][:])
	return out, nil
}

// canWrite reports whether a WRITE to block would be acknowledged. The
// manufacturer block is read-only.
func (v *VirtualTag) canWrite(block int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present && block > 0 && block < mifare1KBlocks && v.authSector == block/4
}

func (v *VirtualTag) commitWrite(block int, data []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present || v.authSector != block/4 || len(data) != blockLen {
		return false
	}
	copy(v.memory[block][:], data)
	return true
}

func (v *VirtualTag) matchesUID(uid []byte) bool {
	return bytes.Equal(v.UID, uid)
}
