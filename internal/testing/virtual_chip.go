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
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

const (
	fifoCapacity  = 64
	registerCount = 64

	bitStartSend   byte = 0x80
	bitCRCEnable   byte = 0x80
	bitFlushBuffer byte = 0x80
	bitMFCrypto1On byte = 0x08
	maskTxLastBits byte = 0x07
	maskCommand    byte = 0x0F
	spiRead        byte = 0x80
)

// ErrChipNotSelected is returned by Tx when the chip-select line is high.
var ErrChipNotSelected = errors.New("virtual MFRC522: chip select not asserted")

// RegisterWrite is one value written to a register
type RegisterWrite struct {
	Register byte
	Value    byte
}

// Frame is one payload sent to the card by a Transceive command
type Frame struct {
	Data     []byte
	Response []byte
	LastBits byte
	TxCRC    bool
	RxCRC    bool
}

// AuthAttempt is one MFAuthent command
type AuthAttempt struct {
	Err     error
	Key     []byte
	UID     []byte
	Command byte
	Block   byte
}

// ResponseOverride replaces the card's answer to a frame. Returning false
// falls through to the simulated card.
type ResponseOverride func(frame Frame) ([]byte, bool)

// VirtualMFRC522 simulates the MFRC522 register interface behind SPI.
// It decodes address frames the way the chip does, runs Transceive and
// MFAuthent against VirtualTags in the field, and records every
// exchange for assertions.
type VirtualMFRC522 struct {
	txErr     error
	override  ResponseOverride
	cs        *Pin
	rst       *Pin
	active    *VirtualTag
	exchanges [][]byte
	writes    []RegisterWrite
	frames    []Frame
	auths     []AuthAttempt
	tags      []*VirtualTag
	fifo      []byte
	pending   int
	resets    int
	mu        sync.Mutex
	regs      [registerCount]byte
	version   byte
	powerDown bool

	// IgnoreChipSelect lets Tx proceed with chip select high.
	IgnoreChipSelect bool
}

// NewVirtualMFRC522 creates a powered chip with its chip-select and reset
// lines idle high.
func NewVirtualMFRC522() *VirtualMFRC522 {
	v := &VirtualMFRC522{
		version: VersionV2,
		pending: -1,
	}
	v.cs = NewPin("CS", gpio.High)
	v.rst = NewPin("RST", gpio.High)
	v.rst.onChange = v.onReset
	v.hardReset()
	return v
}

// ChipSelect returns the simulated NSS line
func (v *VirtualMFRC522) ChipSelect() *Pin { return v.cs }

// ResetLine returns the simulated NRSTPD line
func (v *VirtualMFRC522) ResetLine() *Pin { return v.rst }

// AddTag places a card in the field
func (v *VirtualMFRC522) AddTag(tag *VirtualTag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = append(v.tags, tag)
}

// RemoveAllTags empties the field
func (v *VirtualMFRC522) RemoveAllTags() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = nil
	v.active = nil
	v.pending = -1
}

// SetVersion changes the value reported in VersionReg
func (v *VirtualMFRC522) SetVersion(version byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version = version
	v.regs[RegVersion] = version
}

// SetTxError makes every Tx fail with err. Pass nil to clear.
func (v *VirtualMFRC522) SetTxError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txErr = err
}

// SetResponseOverride installs fn ahead of the simulated card
func (v *VirtualMFRC522) SetResponseOverride(fn ResponseOverride) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.override = fn
}

// Register returns the stored value of a register without side effects
func (v *VirtualMFRC522) Register(addr byte) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if addr == RegFIFOLevel {
		return byte(len(v.fifo))
	}
	return v.regs[addr&0x3F]
}

// FIFO returns the bytes waiting in the FIFO
func (v *VirtualMFRC522) FIFO() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.fifo...)
}

// Exchanges returns the raw write side of every Tx
func (v *VirtualMFRC522) Exchanges() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.exchanges))
	copy(out, v.exchanges)
	return out
}

// RegisterWrites returns every register write in order
func (v *VirtualMFRC522) RegisterWrites() []RegisterWrite {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]RegisterWrite(nil), v.writes...)
}

// Frames returns every Transceive payload in order
func (v *VirtualMFRC522) Frames() []Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Frame(nil), v.frames...)
}

// Authentications returns every MFAuthent attempt in order
func (v *VirtualMFRC522) Authentications() []AuthAttempt {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]AuthAttempt(nil), v.auths...)
}

// ResetCount returns how many hard resets the reset line produced
func (v *VirtualMFRC522) ResetCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

// ClearLog forgets recorded exchanges, writes, frames and authentications
func (v *VirtualMFRC522) ClearLog() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exchanges = nil
	v.writes = nil
	v.frames = nil
	v.auths = nil
}

// Tx implements the SPI side of the chip. The first byte is the address
// frame; for reads every following position returns the register value,
// for writes every following byte is stored.
func (v *VirtualMFRC522) Tx(w, r []byte) error {
	if !v.IgnoreChipSelect && v.cs.Level() != gpio.Low {
		return ErrChipNotSelected
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txErr != nil {
		return v.txErr
	}
	if r != nil && len(r) != len(w) {
		return fmt.Errorf("virtual MFRC522: read buffer %d bytes, write %d", len(r), len(w))
	}
	v.exchanges = append(v.exchanges, append([]byte(nil), w...))
	if len(w) == 0 || v.powerDown {
		for i := range r {
			r[i] = 0
		}
		return nil
	}

	addr := (w[0] >> 1) & 0x3F
	if w[0]&spiRead != 0 {
		if r != nil {
			r[0] = 0
			for i := 1; i < len(w); i++ {
				r[i] = v.readLocked(addr)
			}
		}
		return nil
	}
	for _, b := range w[1:] {
		v.writeLocked(addr, b)
	}
	return nil
}

// HostRead reads a register through a non-SPI host interface
func (v *VirtualMFRC522) HostRead(addr byte) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.powerDown {
		return 0
	}
	return v.readLocked(addr & 0x3F)
}

// HostWrite writes a register through a non-SPI host interface
func (v *VirtualMFRC522) HostWrite(addr, value byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.powerDown {
		return
	}
	v.writeLocked(addr&0x3F, value)
}

func (v *VirtualMFRC522) onReset(l gpio.Level) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if l == gpio.Low {
		v.powerDown = true
		return
	}
	if v.powerDown {
		v.powerDown = false
		v.resets++
		v.hardReset()
	}
}

// hardReset loads the datasheet reset values
func (v *VirtualMFRC522) hardReset() {
	v.regs = [registerCount]byte{}
	v.regs[RegCommand] = 0x20
	v.regs[0x02] = 0x80 // ComIEnReg
	v.regs[RegComIrq] = 0x14
	v.regs[0x0B] = 0x08 // WaterLevelReg
	v.regs[RegControl] = 0x10
	v.regs[RegMode] = 0x3F
	v.regs[RegTxControl] = 0x80
	v.regs[0x16] = 0x10 // TxSelReg
	v.regs[0x17] = 0x84 // RxSelReg
	v.regs[0x18] = 0x84 // RxThresholdReg
	v.regs[0x19] = 0x4D // DemodReg
	v.regs[0x1C] = 0x62 // MfTxReg
	v.regs[0x1F] = 0xEB // SerialSpeedReg
	v.regs[0x21] = 0xFF // CRCResultRegH
	v.regs[0x22] = 0xFF // CRCResultRegL
	v.regs[0x24] = 0x26 // ModWidthReg
	v.regs[0x26] = 0x48 // RFCfgReg
	v.regs[0x27] = 0x88 // GsNReg
	v.regs[0x28] = 0x20 // CWGsPReg
	v.regs[0x29] = 0x20 // ModGsPReg
	v.regs[RegVersion] = v.version
	v.fifo = nil
	v.active = nil
	v.pending = -1
}

func (v *VirtualMFRC522) readLocked(addr byte) byte {
	switch addr {
	case RegFIFOData:
		if len(v.fifo) == 0 {
			return 0
		}
		b := v.fifo[0]
		v.fifo = v.fifo[1:]
		return b
	case RegFIFOLevel:
		return byte(len(v.fifo))
	default:
		return v.regs[addr]
	}
}

func (v *VirtualMFRC522) writeLocked(addr, value byte) {
	v.writes = append(v.writes, RegisterWrite{Register: addr, Value: value})

	switch addr {
	case RegFIFOData:
		if len(v.fifo) < fifoCapacity {
			v.fifo = append(v.fifo, value)
		}
	case RegFIFOLevel:
		if value&bitFlushBuffer != 0 {
			v.fifo = nil
		}
	case RegCommand:
		v.regs[RegCommand] = value
		v.runCommand(value & maskCommand)
	case RegBitFraming:
		v.regs[RegBitFraming] = value
		if value&bitStartSend != 0 && v.regs[RegCommand]&maskCommand == CmdTransceive {
			v.transceive()
		}
	case RegVersion:
		// read-only
	default:
		v.regs[addr] = value
	}
}

func (v *VirtualMFRC522) runCommand(cmd byte) {
	switch cmd {
	case CmdMFAuthent:
		v.mfAuthent()
		v.regs[RegCommand] = v.regs[RegCommand]&^maskCommand | CmdIdle
	case CmdSoftReset:
		v.hardReset()
	case CmdCalcCRC:
		v.regs[RegCommand] = v.regs[RegCommand]&^maskCommand | CmdIdle
	}
}

func (v *VirtualMFRC522) transceive() {
	frame := Frame{
		Data:     v.fifo,
		LastBits: v.regs[RegBitFraming] & maskTxLastBits,
		TxCRC:    v.regs[RegTxMode]&bitCRCEnable != 0,
		RxCRC:    v.regs[RegRxMode]&bitCRCEnable != 0,
	}
	v.fifo = nil

	var resp []byte
	handled := false
	if v.override != nil {
		resp, handled = v.override(frame)
	}
	if !handled {
		resp = v.cardResponse(frame)
	}
	frame.Response = append([]byte(nil), resp...)
	v.frames = append(v.frames, frame)

	v.fifo = append(v.fifo, resp...)
	if len(v.fifo) > fifoCapacity {
		v.fifo = v.fifo[:fifoCapacity]
	}
}

// cardResponse runs the frame against the cards in the field. Frames that
// a real card would reject for a missing CRC get no answer.
func (v *VirtualMFRC522) cardResponse(f Frame) []byte {
	p := f.Data

	if v.pending >= 0 {
		block := v.pending
		v.pending = -1
		if f.TxCRC && v.active != nil && len(p) == blockLen && v.active.commitWrite(block, p) {
			return []byte{PICCAck}
		}
		return nil
	}

	if len(p) == 1 && f.LastBits == 7 && (p[0] == PICCReqA || p[0] == PICCWupA) {
		v.active = nil
		for _, tag := range v.tags {
			if atqa, ok := tag.answerRequest(p[0] == PICCWupA); ok {
				v.active = tag
				return atqa
			}
		}
		return nil
	}

	if v.active == nil || len(p) < 2 || f.LastBits != 0 {
		return nil
	}
	tag := v.active

	switch {
	case p[0] == PICCSelCL1 && p[1] == PICCNVBAnticoll && len(p) == 2:
		return tag.anticollision()
	case p[0] == PICCSelCL1 && p[1] == PICCNVBSelect && len(p) == 7:
		if !f.TxCRC {
			return nil
		}
		return tag.selectCard(p[2:7])
	case p[0] == PICCHalt && p[1] == 0x00:
		if f.TxCRC {
			tag.halt()
			v.active = nil
			v.regs[RegStatus2] &^= bitMFCrypto1On
		}
		return nil
	case p[0] == PICCRead && len(p) == 2:
		if !f.TxCRC || !tag.Selected() {
			return nil
		}
		data, err := tag.readAuthenticated(int(p[1]))
		if err != nil {
			return []byte{PICCNak}
		}
		return data
	case p[0] == PICCWrite && len(p) == 2:
		if !f.TxCRC || !tag.Selected() {
			return nil
		}
		if !tag.canWrite(int(p[1])) {
			return []byte{PICCNak}
		}
		v.pending = int(p[1])
		return []byte{PICCAck}
	}
	return nil
}

// mfAuthent consumes the 12 byte authentication payload from the FIFO and
// sets MFCrypto1On in Status2Reg on success.
func (v *VirtualMFRC522) mfAuthent() {
	p := v.fifo
	v.fifo = nil

	attempt := AuthAttempt{}
	defer func() { v.auths = append(v.auths, attempt) }()

	if len(p) != 12 {
		attempt.Err = fmt.Errorf("authentication payload %d bytes", len(p))
		v.regs[RegStatus2] &^= bitMFCrypto1On
		return
	}
	attempt.Command = p[0]
	attempt.Block = p[1]
	attempt.Key = append([]byte(nil), p[2:8]...)
	attempt.UID = append([]byte(nil), p[8:12]...)

	keyType := MIFAREKeyA
	switch p[0] {
	case PICCAuthA:
	case PICCAuthB:
		keyType = MIFAREKeyB
	default:
		attempt.Err = fmt.Errorf("invalid authentication command 0x%02X", p[0])
		v.regs[RegStatus2] &^= bitMFCrypto1On
		return
	}

	tag := v.active
	switch {
	case tag == nil || !tag.Selected():
		attempt.Err = errors.New("no selected card")
	case !tag.matchesUID(attempt.UID):
		attempt.Err = errors.New("UID does not match selected card")
	default:
		attempt.Err = tag.Authenticate(int(p[1])/4, keyType, attempt.Key)
	}

	if attempt.Err != nil {
		v.regs[RegStatus2] &^= bitMFCrypto1On
		return
	}
	v.regs[RegStatus2] |= bitMFCrypto1On
}
