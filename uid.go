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
	"encoding/hex"
	"fmt"
)

// UID identifies one detected card: the four identifier bytes returned by a
// cascade level 1 anticollision round and the BCC check byte that follows.
type UID struct {
	Bytes [uidSize]byte
	BCC   byte
}

// NewUID builds a UID from the five bytes read out of the FIFO after an
// anticollision exchange. Missing trailing bytes are left zero.
func NewUID(raw []byte) UID {
	var uid UID
	n := copy(uid.Bytes[:], raw)
	if n == uidSize && len(raw) > uidSize {
		uid.BCC = raw[uidSize]
	}
	return uid
}

// checksum returns the XOR of the identifier bytes.
func (u UID) checksum() byte {
	return u.Bytes[0] ^ u.Bytes[1] ^ u.Bytes[2] ^ u.Bytes[3]
}

// IsValid reports whether the BCC byte matches the identifier bytes.
// An invalid UID is never adopted as the current tag.
func (u UID) IsValid() bool {
	return u.BCC == u.checksum()
}

// Full returns the identifier followed by its BCC, as sent in SELECT.
func (u UID) Full() [uidSize + 1]byte {
	var full [uidSize + 1]byte
	copy(full[:], u.Bytes[:])
	full[uidSize] = u.BCC
	return full
}

// Equal compares identifier bytes only.
func (u UID) Equal(other UID) bool {
	return u.Bytes == other.Bytes
}

// String returns the identifier as lowercase hex, matching the format the
// rest of the Zaparoo tooling uses for UIDs.
func (u UID) String() string {
	return hex.EncodeToString(u.Bytes[:])
}

// DebugString includes the check byte and its validity.
func (u UID) DebugString() string {
	return fmt.Sprintf("UID %s BCC %02X valid=%t", u.String(), u.BCC, u.IsValid())
}
