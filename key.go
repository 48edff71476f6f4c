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

// KeyKind selects which sector key an AuthKey authenticates with.
type KeyKind int

const (
	// KeyNone is the zero value. Block operations refuse it.
	KeyNone KeyKind = iota
	// KeyA authenticates with the sector's key A.
	KeyA
	// KeyB authenticates with the sector's key B.
	KeyB
)

// String returns the key kind name
func (k KeyKind) String() string {
	switch k {
	case KeyA:
		return "Key A"
	case KeyB:
		return "Key B"
	case KeyNone:
		return "no key"
	default:
		return fmt.Sprintf("KeyKind(%d)", int(k))
	}
}

// DefaultKey is the transport key MIFARE Classic cards ship with.
var DefaultKey = [keySize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// AuthKey is a 6-byte MIFARE Classic sector key tagged as key A or key B.
// It is supplied per block operation and never stored by the Device.
type AuthKey struct {
	Bytes [keySize]byte
	Kind  KeyKind
}

// NewKeyA returns an AuthKey that authenticates with key A.
func NewKeyA(key [keySize]byte) AuthKey {
	return AuthKey{Kind: KeyA, Bytes: key}
}

// NewKeyB returns an AuthKey that authenticates with key B.
func NewKeyB(key [keySize]byte) AuthKey {
	return AuthKey{Kind: KeyB, Bytes: key}
}

// ParseKey decodes a 12 character hex string into a key of the given kind.
func ParseKey(kind KeyKind, s string) (AuthKey, error) {
	if kind != KeyA && kind != KeyB {
		return AuthKey{}, fmt.Errorf("%w: key kind %s", ErrInvalidParameter, kind)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return AuthKey{}, fmt.Errorf("%w: key %q: %w", ErrInvalidParameter, s, err)
	}
	if len(raw) != keySize {
		return AuthKey{}, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidParameter, keySize, len(raw))
	}
	key := AuthKey{Kind: kind}
	copy(key.Bytes[:], raw)
	return key, nil
}

// IsSet reports whether the key names key A or key B.
func (k AuthKey) IsSet() bool {
	return k.Kind == KeyA || k.Kind == KeyB
}

// command returns the PICC authentication command for the key kind.
func (k AuthKey) command() byte {
	if k.Kind == KeyB {
		return PICCAuthenticateKeyB
	}
	return PICCAuthenticateKeyA
}

// String never prints the key material.
func (k AuthKey) String() string {
	return k.Kind.String()
}
