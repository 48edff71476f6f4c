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

// Values read from VersionReg
const (
	VersionFM17522     byte = 0x88
	VersionV1          byte = 0x91
	VersionV2          byte = 0x92
	VersionCounterfeit byte = 0x12
)

// VersionName describes a VersionReg value. known is false for values no
// MFRC522 or compatible clone reports, which includes 0x00 and 0xFF from an
// unwired bus.
func VersionName(version byte) (name string, known bool) {
	switch version {
	case VersionV1:
		return "MFRC522 v1.0", true
	case VersionV2:
		return "MFRC522 v2.0", true
	case VersionFM17522:
		return "FM17522 clone", true
	case VersionCounterfeit:
		return "counterfeit MFRC522", true
	default:
		return fmt.Sprintf("unknown (0x%02X)", version), false
	}
}
