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

package polling

import (
	"time"

	"github.com/ZaparooProject/go-mfrc522"
)

// CardState tracks the card a session last reported
type CardState struct {
	DetectedAt time.Time
	LastSeen   time.Time
	UID        mfrc522.UID
	Present    bool
}

// TransitionToDetected records a newly reported card
func (cs *CardState) TransitionToDetected(uid mfrc522.UID, now time.Time) {
	cs.UID = uid
	cs.Present = true
	cs.DetectedAt = now
	cs.LastSeen = now
}

// MarkSeen refreshes LastSeen for a card that is still current
func (cs *CardState) MarkSeen(now time.Time) {
	cs.LastSeen = now
}

// TransitionToIdle clears the card after removal
func (cs *CardState) TransitionToIdle() {
	*cs = CardState{}
}
