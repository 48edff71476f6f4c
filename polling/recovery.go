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
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfrc522"
)

// ErrRecoveryFailed wraps the last Reset error once the retry budget is spent
var ErrRecoveryFailed = errors.New("device recovery failed")

// recoverDevice resets the chip after a failed poll. The device lock is taken per
// attempt so Do callers can run between retries.
func (s *Session) recoverDevice(ctx context.Context, cause error) error {
	attempts := 0
	err := mfrc522.RetryWithConfig(ctx, s.config.Recovery, func() error {
		attempts++
		s.deviceMutex.Lock()
		defer s.deviceMutex.Unlock()
		return s.device.Reset()
	})
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrRecoveryFailed, attempts, err)
	}

	mfrc522.Debugf("polling: reset chip after error (%d attempts): %v", attempts, cause)
	return nil
}
