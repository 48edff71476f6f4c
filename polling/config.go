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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
)

// ErrInvalidConfig is returned by Validate and NewSession.
var ErrInvalidConfig = errors.New("invalid polling config")

// Config holds polling configuration options
type Config struct {
	// Recovery controls the Reset retries run after a failed poll.
	// Nil uses mfrc522.DefaultRetryConfig.
	Recovery *mfrc522.RetryConfig
	// PollInterval is the time between the starts of two polls. One poll
	// costs two transceive windows, so values under 50ms gain nothing.
	PollInterval time.Duration
	// MaxConsecutiveErrors is how many failed polls in a row are recovered
	// before Start gives up. Zero ends Start on the first failure.
	MaxConsecutiveErrors int
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:         100 * time.Millisecond,
		MaxConsecutiveErrors: 3,
		Recovery:             mfrc522.DefaultRetryConfig(),
	}
}

// Validate checks the interval and error budget
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval %v", ErrInvalidConfig, c.PollInterval)
	}
	if c.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("%w: negative error budget %d", ErrInvalidConfig, c.MaxConsecutiveErrors)
	}
	return nil
}
