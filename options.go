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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithDelay replaces the blocking delay used for chip timing windows
func WithDelay(delay Delay) Option {
	return func(d *Device) error {
		if delay == nil {
			return fmt.Errorf("%w: nil delay", ErrInvalidParameter)
		}
		d.config.Delay = delay
		return nil
	}
}

// WithTransceiveWait sets the fixed wait of a transceive or authentication
func WithTransceiveWait(wait time.Duration) Option {
	return func(d *Device) error {
		if wait < 0 {
			return fmt.Errorf("%w: transceive wait %v", ErrInvalidParameter, wait)
		}
		d.config.TransceiveWait = wait
		return nil
	}
}

// WithResetSettle sets how long each reset edge is held
func WithResetSettle(settle time.Duration) Option {
	return func(d *Device) error {
		if settle < 0 {
			return fmt.Errorf("%w: reset settle %v", ErrInvalidParameter, settle)
		}
		d.config.ResetSettle = settle
		return nil
	}
}

// WithAbsenceThreshold sets how many consecutive silent polls drop the
// current tag. Must be at least 1.
func WithAbsenceThreshold(polls int) Option {
	return func(d *Device) error {
		if polls < 1 {
			return fmt.Errorf("%w: absence threshold must be at least 1, got %d", ErrInvalidParameter, polls)
		}
		d.config.AbsenceThreshold = polls
		return nil
	}
}

// WithTraceSize bounds the number of wire trace entries kept per operation
func WithTraceSize(entries int) Option {
	return func(d *Device) error {
		d.config.TraceSize = entries
		return nil
	}
}

// WithPortName sets the port name used in errors and logs
func WithPortName(name string) Option {
	return func(d *Device) error {
		d.port = name
		return nil
	}
}
