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
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

var (
	// ErrSessionRunning is returned by Start while another Start is active
	ErrSessionRunning = errors.New("polling session already running")
	// ErrTooManyErrors ends Start when polls keep failing after recovery
	ErrTooManyErrors = errors.New("too many consecutive poll errors")
)

// Session handles continuous card monitoring on one device. All device
// access, from the poll loop or from Do, is serialized.
type Session struct {
	OnCardDetected    func(uid mfrc522.UID) error
	OnCardRemoved     func(uid mfrc522.UID)
	device            *mfrc522.Device
	config            *Config
	now               func() time.Time
	state             CardState
	consecutiveErrors int
	stateMutex        syncutil.RWMutex
	deviceMutex       syncutil.Mutex
	running           atomic.Bool
	isPaused          atomic.Bool
}

// NewSession creates a new card monitoring session. A nil config uses
// DefaultConfig.
func NewSession(device *mfrc522.Device, config *Config) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		device: device,
		config: config,
		now:    time.Now,
	}, nil
}

// SetOnCardDetected sets the callback for when a card is detected.
func (s *Session) SetOnCardDetected(callback func(mfrc522.UID) error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.OnCardDetected = callback
}

// SetOnCardRemoved sets the callback for when a card is removed.
func (s *Session) SetOnCardRemoved(callback func(mfrc522.UID)) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.OnCardRemoved = callback
}

// GetState returns the current card state
func (s *Session) GetState() CardState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.state
}

// GetDevice returns the underlying device. Use Do to access it while the
// session is running.
func (s *Session) GetDevice() *mfrc522.Device {
	return s.device
}

// Do runs fn with exclusive access to the device, between two polls.
func (s *Session) Do(fn func(*mfrc522.Device) error) error {
	s.deviceMutex.Lock()
	defer s.deviceMutex.Unlock()
	return fn(s.device)
}

// Pause skips polls until Resume. A poll already in progress completes.
func (s *Session) Pause() {
	s.isPaused.Store(true)
}

// Resume restarts polling after a pause
func (s *Session) Resume() {
	s.isPaused.Store(false)
}

// IsPaused reports whether polls are being skipped
func (s *Session) IsPaused() bool {
	return s.isPaused.Load()
}

// Start polls until ctx is done, a callback fails, or the device cannot be
// recovered. It returns ctx.Err() after cancellation.
func (s *Session) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !s.isPaused.Load() {
			if err := s.executePollingCycle(ctx); err != nil {
				return err
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// executePollingCycle performs one poll and reports state changes
func (s *Session) executePollingCycle(ctx context.Context) error {
	isNew, uid, ok, err := s.performPoll()
	if err != nil {
		return s.handlePollingError(ctx, err)
	}
	s.consecutiveErrors = 0

	if err := s.processPollingResults(isNew, uid, ok); err != nil {
		return fmt.Errorf("callback error during polling: %w", err)
	}
	return nil
}

func (s *Session) performPoll() (isNew bool, uid mfrc522.UID, ok bool, err error) {
	s.deviceMutex.Lock()
	defer s.deviceMutex.Unlock()

	isNew, err = s.device.IsNewTagPresent()
	if err != nil {
		return false, mfrc522.UID{}, false, fmt.Errorf("tag detection failed: %w", err)
	}
	uid, ok = s.device.CurrentUID()
	return isNew, uid, ok, nil
}

// handlePollingError recovers the chip or ends the session. A device that
// is gone is not reset.
func (s *Session) handlePollingError(ctx context.Context, err error) error {
	s.consecutiveErrors++
	mfrc522.Debugf("polling: poll %d failed: %v", s.consecutiveErrors, err)

	if mfrc522.IsFatal(err) {
		return err
	}
	if s.consecutiveErrors > s.config.MaxConsecutiveErrors {
		return fmt.Errorf("%w (%d): %w", ErrTooManyErrors, s.consecutiveErrors, err)
	}
	return s.recoverDevice(ctx, err)
}

// processPollingResults compares the driver's current tag with the last
// reported one. A different UID is reported as removal then detection.
func (s *Session) processPollingResults(isNew bool, uid mfrc522.UID, ok bool) error {
	s.stateMutex.RLock()
	prev := s.state
	s.stateMutex.RUnlock()

	switch {
	case ok && prev.Present && !isNew && prev.UID.Equal(uid):
		s.stateMutex.Lock()
		s.state.MarkSeen(s.now())
		s.stateMutex.Unlock()
		return nil
	case ok:
		if prev.Present {
			if err := s.handleCardRemoval(prev.UID); err != nil {
				return err
			}
		}
		return s.handleCardDetected(uid)
	case prev.Present:
		return s.handleCardRemoval(prev.UID)
	}
	return nil
}

func (s *Session) handleCardDetected(uid mfrc522.UID) error {
	s.stateMutex.Lock()
	s.state.TransitionToDetected(uid, s.now())
	onDetected := s.OnCardDetected
	s.stateMutex.Unlock()

	mfrc522.Debugf("polling: card %s detected", uid)
	if onDetected == nil {
		return nil
	}
	return safeCallCallback(onDetected, uid, "OnCardDetected")
}

func (s *Session) handleCardRemoval(uid mfrc522.UID) error {
	s.stateMutex.Lock()
	s.state.TransitionToIdle()
	onRemoved := s.OnCardRemoved
	s.stateMutex.Unlock()

	mfrc522.Debugf("polling: card %s removed", uid)
	// Call callback outside the lock to avoid potential deadlocks
	if onRemoved == nil {
		return nil
	}
	return safeCallCallback(func(removed mfrc522.UID) error {
		onRemoved(removed)
		return nil
	}, uid, "OnCardRemoved")
}

// safeCallCallback executes a callback with panic recovery
func safeCallCallback(callback func(mfrc522.UID) error, uid mfrc522.UID, callbackName string) error {
	var callbackErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callbackErr = fmt.Errorf("%s callback panicked: %v", callbackName, r)
			}
		}()
		callbackErr = callback(uid)
	}()
	if callbackErr != nil {
		return fmt.Errorf("%s callback failed: %w", callbackName, callbackErr)
	}
	return nil
}
