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
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBus = errors.New("spi: transfer failed")

func noDelay(time.Duration) {}

// flakyConn fails the next n transfers accepted by match
type flakyConn struct {
	backend   mfrc522.Conn
	match     func(w []byte) bool
	remaining atomic.Int32
}

//nolint:varnamelen // Interface compliance requires these parameter names
func (c *flakyConn) Tx(w, r []byte) error {
	if c.match(w) && c.remaining.Add(-1) >= 0 {
		return errBus
	}
	return c.backend.Tx(w, r) //nolint:wrapcheck // Pass-through mock
}

// isRequestSetup matches the BitFraming write that precedes every REQA
func isRequestSetup(w []byte) bool {
	return len(w) == 2 && w[0] == virt.RegBitFraming<<1 && w[1] == 0x07
}

func anyTransfer([]byte) bool { return true }

func fastConfig() *Config {
	return &Config{
		PollInterval:         time.Millisecond,
		MaxConsecutiveErrors: 2,
		Recovery: &mfrc522.RetryConfig{
			MaxAttempts:       2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1,
		},
	}
}

func newTestSession(t *testing.T, conn mfrc522.Conn, sim *virt.VirtualMFRC522) *Session {
	t.Helper()
	device, err := mfrc522.New(conn, sim.ChipSelect(), sim.ResetLine(), mfrc522.WithDelay(noDelay))
	require.NoError(t, err)
	session, err := NewSession(device, fastConfig())
	require.NoError(t, err)
	return session
}

type recorder struct {
	events chan string
}

func newRecorder(s *Session) *recorder {
	r := &recorder{events: make(chan string, 32)}
	s.SetOnCardDetected(func(uid mfrc522.UID) error {
		r.events <- "detected " + uid.String()
		return nil
	})
	s.SetOnCardRemoved(func(uid mfrc522.UID) {
		r.events <- "removed " + uid.String()
	})
	return r
}

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return ""
	}
}

func runSession(t *testing.T, s *Session) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
		return nil
	}
}

func TestSession_DetectAndRemove(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	tag := virt.NewVirtualMIFARE1K(virt.TestUIDA)
	sim.AddTag(tag)
	session := newTestSession(t, sim, sim)
	events := newRecorder(session)

	cancel, done := runSession(t, session)

	assert.Equal(t, "detected deadbeef", events.next(t))
	state := session.GetState()
	assert.True(t, state.Present)
	assert.Equal(t, "deadbeef", state.UID.String())
	assert.False(t, state.DetectedAt.IsZero())

	tag.Remove()
	assert.Equal(t, "removed deadbeef", events.next(t))

	cancel()
	require.ErrorIs(t, waitDone(t, done), context.Canceled)
	assert.False(t, session.GetState().Present)
}

func TestSession_SwapReportsRemovalThenDetection(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	sim.AddTag(virt.NewVirtualMIFARE1K(virt.TestUIDA))
	session := newTestSession(t, sim, sim)
	events := newRecorder(session)

	runSession(t, session)
	require.Equal(t, "detected deadbeef", events.next(t))

	sim.RemoveAllTags()
	sim.AddTag(virt.NewVirtualMIFARE1K(virt.TestUIDB))

	assert.Equal(t, "removed deadbeef", events.next(t))
	assert.Equal(t, "detected 04123456", events.next(t))
}

func TestSession_StateTimestamps(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	sim.AddTag(virt.NewVirtualMIFARE1K(nil))
	session := newTestSession(t, sim, sim)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	session.now = func() time.Time { return fixed }
	events := newRecorder(session)

	runSession(t, session)
	events.next(t)

	state := session.GetState()
	assert.Equal(t, fixed, state.DetectedAt)
	assert.Equal(t, fixed, state.LastSeen)
}

func TestSession_RecoversFromBusError(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	sim.AddTag(virt.NewVirtualMIFARE1K(nil))
	conn := &flakyConn{backend: sim, match: isRequestSetup}
	conn.remaining.Store(1)
	session := newTestSession(t, conn, sim)
	events := newRecorder(session)

	runSession(t, session)

	assert.Equal(t, "detected deadbeef", events.next(t))
	assert.Equal(t, 2, sim.ResetCount(), "one reset at open, one for recovery")
}

func TestSession_TooManyErrors(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	conn := &flakyConn{backend: sim, match: isRequestSetup}
	conn.remaining.Store(100)
	session := newTestSession(t, conn, sim)

	_, done := runSession(t, session)

	err := waitDone(t, done)
	require.ErrorIs(t, err, ErrTooManyErrors)
	require.ErrorIs(t, err, errBus)
	assert.Equal(t, 3, sim.ResetCount(), "each recovered failure resets once")
}

func TestSession_RecoveryFailure(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	conn := &flakyConn{backend: sim, match: anyTransfer}
	session := newTestSession(t, conn, sim)
	conn.remaining.Store(1000)

	_, done := runSession(t, session)

	err := waitDone(t, done)
	require.ErrorIs(t, err, ErrRecoveryFailed)
	assert.True(t, mfrc522.HasTrace(err))
}

func TestSession_DeviceGoneIsNotRecovered(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	session := newTestSession(t, sim, sim)
	sim.SetTxError(syscall.ENODEV)

	_, done := runSession(t, session)

	err := waitDone(t, done)
	require.Error(t, err)
	assert.True(t, mfrc522.IsFatal(err))
	assert.Equal(t, 1, sim.ResetCount())
}

func TestSession_CallbackErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		callback func(mfrc522.UID) error
		name     string
		wantMsg  string
	}{
		{
			name:     "error",
			callback: func(mfrc522.UID) error { return errors.New("database unavailable") },
			wantMsg:  "OnCardDetected callback failed: database unavailable",
		},
		{
			name:     "panic",
			callback: func(mfrc522.UID) error { panic("boom") },
			wantMsg:  "OnCardDetected callback panicked: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sim := virt.NewVirtualMFRC522()
			sim.AddTag(virt.NewVirtualMIFARE1K(nil))
			session := newTestSession(t, sim, sim)
			session.SetOnCardDetected(tt.callback)

			_, done := runSession(t, session)

			err := waitDone(t, done)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSession_RemovalCallbackPanic(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	tag := virt.NewVirtualMIFARE1K(nil)
	sim.AddTag(tag)
	session := newTestSession(t, sim, sim)
	detected := make(chan struct{}, 1)
	session.SetOnCardDetected(func(mfrc522.UID) error {
		detected <- struct{}{}
		return nil
	})
	session.SetOnCardRemoved(func(mfrc522.UID) { panic("boom") })

	_, done := runSession(t, session)
	select {
	case <-detected:
	case <-time.After(2 * time.Second):
		t.Fatal("card was not detected")
	}
	tag.Remove()

	err := waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OnCardRemoved callback panicked: boom")
	assert.False(t, session.GetState().Present)
}

func TestSession_StartTwice(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	sim.AddTag(virt.NewVirtualMIFARE1K(nil))
	session := newTestSession(t, sim, sim)
	events := newRecorder(session)

	runSession(t, session)
	events.next(t)

	require.ErrorIs(t, session.Start(context.Background()), ErrSessionRunning)
}

func TestSession_DoBetweenPolls(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	tag := virt.NewVirtualMIFARE1K(virt.TestUIDB)
	want := []byte("zaparoo-session!")
	require.NoError(t, tag.SetBlock(8, want))
	sim.AddTag(tag)
	session := newTestSession(t, sim, sim)
	events := newRecorder(session)

	runSession(t, session)
	require.Equal(t, "detected 04123456", events.next(t))

	var got []byte
	err := session.Do(func(device *mfrc522.Device) error {
		uid, ok := device.CurrentUID()
		require.True(t, ok)
		selected, err := device.SelectTag(uid)
		if err != nil || !selected {
			return errors.Join(err, errors.New("select refused"))
		}
		got, err = device.ReadBlock(8, uid, mfrc522.NewKeyA(mfrc522.DefaultKey))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSession_PauseSkipsPolls(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	sim.AddTag(virt.NewVirtualMIFARE1K(nil))
	session := newTestSession(t, sim, sim)
	events := newRecorder(session)
	session.Pause()
	require.True(t, session.IsPaused())

	runSession(t, session)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sim.Frames(), "no card traffic while paused")

	session.Resume()
	assert.Equal(t, "detected deadbeef", events.next(t))
}

func TestNewSession_Config(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualMFRC522()
	device, err := mfrc522.New(sim, sim.ChipSelect(), sim.ResetLine(), mfrc522.WithDelay(noDelay))
	require.NoError(t, err)

	session, err := NewSession(device, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PollInterval, session.config.PollInterval)
	assert.Same(t, device, session.GetDevice())

	_, err = NewSession(device, &Config{PollInterval: 0})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSession(device, &Config{PollInterval: time.Second, MaxConsecutiveErrors: -1})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCardState_Transitions(t *testing.T) {
	t.Parallel()

	var state CardState
	first := time.Unix(100, 0)
	later := time.Unix(105, 0)
	uid := mfrc522.NewUID(virt.UIDWithBCC(virt.TestUIDA))

	state.TransitionToDetected(uid, first)
	state.MarkSeen(later)
	assert.True(t, state.Present)
	assert.Equal(t, first, state.DetectedAt)
	assert.Equal(t, later, state.LastSeen)

	state.TransitionToIdle()
	assert.Equal(t, CardState{}, state)
}
