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

package uart

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
)

// MockSerialPort implements serial.Port and speaks the MFRC522 UART
// protocol on behalf of a VirtualMFRC522. Writes are answered with the
// echoed address, reads with the register value.
type MockSerialPort struct {
	sim         *virt.VirtualMFRC522
	readErr     error
	writeErr    error
	rx          []byte
	timeout     time.Duration
	pending     byte
	badEcho     bool
	hasPending  bool
	closed      bool
	resetInput  int
	interrupted int
}

// NewMockSerialPort creates a mock serial port in front of sim
func NewMockSerialPort(sim *virt.VirtualMFRC522) *MockSerialPort {
	return &MockSerialPort{sim: sim}
}

// Write implements serial.Port
func (m *MockSerialPort) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	for _, b := range p {
		switch {
		case m.hasPending:
			m.sim.HostWrite(m.pending, b)
			echo := m.pending
			if m.badEcho {
				echo ^= 0x01
			}
			m.rx = append(m.rx, echo)
			m.hasPending = false
		case b&uartReadFlag != 0:
			m.rx = append(m.rx, m.sim.HostRead(b&0x3F))
		default:
			m.pending = b
			m.hasPending = true
		}
	}
	return len(p), nil
}

// Read implements serial.Port. An empty receive queue behaves like a
// timeout and returns zero bytes.
func (m *MockSerialPort) Read(p []byte) (int, error) {
	if m.interrupted > 0 {
		m.interrupted--
		return 0, errors.New("read: interrupted system call")
	}
	if m.readErr != nil {
		return 0, m.readErr
	}
	n := copy(p, m.rx)
	m.rx = m.rx[n:]
	return n, nil
}

// SetMode implements serial.Port
func (*MockSerialPort) SetMode(*serial.Mode) error { return nil }

// Drain implements serial.Port
func (*MockSerialPort) Drain() error { return nil }

// ResetInputBuffer implements serial.Port
func (m *MockSerialPort) ResetInputBuffer() error {
	m.resetInput++
	m.rx = nil
	return nil
}

// ResetOutputBuffer implements serial.Port
func (*MockSerialPort) ResetOutputBuffer() error { return nil }

// SetDTR implements serial.Port
func (*MockSerialPort) SetDTR(bool) error { return nil }

// SetRTS implements serial.Port
func (*MockSerialPort) SetRTS(bool) error { return nil }

// GetModemStatusBits implements serial.Port
func (*MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// SetReadTimeout implements serial.Port
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.timeout = t
	return nil
}

// Close implements serial.Port
func (m *MockSerialPort) Close() error {
	m.closed = true
	return nil
}

// Break implements serial.Port
func (*MockSerialPort) Break(time.Duration) error { return nil }

var _ serial.Port = (*MockSerialPort)(nil)

func noDelay(time.Duration) {}

func newTestTransport(t *testing.T) (*Transport, *MockSerialPort, *virt.VirtualMFRC522) {
	t.Helper()
	sim := virt.NewVirtualMFRC522()
	port := NewMockSerialPort(sim)
	transport, err := newTransport(port, sim.ResetLine(), "/dev/ttyUSB0")
	require.NoError(t, err)
	return transport, port, sim
}

func TestNewTransport_PortSetup(t *testing.T) {
	t.Parallel()

	transport, port, sim := newTestTransport(t)

	assert.Equal(t, getWindowsTimeout(), port.timeout)
	assert.Equal(t, 1, port.resetInput)
	assert.Equal(t, []gpio.Level{gpio.High}, sim.ResetLine().History())
	assert.Equal(t, "/dev/ttyUSB0", transport.String())
	assert.Equal(t, mfrc522.TransportUART, transport.Type())
	assert.Equal(t, mfrc522.NoPin, transport.ChipSelect())
}

func TestTransport_Tx(t *testing.T) {
	t.Parallel()

	transport, _, sim := newTestTransport(t)

	// Write ModeReg (0x11) as an SPI frame
	require.NoError(t, transport.Tx([]byte{0x11 << 1, 0x3D}, make([]byte, 2)))
	assert.Equal(t, byte(0x3D), sim.Register(virt.RegMode))

	r := make([]byte, 2)
	require.NoError(t, transport.Tx([]byte{(virt.RegVersion << 1) | 0x80, 0x00}, r))
	assert.Equal(t, []byte{0x00, virt.VersionV2}, r)
}

func TestTransport_TxErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup   func(*MockSerialPort)
		name    string
		wantMsg string
		w       []byte
		r       []byte
	}{
		{
			name:    "short read buffer",
			setup:   func(*MockSerialPort) {},
			w:       []byte{(virt.RegVersion << 1) | 0x80, 0x00},
			r:       make([]byte, 1),
			wantMsg: "read buffer",
		},
		{
			name:    "wrong echo",
			setup:   func(m *MockSerialPort) { m.badEcho = true },
			w:       []byte{virt.RegMode << 1, 0x3D},
			r:       make([]byte, 2),
			wantMsg: "echoed as",
		},
		{
			name:    "write failure",
			setup:   func(m *MockSerialPort) { m.writeErr = errors.New("port gone") },
			w:       []byte{virt.RegMode << 1, 0x3D},
			r:       make([]byte, 2),
			wantMsg: "port gone",
		},
		{
			name:    "read failure",
			setup:   func(m *MockSerialPort) { m.readErr = errors.New("framing error") },
			w:       []byte{(virt.RegVersion << 1) | 0x80, 0x00},
			r:       make([]byte, 2),
			wantMsg: "framing error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport, port, _ := newTestTransport(t)
			tt.setup(port)

			err := transport.Tx(tt.w, tt.r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestTransport_ReadTimeout(t *testing.T) {
	t.Parallel()

	transport, _, _ := newTestTransport(t)

	// Nothing was sent, so nothing is queued for the read
	_, err := transport.readByte()
	require.Error(t, err)
	require.ErrorIs(t, err, errNoResponse)
	assert.True(t, mfrc522.IsRetryable(err))
}

func TestTransport_InterruptedReadRetries(t *testing.T) {
	t.Parallel()

	transport, port, _ := newTestTransport(t)
	port.interrupted = 2

	r := make([]byte, 2)
	require.NoError(t, transport.Tx([]byte{(virt.RegVersion << 1) | 0x80, 0x00}, r))
	assert.Equal(t, virt.VersionV2, r[1])
}

func TestTransport_DeviceOverUART(t *testing.T) {
	t.Parallel()

	transport, port, sim := newTestTransport(t)
	tag := virt.NewVirtualMIFARE1K(virt.TestUIDB)
	sim.AddTag(tag)

	device, err := mfrc522.Open(transport, mfrc522.WithDelay(noDelay))
	require.NoError(t, err)
	assert.Equal(t, 1, sim.ResetCount())

	present, err := device.IsNewTagPresent()
	require.NoError(t, err)
	require.True(t, present)

	uid, ok := device.CurrentUID()
	require.True(t, ok)
	selected, err := device.SelectTag(uid)
	require.NoError(t, err)
	require.True(t, selected)

	data, err := device.ReadBlock(3, uid, mfrc522.NewKeyA(mfrc522.DefaultKey))
	require.NoError(t, err)
	assert.Equal(t, tag.Block(3), data)

	require.NoError(t, device.Close())
	assert.True(t, port.closed)
}

func TestTransport_ClosedIsFatal(t *testing.T) {
	t.Parallel()

	transport, _, _ := newTestTransport(t)
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	err := transport.Tx([]byte{(virt.RegVersion << 1) | 0x80, 0x00}, make([]byte, 2))
	require.Error(t, err)
	assert.True(t, mfrc522.IsFatal(err))
}

func TestSetTimeout(t *testing.T) {
	t.Parallel()

	transport, port, _ := newTestTransport(t)
	require.NoError(t, transport.SetTimeout(200*time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, port.timeout)
}

func TestSetTimeout_AfterClose(t *testing.T) {
	t.Parallel()

	transport, port, _ := newTestTransport(t)
	require.NoError(t, transport.Close())

	err := transport.SetTimeout(time.Second)
	require.ErrorIs(t, err, mfrc522.ErrTransportClosed)
	assert.True(t, mfrc522.IsFatal(err))
	assert.NotEqual(t, time.Second, port.timeout)
}

func TestIsInterruptedSystemCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "eintr", err: errors.New("read /dev/ttyUSB0: EINTR"), want: true},
		{name: "message", err: errors.New("Interrupted System Call"), want: true},
		{name: "other", err: errors.New("device not configured"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isInterruptedSystemCall(tt.err))
		})
	}
}

func TestPlatformTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, runtime.GOOS == "windows", isWindows())
	if isWindows() {
		assert.Equal(t, 100*time.Millisecond, getWindowsTimeout())
	} else {
		assert.Equal(t, 50*time.Millisecond, getWindowsTimeout())
	}
}
