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
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport read", err: ErrTransportRead, want: true},
		{name: "transport write", err: ErrTransportWrite, want: true},
		{name: "short exchange", err: ErrShortExchange, want: true},
		{name: "chip select", err: ErrChipSelectFailed, want: true},
		{name: "wrapped transport read", err: fmt.Errorf("block 4: %w", ErrTransportRead), want: true},
		{name: "missing key", err: ErrMissingKey, want: false},
		{name: "data too large", err: ErrDataTooLarge, want: false},
		{name: "invalid parameter", err: ErrInvalidParameter, want: false},
		{name: "device not found", err: ErrDeviceNotFound, want: false},
		{name: "transient transport error", err: NewTransportReadError("exchange", "spidev0.0"), want: true},
		{name: "permanent transport error", err: NewTransportClosedError("exchange", "spidev0.0"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport closed", err: ErrTransportClosed, want: true},
		{name: "device not found", err: ErrDeviceNotFound, want: true},
		{name: "EOF", err: io.EOF, want: true},
		{name: "ENODEV", err: fmt.Errorf("spi tx: %w", syscall.ENODEV), want: true},
		{name: "EIO", err: syscall.EIO, want: true},
		{name: "EAGAIN", err: syscall.EAGAIN, want: false},
		{name: "permanent transport error", err: NewTransportClosedError("exchange", ""), want: true},
		{name: "transient transport error", err: NewTransportWriteError("exchange", ""), want: false},
		{name: "missing key", err: ErrMissingKey, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestTransportError_Format(t *testing.T) {
	t.Parallel()

	err := NewTransportError("exchange", "/dev/spidev0.0", ErrTransportRead, ErrorTypeTransient)
	assert.Equal(t, "exchange /dev/spidev0.0: transport read failed", err.Error())
	require.ErrorIs(t, err, ErrTransportRead)
	assert.True(t, err.Retryable)

	noPort := NewTransportError("reset", "", ErrResetLineFailed, ErrorTypePermanent)
	assert.Equal(t, "reset: reset line failed", noPort.Error())
	assert.False(t, noPort.Retryable)
}

func TestTraceBuffer_KeepsMostRecent(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("IsTagPresent", 2)
	tb.RecordTX([]byte{0x1A, 0x07}, "write BitFramingReg")
	tb.RecordTX([]byte{0x02, 0x00}, "write CommandReg")
	tb.RecordRX([]byte{0x00, 0x00}, "write CommandReg")
	assert.Equal(t, 2, tb.Len())

	err := tb.WrapError(ErrTransportRead)
	trace := GetTrace(err)
	require.NotNil(t, trace)
	require.Len(t, trace.Trace, 2)
	assert.Equal(t, TraceTX, trace.Trace[0].Direction)
	assert.Equal(t, []byte{0x02, 0x00}, trace.Trace[0].Data)
	assert.Equal(t, TraceRX, trace.Trace[1].Direction)

	require.ErrorIs(t, err, ErrTransportRead)
	assert.Equal(t, ErrTransportRead.Error(), err.Error())
}

func TestTraceBuffer_WrapNil(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("op", 0)
	require.NoError(t, tb.WrapError(nil))
	assert.False(t, HasTrace(errors.New("plain")))
	assert.Nil(t, GetTrace(errors.New("plain")))
}

func TestTraceableError_FormatTrace(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("Version", 4)
	tb.RecordTX([]byte{0xEE, 0x00}, "read VersionReg")
	formatted := GetTrace(tb.WrapError(ErrTransportRead)).FormatTrace()

	assert.True(t, strings.HasPrefix(formatted, "[Version] Wire trace (1 entries):"))
	assert.Contains(t, formatted, "> EE 00 (read VersionReg)")

	empty := &TraceableError{Err: ErrTransportRead, Operation: "Reset"}
	assert.Equal(t, "[Reset] (no trace data)", empty.FormatTrace())
}
