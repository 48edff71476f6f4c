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
	"testing"

	testutil "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTagPresent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup func(*testutil.VirtualMFRC522)
		name  string
		want  bool
	}{
		{
			name:  "empty field",
			setup: func(*testutil.VirtualMFRC522) {},
			want:  false,
		},
		{
			name: "MIFARE Classic card",
			setup: func(c *testutil.VirtualMFRC522) {
				c.AddTag(newTag(uidA))
			},
			want: true,
		},
		{
			name: "card with a different ATQA",
			setup: func(c *testutil.VirtualMFRC522) {
				tag := newTag(uidA)
				tag.ATQA = []byte{0x44, 0x00}
				c.AddTag(tag)
			},
			want: false,
		},
		{
			name: "three byte answer",
			setup: func(c *testutil.VirtualMFRC522) {
				c.SetResponseOverride(func(f testutil.Frame) ([]byte, bool) {
					return []byte{0x04, 0x00, 0x00}, true
				})
			},
			want: false,
		},
		{
			name: "one byte answer",
			setup: func(c *testutil.VirtualMFRC522) {
				c.SetResponseOverride(func(f testutil.Frame) ([]byte, bool) {
					return []byte{0x04}, true
				})
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, chip := newTestDevice(t)
			tt.setup(chip)

			got, err := device.IsTagPresent()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNewTagPresent_FirstSightingAdoptsUID(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	chip.AddTag(newTag(uidA))

	present, err := device.IsNewTagPresent()
	require.NoError(t, err)
	require.True(t, present)

	uid, ok := device.CurrentUID()
	require.True(t, ok)
	assert.Equal(t, uidOf(uidA), uid)
	assert.Equal(t, "deadbeef", uid.String())
}

func TestIsNewTagPresent_SameTagIsNotNew(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	chip.AddTag(newTag(uidA))

	results := make([]bool, 0, 3)
	for range 3 {
		present, err := device.IsNewTagPresent()
		require.NoError(t, err)
		results = append(results, present)
	}
	assert.Equal(t, []bool{true, false, false}, results)
}

func TestIsNewTagPresent_RemovalNeedsConsecutiveSilentPolls(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	tag := newTag(uidA)
	chip.AddTag(tag)

	present, err := device.IsNewTagPresent()
	require.NoError(t, err)
	require.True(t, present)

	tag.Remove()

	present, err = device.IsNewTagPresent()
	require.NoError(t, err)
	assert.False(t, present)
	_, ok := device.CurrentUID()
	assert.True(t, ok, "one silent poll keeps the tag")

	present, err = device.IsNewTagPresent()
	require.NoError(t, err)
	assert.False(t, present)
	_, ok = device.CurrentUID()
	assert.False(t, ok, "second silent poll drops the tag")

	tag.Insert()
	present, err = device.IsNewTagPresent()
	require.NoError(t, err)
	assert.True(t, present, "re-presented tag is new again")
}

func TestIsNewTagPresent_MissedPollDoesNotRetrigger(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	tag := newTag(uidA)
	chip.AddTag(tag)

	sightings := 0
	pattern := []bool{true, false, true, false, true, true}
	for _, inField := range pattern {
		if inField {
			tag.Insert()
		} else {
			tag.Remove()
		}
		present, err := device.IsNewTagPresent()
		require.NoError(t, err)
		if present {
			sightings++
		}
	}
	assert.Equal(t, 1, sightings)
}

func TestIsNewTagPresent_AbsenceThreshold(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t, WithAbsenceThreshold(1))
	tag := newTag(uidA)
	chip.AddTag(tag)

	_, err := device.IsNewTagPresent()
	require.NoError(t, err)
	tag.Remove()

	_, err = device.IsNewTagPresent()
	require.NoError(t, err)
	_, ok := device.CurrentUID()
	assert.False(t, ok)
}

func TestIsNewTagPresent_SwapReportsNewTag(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	chip.AddTag(newTag(uidA))

	present, err := device.IsNewTagPresent()
	require.NoError(t, err)
	require.True(t, present)

	chip.RemoveAllTags()
	chip.AddTag(newTag(uidB))

	present, err = device.IsNewTagPresent()
	require.NoError(t, err)
	assert.True(t, present)

	uid, ok := device.CurrentUID()
	require.True(t, ok)
	assert.Equal(t, uidOf(uidB), uid)
}

func TestIsNewTagPresent_InvalidCheckByteIgnored(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	tag := newTag(uidA)
	tag.CorruptBCC = true
	chip.AddTag(tag)

	present, err := device.IsNewTagPresent()
	require.NoError(t, err)
	assert.False(t, present)
	_, ok := device.CurrentUID()
	assert.False(t, ok)
}

func TestIsNewTagPresent_InvalidAnswerKeepsCurrentTag(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	chip.AddTag(newTag(uidA))

	_, err := device.IsNewTagPresent()
	require.NoError(t, err)

	chip.RemoveAllTags()
	corrupt := newTag(uidB)
	corrupt.CorruptBCC = true
	chip.AddTag(corrupt)

	// An answering card with a bad check byte counts as present, so the
	// absence counter never reaches the threshold.
	for range 3 {
		present, err := device.IsNewTagPresent()
		require.NoError(t, err)
		assert.False(t, present)
	}
	uid, ok := device.CurrentUID()
	require.True(t, ok)
	assert.Equal(t, uidOf(uidA), uid)
}

func TestForgetTag(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	chip.AddTag(newTag(uidA))

	_, err := device.IsNewTagPresent()
	require.NoError(t, err)

	device.ForgetTag()
	_, ok := device.CurrentUID()
	assert.False(t, ok)

	present, err := device.IsNewTagPresent()
	require.NoError(t, err)
	assert.True(t, present)
}

func TestIsNewTagPresent_BusError(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	chip.AddTag(newTag(uidA))
	chip.SetTxError(errors.New("spi: device gone"))

	present, err := device.IsNewTagPresent()
	require.Error(t, err)
	assert.False(t, present)
	assert.True(t, HasTrace(err))
	assert.Equal(t, "IsNewTagPresent", GetTrace(err).Operation)
}

func TestIsNewTagPresent_EmptyAnticollisionIsNotATag(t *testing.T) {
	t.Parallel()

	device, chip := newTestDevice(t)
	chip.AddTag(newTag(uidA))
	chip.SetResponseOverride(func(f testutil.Frame) ([]byte, bool) {
		if len(f.Data) == 2 && f.Data[0] == PICCAnticollision1 {
			return []byte{}, true
		}
		return nil, false
	})

	present, err := device.IsNewTagPresent()
	require.NoError(t, err)
	assert.False(t, present, "an empty FIFO must not read as UID 00000000")
	_, ok := device.CurrentUID()
	assert.False(t, ok)
}
