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

package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_CandidatePaths(t *testing.T) {
	t.Parallel()

	var opened []string
	d := &detector{
		glob: func(string) ([]string, error) { return []string{"/dev/i2c-0", "/dev/i2c-1"}, nil },
		open: func(path string) (mfrc522.Bus, error) {
			opened = append(opened, path)
			return nil, errors.New("no hardware in tests")
		},
		goos: "linux",
		addr: 0x28,
	}

	devices, err := d.Detect(context.Background(), &detection.Options{Mode: detection.Passive})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/i2c-1:0x28", devices[1].Path)
	assert.Equal(t, "0x28", devices[1].Metadata["address"])
	assert.Empty(t, opened)

	_, err = d.Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
	assert.Equal(t, []string{"/dev/i2c-0:0x28", "/dev/i2c-1:0x28"}, opened)
}

func TestDetector_Unsupported(t *testing.T) {
	t.Parallel()

	d := &detector{goos: "darwin"}
	_, err := d.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrUnsupportedPlatform)
}
