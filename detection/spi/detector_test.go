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

package spi

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(env string, nodes ...string) *detector {
	return &detector{
		glob: func(pattern string) ([]string, error) {
			if pattern != "/dev/spidev*" {
				return nil, errors.New("unexpected pattern " + pattern)
			}
			return nodes, nil
		},
		getenv: func(key string) string {
			if key == EnvDevice {
				return env
			}
			return ""
		},
		open: func(string) (mfrc522.Bus, error) {
			return nil, errors.New("no hardware in tests")
		},
		goos: "linux",
	}
}

func TestDetector_PassiveListsNodes(t *testing.T) {
	t.Parallel()

	d := newTestDetector("/dev/rc522", "/dev/spidev0.0", "/dev/spidev0.1", "/dev/rc522")
	opts := &detection.Options{Mode: detection.Passive, IgnorePaths: []string{"/dev/spidev0.1"}}

	devices, err := d.Detect(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/rc522", devices[0].Path, "environment override comes first")
	assert.Equal(t, "/dev/spidev0.0", devices[1].Path)
	assert.Equal(t, "SPI device spidev0.0", devices[1].Name)
	assert.Equal(t, "spi", devices[1].Transport)
}

func TestDetector_SafeModeDropsUnopenable(t *testing.T) {
	t.Parallel()

	d := newTestDetector("", "/dev/spidev0.0")
	_, err := d.Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetector_NoNodes(t *testing.T) {
	t.Parallel()

	_, err := newTestDetector("").Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetector_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	d := newTestDetector("", "/dev/spidev0.0")
	d.goos = "windows"
	_, err := d.Detect(context.Background(), &detection.Options{})
	require.ErrorIs(t, err, detection.ErrUnsupportedPlatform)
	assert.Equal(t, "spi", d.Transport())
}
