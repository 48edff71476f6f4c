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

// Package i2c registers a detector for MFRC522 readers in I2C host mode.
package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/i2c"
)

// detector implements the Detector interface for I2C devices
type detector struct {
	glob func(pattern string) ([]string, error)
	open detection.OpenFunc
	goos string
	addr uint16
}

// New creates a new I2C detector probing the default address
func New() detection.Detector {
	return &detector{
		glob: filepath.Glob,
		open: openBus,
		goos: runtime.GOOS,
		addr: i2c.DefaultAddr,
	}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "i2c"
}

// Detect searches for MFRC522 devices on I2C buses. Paths carry the chip
// address, e.g. "/dev/i2c-1:0x28"; transport/i2c drops the suffix when
// opening the bus.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	// I2C detection is platform-specific
	if d.goos != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	buses, err := d.glob("/dev/i2c-*")
	if err != nil || len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	candidates := make([]detection.Candidate, 0, len(buses))
	for _, bus := range buses {
		candidates = append(candidates, detection.Candidate{
			Path:       fmt.Sprintf("%s:0x%02X", bus, d.addr),
			Name:       fmt.Sprintf("I2C device on %s", filepath.Base(bus)),
			Confidence: detection.Low,
			Metadata:   map[string]string{"address": fmt.Sprintf("0x%02X", d.addr)},
		})
	}
	return detection.ProbeCandidates(ctx, d.Transport(), candidates, opts, d.open)
}

func openBus(path string) (mfrc522.Bus, error) {
	transport, err := i2c.New(i2c.Config{Bus: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C transport: %w", err)
	}
	return transport, nil
}
