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

// Package spi registers a detector for MFRC522 readers on Linux spidev
// ports.
package spi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
)

// EnvDevice names an extra spidev path to consider, e.g. one exposed under
// a nonstandard name by a udev rule.
const EnvDevice = "MFRC522_SPI_DEVICE"

// detector implements the Detector interface for SPI devices
type detector struct {
	glob   func(pattern string) ([]string, error)
	getenv func(key string) string
	open   detection.OpenFunc
	goos   string
}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{
		glob:   filepath.Glob,
		getenv: os.Getenv,
		open:   openBus,
		goos:   runtime.GOOS,
	}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

// Detect searches for MFRC522 devices on SPI buses
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if d.goos != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	candidates := d.gatherCandidates()
	if len(candidates) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return detection.ProbeCandidates(ctx, d.Transport(), candidates, opts, d.open)
}

// gatherCandidates lists the environment override and /dev/spidev* nodes
func (d *detector) gatherCandidates() []detection.Candidate {
	var paths []string
	if env := d.getenv(EnvDevice); env != "" {
		paths = append(paths, env)
	}
	if matches, err := d.glob("/dev/spidev*"); err == nil {
		paths = append(paths, matches...)
	}

	seen := make(map[string]bool)
	var candidates []detection.Candidate
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		candidates = append(candidates, detection.Candidate{
			Path:       path,
			Name:       fmt.Sprintf("SPI device %s", filepath.Base(path)),
			Confidence: detection.Low,
		})
	}
	return candidates
}

// openBus opens the port with the controller's chip select and no reset
// line, so probing works whatever GPIOs the board uses.
func openBus(path string) (mfrc522.Bus, error) {
	transport, err := spi.New(spi.Config{Port: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI transport: %w", err)
	}
	return transport, nil
}
