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

package detection

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-mfrc522"
)

// Candidate is a device node a detector found before probing
type Candidate struct {
	Metadata   map[string]string
	Path       string
	Name       string
	Confidence Confidence
}

// OpenFunc opens the bus behind a candidate path
type OpenFunc func(path string) (mfrc522.Bus, error)

// ProbeVersion opens a Device on bus, reads VersionReg and closes the bus.
// Probing is a single attempt; a port that is not a reader is never retried.
func ProbeVersion(bus mfrc522.Bus) (byte, error) {
	device, err := mfrc522.Open(bus)
	if err != nil {
		_ = bus.Close()
		return 0, err
	}
	defer func() { _ = device.Close() }()

	version, err := device.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	return version, nil
}

// ProbeCandidates turns candidates into devices. Ignored paths are dropped.
// In Passive mode every remaining candidate is returned as found; otherwise
// only candidates whose chip reports a known version are kept, with High
// confidence.
func ProbeCandidates(
	ctx context.Context,
	transport string,
	candidates []Candidate,
	opts *Options,
	open OpenFunc,
) ([]DeviceInfo, error) {
	var devices []DeviceInfo

	for _, c := range candidates {
		if ctx.Err() != nil {
			return devices, ErrDetectionTimeout
		}
		if IsPathIgnored(c.Path, opts.IgnorePaths) {
			continue
		}

		device := DeviceInfo{
			Transport:  transport,
			Path:       c.Path,
			Name:       c.Name,
			Confidence: c.Confidence,
			Metadata:   make(map[string]string, len(c.Metadata)+2),
		}
		for k, v := range c.Metadata {
			device.Metadata[k] = v
		}
		if device.Name == "" {
			device.Name = fmt.Sprintf("%s device at %s", transport, c.Path)
		}

		if opts.Mode == Passive {
			devices = append(devices, device)
			continue
		}
		if probeDevice(c.Path, open, &device) {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

func probeDevice(path string, open OpenFunc, device *DeviceInfo) bool {
	bus, err := open(path)
	if err != nil {
		mfrc522.Debugf("detection: cannot open %s: %v", path, err)
		return false
	}
	version, err := ProbeVersion(bus)
	if err != nil {
		mfrc522.Debugf("detection: probe of %s failed: %v", path, err)
		return false
	}

	name, known := mfrc522.VersionName(version)
	if !known {
		mfrc522.Debugf("detection: %s answered %s", path, name)
		return false
	}
	device.Confidence = High
	device.Metadata["version"] = fmt.Sprintf("0x%02X", version)
	device.Metadata["chip"] = name
	return true
}
