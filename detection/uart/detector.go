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

// Package uart registers a detector for MFRC522 readers behind serial
// ports, usually a USB to UART bridge.
package uart

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/uart"
	"go.bug.st/serial/enumerator"
)

// knownBridges are USB to UART bridges found on reader breakouts
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

// detector implements the Detector interface for UART devices.
type detector struct {
	listPorts func() ([]*enumerator.PortDetails, error)
	open      detection.OpenFunc
}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{
		listPorts: enumerator.GetDetailedPortsList,
		open:      openBus,
	}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect searches for MFRC522 devices on serial ports. Passive mode only
// reports ports behind a known bridge.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var candidates []detection.Candidate
	for _, port := range ports {
		candidate := toCandidate(port)
		vidpid := candidate.Metadata["vidpid"]
		if vidpid != "" && detection.IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		if opts.Mode == detection.Passive && candidate.Confidence < detection.Medium {
			continue
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return detection.ProbeCandidates(ctx, d.Transport(), candidates, opts, d.open)
}

func toCandidate(port *enumerator.PortDetails) detection.Candidate {
	candidate := detection.Candidate{
		Path:       port.Name,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string),
	}
	if !port.IsUSB {
		return candidate
	}

	vidpid := strings.ToUpper(port.VID + ":" + port.PID)
	candidate.Metadata["vidpid"] = vidpid
	if port.Product != "" {
		candidate.Metadata["product"] = port.Product
		candidate.Name = fmt.Sprintf("%s (%s)", port.Product, port.Name)
	}
	if port.SerialNumber != "" {
		candidate.Metadata["serial"] = port.SerialNumber
	}
	if slices.Contains(knownBridges, vidpid) {
		candidate.Confidence = detection.Medium
	}
	return candidate
}

func openBus(path string) (mfrc522.Bus, error) {
	transport, err := uart.New(uart.Config{Port: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART transport: %w", err)
	}
	return transport, nil
}
