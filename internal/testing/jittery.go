// go-mfrc522
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-mfrc522.
//
// go-mfrc522 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-mfrc522 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-mfrc522; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package testing

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrInjectedFault is the default error returned by JitteryConn.
var ErrInjectedFault = errors.New("injected bus fault")

// TxConn is a full-duplex register bus.
type TxConn interface {
	Tx(w, r []byte) error
}

// JitterConfig configures the behavior of JitteryConn.
type JitterConfig struct {
	// Err is returned by failed transfers. Defaults to ErrInjectedFault.
	Err error
	// FailOn lists 1-based transfer numbers that fail.
	FailOn []int
	// FailAfter fails every transfer past this count when non-zero.
	FailAfter int
	// FailRate is the probability in [0,1] that any transfer fails.
	FailRate float64
	// MaxLatency adds a random delay before every transfer.
	MaxLatency time.Duration
	// Seed makes FailRate and MaxLatency reproducible when non-zero.
	Seed uint64
}

// JitteryConn wraps a register bus to simulate a flaky SPI cable or a
// chip that drops off the bus. Failed transfers never reach the backend.
type JitteryConn struct {
	backend TxConn
	rng     *rand.Rand
	failOn  map[int]bool
	config  JitterConfig
	count   int
	failed  int
	mu      sync.Mutex
}

// NewJitteryConn wraps backend with fault injection
func NewJitteryConn(backend TxConn, config JitterConfig) *JitteryConn {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}
	if config.Err == nil {
		config.Err = ErrInjectedFault
	}

	failOn := make(map[int]bool, len(config.FailOn))
	for _, n := range config.FailOn {
		failOn[n] = true
	}

	return &JitteryConn{
		backend: backend,
		config:  config,
		rng:     rng,
		failOn:  failOn,
	}
}

// Tx forwards the transfer unless it is selected to fail
func (j *JitteryConn) Tx(w, r []byte) error {
	j.mu.Lock()
	j.count++
	n := j.count
	fail := j.failOn[n] ||
		(j.config.FailAfter > 0 && n > j.config.FailAfter) ||
		(j.config.FailRate > 0 && j.rng.Float64() < j.config.FailRate)
	var delay time.Duration
	if j.config.MaxLatency > 0 {
		delay = time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1))
	}
	if fail {
		j.failed++
	}
	j.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return j.config.Err
	}
	return j.backend.Tx(w, r) //nolint:wrapcheck // Pass-through wrapper
}

// Transfers returns how many transfers were attempted
func (j *JitteryConn) Transfers() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Failures returns how many transfers were failed
func (j *JitteryConn) Failures() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failed
}

// Heal stops all further injected failures
func (j *JitteryConn) Heal() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failOn = map[int]bool{}
	j.config.FailAfter = 0
	j.config.FailRate = 0
}
