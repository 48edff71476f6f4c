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

package testing

import (
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Pin is a recording digital output line. It satisfies mfrc522.Pin and
// periph's Out half of gpio.PinOut.
type Pin struct {
	err      error
	onChange func(gpio.Level)
	name     string
	history  []gpio.Level
	mu       sync.Mutex
	level    gpio.Level
}

// NewPin creates a line at the given initial level
func NewPin(name string, initial gpio.Level) *Pin {
	return &Pin{name: name, level: initial}
}

// Out drives the line. Every call is recorded, including repeated levels.
func (p *Pin) Out(l gpio.Level) error {
	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return err
	}
	p.level = l
	p.history = append(p.history, l)
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(l)
	}
	return nil
}

// Level returns the current level
func (p *Pin) Level() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// History returns every level the line was driven to, in order
func (p *Pin) History() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level(nil), p.history...)
}

// ClearHistory forgets recorded levels
func (p *Pin) ClearHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = nil
}

// SetError makes every following Out fail with err. Pass nil to clear.
func (p *Pin) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// String returns the pin name
func (p *Pin) String() string {
	return p.name
}
