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

/*
Package mfrc522 is a driver for NXP MFRC522 contactless reader chips and
compatible clones.

The driver turns register reads and writes into the ISO 14443A card
protocol: it detects cards in the field, retrieves their UID with an
anticollision round, selects a card, authenticates sectors with the chip's
MIFARE Classic engine, and reads and writes 16-byte blocks.

Every operation is synchronous. Command cycles do not poll the chip for
completion; they wait a fixed budget (25 ms, 50 ms per reset edge) through
an injectable Delay.

Basic Usage:

	import (
		"github.com/ZaparooProject/go-mfrc522"
		"github.com/ZaparooProject/go-mfrc522/transport/spi"
	)

	bus, err := spi.New(spi.Config{Port: "/dev/spidev0.0", ResetPin: "GPIO25"})
	if err != nil {
		log.Fatal(err)
	}
	device, err := mfrc522.Open(bus)
	if err != nil {
		log.Fatal(err)
	}
	defer device.Close()

	for {
		isNew, err := device.IsNewTagPresent()
		if err != nil {
			log.Fatal(err)
		}
		if isNew {
			uid, _ := device.CurrentUID()
			ok, _ := device.SelectTag(uid)
			if ok {
				data, _ := device.ReadBlock(4, uid, mfrc522.NewKeyA(mfrc522.DefaultKey))
				fmt.Printf("%s: %x\n", uid, data)
			}
		}
	}

The polling package wraps this loop with callbacks and recovery.

Debug output is enabled with MFRC522_DEBUG=1 or SetDebugEnabled.
*/
package mfrc522
