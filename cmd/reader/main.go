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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	_ "github.com/ZaparooProject/go-mfrc522/detection/i2c"
	_ "github.com/ZaparooProject/go-mfrc522/detection/spi"
	_ "github.com/ZaparooProject/go-mfrc522/detection/uart"
	"github.com/ZaparooProject/go-mfrc522/polling"
	"github.com/ZaparooProject/go-mfrc522/transport/i2c"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
	"github.com/ZaparooProject/go-mfrc522/transport/uart"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const noBlock = -1

var errUsage = errors.New("invalid arguments")

type config struct {
	key       mfrc522.AuthKey
	writeData []byte
	transport string
	device    string
	csPin     string
	rstPin    string
	ledPin    string
	block     int
	stress    int
	halt      bool
	debug     bool
	log       bool
}

func parseConfig(args []string) (*config, error) {
	fs := flag.NewFlagSet("reader", flag.ContinueOnError)
	cfg := &config{}

	var keyHex, writeHex string
	var useKeyB bool
	fs.StringVar(&cfg.transport, "transport", "", "Transport: spi, i2c or uart (inferred from -device if empty)")
	fs.StringVar(&cfg.device, "device", "", "Device path (auto-detect if empty)")
	fs.StringVar(&cfg.csPin, "cs", "", "GPIO driving chip select (SPI only; empty uses the controller's CS)")
	fs.StringVar(&cfg.rstPin, "rst", "", "GPIO driving the reset line (empty if tied high)")
	fs.StringVar(&cfg.ledPin, "led", "", "GPIO of an LED to light while a tag answers (runs the LED demo)")
	fs.IntVar(&cfg.block, "block", noBlock, "Block to read from each detected tag (0-63)")
	fs.StringVar(&keyHex, "key", "FFFFFFFFFFFF", "Sector key as 12 hex characters")
	fs.BoolVar(&useKeyB, "keyb", false, "Authenticate with key B instead of key A")
	fs.StringVar(&writeHex, "write", "", "Hex data (up to 16 bytes) to write to -block before reading it")
	fs.BoolVar(&cfg.halt, "halt", false, "Halt each tag after processing so it is reported once per insertion")
	fs.IntVar(&cfg.stress, "stress", 0, "Run N write/verify rounds on -block of each detected tag")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")
	fs.BoolVar(&cfg.log, "log", false, "Write a session log file in the current directory")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	kind := mfrc522.KeyA
	if useKeyB {
		kind = mfrc522.KeyB
	}
	key, err := mfrc522.ParseKey(kind, keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: -key: %w", errUsage, err)
	}
	cfg.key = key

	if writeHex != "" {
		data, err := hex.DecodeString(writeHex)
		if err != nil {
			return nil, fmt.Errorf("%w: -write: %w", errUsage, err)
		}
		if len(data) > 16 {
			return nil, fmt.Errorf("%w: -write holds %d bytes, a block holds 16", errUsage, len(data))
		}
		cfg.writeData = data
	}

	return cfg, validateConfig(cfg)
}

func validateConfig(cfg *config) error {
	switch cfg.transport {
	case "", "spi", "i2c", "uart":
	default:
		return fmt.Errorf("%w: unsupported transport %q", errUsage, cfg.transport)
	}
	if cfg.block != noBlock && (cfg.block < 0 || cfg.block > 63) {
		return fmt.Errorf("%w: -block %d out of range", errUsage, cfg.block)
	}
	if (cfg.writeData != nil || cfg.stress > 0) && cfg.block == noBlock {
		return fmt.Errorf("%w: -write and -stress need -block", errUsage)
	}
	if cfg.writeData != nil && cfg.block%4 == 3 {
		return fmt.Errorf("%w: refusing to write sector trailer block %d", errUsage, cfg.block)
	}
	if cfg.stress > 0 && (cfg.block == 0 || cfg.block%4 == 3) {
		return fmt.Errorf("%w: -stress needs a data block, not %d", errUsage, cfg.block)
	}
	return nil
}

// inferTransport picks the transport for an explicit device path
func inferTransport(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "i2c"):
		return "i2c"
	case strings.Contains(lower, "spi"):
		return "spi"
	default:
		return "uart"
	}
}

// newBus opens the transport named by kind at path
func newBus(kind, path string, cfg *config) (mfrc522.Bus, error) {
	switch kind {
	case "spi":
		transport, err := spi.New(spi.Config{Port: path, ChipSelectPin: cfg.csPin, ResetPin: cfg.rstPin})
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return transport, nil
	case "i2c":
		transport, err := i2c.New(i2c.Config{Bus: path, ResetPin: cfg.rstPin})
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return transport, nil
	case "uart":
		transport, err := uart.New(uart.Config{Port: path, ResetPin: cfg.rstPin})
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", kind)
	}
}

// resolveDevice returns the transport and path to open, detecting one when
// -device is empty.
func resolveDevice(ctx context.Context, cfg *config) (kind, path string, err error) {
	if cfg.device != "" {
		kind = cfg.transport
		if kind == "" {
			kind = inferTransport(cfg.device)
		}
		return kind, cfg.device, nil
	}

	opts := detection.DefaultOptions()
	if cfg.transport != "" {
		opts.Transports = []string{cfg.transport}
	}
	if cfg.debug {
		_, _ = fmt.Println("Auto-detecting MFRC522 devices...")
	}
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return "", "", fmt.Errorf("auto-detection failed: %w", err)
	}
	found := devices[0]
	for _, device := range devices[1:] {
		if device.Confidence > found.Confidence {
			found = device
		}
	}
	if cfg.debug {
		_, _ = fmt.Printf("Using %s\n", found)
	}
	return found.Transport, found.Path, nil
}

func connectToDevice(ctx context.Context, cfg *config) (*mfrc522.Device, error) {
	kind, path, err := resolveDevice(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var device *mfrc522.Device
	err = mfrc522.RetryWithConfig(ctx, mfrc522.DefaultRetryConfig(), func() error {
		bus, busErr := newBus(kind, path, cfg)
		if busErr != nil {
			return busErr
		}
		opened, openErr := mfrc522.Open(bus)
		if openErr != nil {
			_ = bus.Close()
			return openErr
		}
		device = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MFRC522 device: %w", err)
	}

	version, err := device.Version()
	if err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to read chip version: %w", err)
	}
	name, known := mfrc522.VersionName(version)
	if !known {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: %s reports %s, is a reader attached?\n", path, name)
	} else if cfg.debug {
		_, _ = fmt.Printf("%s on %s %s\n", name, kind, path)
	}
	return device, nil
}

// processCard selects the card and runs the configured block operations
func processCard(out io.Writer, device *mfrc522.Device, uid mfrc522.UID, cfg *config) error {
	if cfg.block != noBlock {
		if err := accessBlock(out, device, uid, cfg); err != nil {
			return err
		}
	}
	if cfg.halt {
		if err := device.HaltTag(); err != nil {
			return fmt.Errorf("failed to halt tag: %w", err)
		}
	}
	return nil
}

func accessBlock(out io.Writer, device *mfrc522.Device, uid mfrc522.UID, cfg *config) error {
	block := byte(cfg.block)

	selected, err := device.SelectTag(uid)
	if err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	if !selected {
		_, _ = fmt.Fprintf(out, "  select of %s refused\n", uid)
		return nil
	}

	if cfg.writeData != nil {
		ok, err := device.WriteBlock(block, uid, cfg.writeData, cfg.key)
		if err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		if !ok {
			_, _ = fmt.Fprintf(out, "  write to block %d not acknowledged (%s)\n", block, cfg.key)
			return nil
		}
		_, _ = fmt.Fprintf(out, "  wrote block %d\n", block)
	}

	data, err := device.ReadBlock(block, uid, cfg.key)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "  block %2d: % X\n", block, data)
	return nil
}

func runReadMode(ctx context.Context, out io.Writer, device *mfrc522.Device, cfg *config) error {
	session, err := polling.NewSession(device, polling.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	_, _ = fmt.Fprintln(out, "Starting continuous tag monitoring. Press Ctrl+C to stop...")

	session.SetOnCardDetected(func(uid mfrc522.UID) error {
		_, _ = fmt.Fprintf(out, "Tag detected: UID=%s\n", uid)
		err := session.Do(func(d *mfrc522.Device) error {
			return processCard(out, d, uid, cfg)
		})
		if err != nil {
			// Bus errors surface on the next poll; keep monitoring
			_, _ = fmt.Fprintf(out, "  %v\n", err)
			if cfg.debug {
				if trace := mfrc522.GetTrace(err); trace != nil {
					_, _ = fmt.Fprint(out, trace.FormatTrace())
				}
			}
		}
		return nil
	})
	session.SetOnCardRemoved(func(uid mfrc522.UID) {
		_, _ = fmt.Fprintf(out, "Tag removed: UID=%s\n", uid)
	})

	return session.Start(ctx)
}

// runLEDMode lights led while a tag answers REQA, halting it after each
// poll.
func runLEDMode(ctx context.Context, device *mfrc522.Device, led mfrc522.Pin, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer func() { _ = led.Out(gpio.Low) }()

	for {
		present, err := device.IsTagPresent()
		if err != nil {
			return fmt.Errorf("presence check failed: %w", err)
		}
		if err := led.Out(gpio.Level(present)); err != nil {
			return fmt.Errorf("failed to drive LED: %w", err)
		}
		if err := device.HaltTag(); err != nil {
			return fmt.Errorf("failed to halt tag: %w", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func lookupLED(name string) (mfrc522.Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: GPIO %s", mfrc522.ErrDeviceNotFound, name)
	}
	return pin, nil
}

func run(ctx context.Context, cfg *config) error {
	if cfg.log {
		path, err := mfrc522.InitSessionLog()
		if err != nil {
			return fmt.Errorf("failed to open session log: %w", err)
		}
		_, _ = fmt.Printf("Session log: %s\n", path)
		defer func() { _ = mfrc522.CloseSessionLog() }()
	}

	device, err := connectToDevice(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	switch {
	case cfg.ledPin != "":
		led, err := lookupLED(cfg.ledPin)
		if err != nil {
			return err
		}
		return runLEDMode(ctx, device, led, 50*time.Millisecond)
	case cfg.stress > 0:
		return runStressTestMode(ctx, os.Stdout, device, cfg)
	default:
		return runReadMode(ctx, os.Stdout, device, cfg)
	}
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, err := parseConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if cfg.debug {
		mfrc522.SetDebugEnabled(true)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			// User requested shutdown, exit cleanly
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
