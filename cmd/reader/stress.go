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

package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"github.com/ZaparooProject/go-mfrc522/polling"
)

const blockSize = 16

var (
	errNotAcknowledged = errors.New("write not acknowledged")
	errMismatch        = errors.New("read back data does not match")
	errSelectRefused   = errors.New("select refused")
)

// StressTestResult holds the final result for a tag test.
type StressTestResult struct {
	UID       string
	CrashFile string
	Passed    int
	Failed    int
	Duration  time.Duration
	Success   bool
}

// CrashReport contains all information for debugging a failure.
type CrashReport struct {
	Timestamp    time.Time  `json:"timestamp"`
	TagUID       string     `json:"tag_uid"`
	KeyKind      string     `json:"key_kind"`
	Operation    string     `json:"operation"`
	Error        string     `json:"error"`
	ExpectedHex  string     `json:"expected_hex,omitempty"`
	ActualHex    string     `json:"actual_hex,omitempty"`
	SectorDump   []string   `json:"sector_dump,omitempty"`
	OperationLog []LogEntry `json:"operation_log"`
	Block        int        `json:"block"`
	Round        int        `json:"round"`
}

// LogEntry represents a single operation in the log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	DataHex   string    `json:"data_hex,omitempty"`
	Error     string    `json:"error,omitempty"`
	Success   bool      `json:"success"`
}

// stressRun is one tag's write/verify run
type stressRun struct {
	started  time.Time
	out      io.Writer
	device   *mfrc522.Device
	cfg      *config
	result   *StressTestResult
	crashDir string
	opLog    []LogEntry
	uid      mfrc522.UID
}

// testFailureInfo holds information about a test failure.
type testFailureInfo struct {
	err       error
	operation string
	expected  []byte
	actual    []byte
	round     int
}

func printStressTestBanner(out io.Writer, cfg *config) {
	_, _ = fmt.Fprintln(out, "================================================================================")
	_, _ = fmt.Fprintln(out, "                     MFRC522 MIFARE Classic Stress Test Mode")
	_, _ = fmt.Fprintln(out, "================================================================================")
	_, _ = fmt.Fprintf(out, "Rounds: %d write/verify cycles on block %d using %s\n", cfg.stress, cfg.block, cfg.key)
}

func runStressTestMode(ctx context.Context, out io.Writer, device *mfrc522.Device, cfg *config) error {
	printStressTestBanner(out, cfg)

	session, err := polling.NewSession(device, polling.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	var results []*StressTestResult
	var resultsMu syncutil.Mutex

	session.SetOnCardDetected(func(uid mfrc522.UID) error {
		printTagHeader(out, uid)
		var result *StressTestResult
		err := session.Do(func(d *mfrc522.Device) error {
			result = runStressTestForTag(out, d, uid, cfg, ".")
			return nil
		})
		if err != nil {
			return err
		}
		resultsMu.Lock()
		results = append(results, result)
		resultsMu.Unlock()
		return nil
	})

	session.SetOnCardRemoved(func(mfrc522.UID) {
		resultsMu.Lock()
		defer resultsMu.Unlock()
		_, _ = fmt.Fprintln(out)
		printFinalSummary(out, results)
		_, _ = fmt.Fprintln(out, "\nTag removed - ready for next test...")
		results = nil
	})

	_, _ = fmt.Fprintln(out, "\nWaiting for tag... (Press Ctrl+C to exit)")
	return session.Start(ctx)
}

func printTagHeader(out io.Writer, uid mfrc522.UID) {
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "--------------------------------------------------------------------------------")
	_, _ = fmt.Fprintf(out, "[TAG] UID=%s\n", uid.DebugString())
	_, _ = fmt.Fprintln(out, "--------------------------------------------------------------------------------")
}

// runStressTestForTag writes random data to the configured block and reads
// it back cfg.stress times. The block's original content is restored
// afterwards. A crash report lands in crashDir on the first failure.
func runStressTestForTag(
	out io.Writer,
	device *mfrc522.Device,
	uid mfrc522.UID,
	cfg *config,
	crashDir string,
) *StressTestResult {
	run := &stressRun{
		started:  time.Now(),
		out:      out,
		device:   device,
		cfg:      cfg,
		uid:      uid,
		crashDir: crashDir,
		opLog:    make([]LogEntry, 0, 2*cfg.stress+2),
		result:   &StressTestResult{UID: uid.String()},
	}

	original, err := run.prepare()
	if err != nil {
		run.fail(&testFailureInfo{err: err, operation: "prepare"})
	} else {
		run.rounds()
		run.restore(original)
	}

	run.result.Duration = time.Since(run.started)
	run.result.Success = run.result.Failed == 0 && run.result.Passed == cfg.stress
	printTagTestSummary(out, run.result, cfg.stress)
	return run.result
}

// prepare selects the tag and saves the block under test
func (r *stressRun) prepare() ([]byte, error) {
	_, _ = fmt.Fprint(r.out, "  Selecting tag... ")
	selected, err := r.device.SelectTag(r.uid)
	r.logOp("select", nil, err, selected)
	if err != nil {
		return nil, err
	}
	if !selected {
		return nil, errSelectRefused
	}

	original, err := r.device.ReadBlock(byte(r.cfg.block), r.uid, r.cfg.key)
	r.logOp("read original", original, err, err == nil)
	if err != nil {
		return nil, err
	}
	_, _ = fmt.Fprintln(r.out, "OK")
	return original, nil
}

func (r *stressRun) rounds() {
	for round := 1; round <= r.cfg.stress; round++ {
		if info := r.round(round); info != nil {
			r.fail(info)
			return
		}
		r.result.Passed++
	}
}

// round runs one write then read back cycle
func (r *stressRun) round(n int) *testFailureInfo {
	block := byte(r.cfg.block)
	data := make([]byte, blockSize)
	if _, err := rand.Read(data); err != nil {
		return &testFailureInfo{err: err, operation: "generate", round: n}
	}

	ok, err := r.device.WriteBlock(block, r.uid, data, r.cfg.key)
	r.logOp(fmt.Sprintf("write #%d", n), data, err, ok)
	if err == nil && !ok {
		err = errNotAcknowledged
	}
	if err != nil {
		return &testFailureInfo{err: err, operation: "write", expected: data, round: n}
	}

	actual, err := r.device.ReadBlock(block, r.uid, r.cfg.key)
	r.logOp(fmt.Sprintf("read #%d", n), actual, err, err == nil)
	if err != nil {
		return &testFailureInfo{err: err, operation: "read", expected: data, round: n}
	}
	if !bytes.Equal(data, actual) {
		return &testFailureInfo{err: errMismatch, operation: "verify", expected: data, actual: actual, round: n}
	}
	return nil
}

func (r *stressRun) restore(original []byte) {
	ok, err := r.device.WriteBlock(byte(r.cfg.block), r.uid, original, r.cfg.key)
	r.logOp("restore", original, err, ok)
	if err != nil || !ok {
		_, _ = fmt.Fprintf(r.out, "  [!] Failed to restore block %d (original % X)\n", r.cfg.block, original)
	}
}

func (r *stressRun) logOp(op string, data []byte, err error, success bool) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Operation: op,
		Success:   success,
	}
	if len(data) > 0 {
		entry.DataHex = formatHexString(data)
	}
	if err != nil {
		entry.Error = err.Error()
	}
	r.opLog = append(r.opLog, entry)
}

func (r *stressRun) fail(info *testFailureInfo) {
	r.result.Failed++
	_, _ = fmt.Fprintf(r.out, "\n  [!] FAILURE at %s (round %d): %v\n", info.operation, info.round, info.err)
	if mfrc522.IsFatal(info.err) {
		_, _ = fmt.Fprintln(r.out, "  [!] Reader is gone, skipping sector dump")
	}

	report := r.createCrashReport(info)
	filename, err := writeCrashReportToFile(r.crashDir, report)
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "  [!] Failed to write crash report: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "  Creating crash report... %s\n", filename)
	r.result.CrashFile = filename
}

// dumpSector reads every block of the sector holding the block under test.
// Unreadable blocks are reported inline.
func (r *stressRun) dumpSector() []string {
	first := r.cfg.block / 4 * 4
	lines := make([]string, 0, 4)
	for block := first; block < first+4; block++ {
		data, err := r.device.ReadBlock(byte(block), r.uid, r.cfg.key)
		if err != nil {
			lines = append(lines, fmt.Sprintf("Block %02d: <%v>", block, err))
			continue
		}
		lines = append(lines, fmt.Sprintf("Block %02d: %s", block, formatHexString(data)))
	}
	return lines
}

func (r *stressRun) createCrashReport(info *testFailureInfo) *CrashReport {
	report := &CrashReport{
		Timestamp:    time.Now(),
		TagUID:       r.uid.String(),
		KeyKind:      r.cfg.key.String(),
		Operation:    info.operation,
		Error:        info.err.Error(),
		Block:        r.cfg.block,
		Round:        info.round,
		OperationLog: r.opLog,
	}

	if len(info.expected) > 0 {
		report.ExpectedHex = formatHexString(info.expected)
	}
	if len(info.actual) > 0 {
		report.ActualHex = formatHexString(info.actual)
	}
	if !mfrc522.IsFatal(info.err) {
		// A reselect is needed after a failed authentication
		if _, err := r.device.IsNewTagPresent(); err == nil {
			if ok, err := r.device.SelectTag(r.uid); err == nil && ok {
				report.SectorDump = r.dumpSector()
			}
		}
	}

	return report
}

func writeCrashReportToFile(dir string, report *CrashReport) (string, error) {
	timestamp := report.Timestamp.Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("stress_test_crash_%s_%s.json", report.TagUID, timestamp))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal crash report: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write crash report: %w", err)
	}

	return filename, nil
}

func formatHexString(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

func printTagTestSummary(out io.Writer, result *StressTestResult, rounds int) {
	status := "PASS"
	if !result.Success {
		status = "FAIL"
	}

	_, _ = fmt.Fprintf(out, "\n  [%s] %s - %d/%d rounds passed - %s\n",
		status,
		result.UID,
		result.Passed,
		rounds,
		result.Duration.Round(time.Millisecond),
	)
}

func printFinalSummary(out io.Writer, results []*StressTestResult) {
	if len(results) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out, "================================================================================")
	_, _ = fmt.Fprintln(out, "                              STRESS TEST SUMMARY")
	_, _ = fmt.Fprintln(out, "================================================================================")

	passCount := 0
	failCount := 0
	crashCount := 0

	_, _ = fmt.Fprintf(out, "Runs: %d\n", len(results))
	for _, tagResult := range results {
		status := "PASS"
		if tagResult.Success {
			passCount++
		} else {
			status = "FAIL"
			failCount++
			if tagResult.CrashFile != "" {
				crashCount++
			}
		}

		_, _ = fmt.Fprintf(out, "  [%s] %s - %d rounds\n", status, tagResult.UID, tagResult.Passed)
	}

	_, _ = fmt.Fprintf(out, "\nOverall: %d PASS, %d FAIL\n", passCount, failCount)
	if crashCount > 0 {
		_, _ = fmt.Fprintf(out, "Crash reports written: %d\n", crashCount)
	}
	_, _ = fmt.Fprintln(out, "================================================================================")
}
