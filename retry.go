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

package mfrc522

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures caller-side retry behavior. The Device itself never
// retries; the polling session and the CLI use this around Reset and Open.
type RetryConfig struct {
	// OnRetry, when set, is called after a retryable failure and before
	// the wait that precedes the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
	// MaxAttempts bounds the number of calls. Zero or less calls once.
	MaxAttempts int
	// InitialBackoff is the wait after the first failure
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts
	MaxBackoff time.Duration
	// BackoffMultiplier grows the wait after each failure
	BackoffMultiplier float64
	// Jitter adds up to this fraction of the wait at random
	Jitter float64
	// RetryTimeout bounds all attempts together. Zero leaves it to ctx.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns a default retry configuration sized for a
// chip reset, which alone takes 100 ms.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      5 * time.Second,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// RetryWithConfig calls retryFunc until it succeeds, returns an error for
// which IsRetryable is false, or the attempt budget runs out. The last
// error is returned as is. A context that ends before the first attempt
// yields its error, and one that ends later yields the last failure.
func RetryWithConfig(ctx context.Context, config *RetryConfig, retryFunc RetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 0 {
		return retryFunc()
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("retry context cancelled: %w", err)
	}

	wait := config.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := retryFunc()
		if err == nil || !IsRetryable(err) || attempt >= config.MaxAttempts {
			return err
		}

		sleep := calculateJitteredSleep(wait, config.Jitter)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, sleep)
		}
		debugf("attempt %d/%d failed, retrying in %s: %v", attempt, config.MaxAttempts, sleep, err)

		if !sleepContext(ctx, sleep) {
			return err
		}
		wait = calculateNextBackoff(wait, config)
	}
}

// sleepContext waits d and reports false if ctx ended first
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func calculateNextBackoff(backoff time.Duration, config *RetryConfig) time.Duration {
	next := time.Duration(float64(backoff) * config.BackoffMultiplier)
	return min(next, config.MaxBackoff)
}

// calculateJitteredSleep adds a random share of up to jitterFactor of base
func calculateJitteredSleep(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}
	return base + time.Duration(rand.Float64()*jitterFactor*float64(base))
}
