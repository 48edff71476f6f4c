//go:build !deadlock

// Package syncutil holds the lock types shared by the driver's long-lived
// goroutines. Release builds get the sync package types. Building with
// -tags=deadlock swaps in github.com/sasha-s/go-deadlock, which reports lock
// order inversions and locks held past its timeout.
package syncutil

import "sync"

// Mutex serializes access to a bus or session.
//
//nolint:gocritic // Embedded so Lock and Unlock are promoted
type Mutex struct {
	sync.Mutex
}

// RWMutex guards state read by callers while a poll loop writes it.
//
//nolint:gocritic // Embedded so the lock methods are promoted
type RWMutex struct {
	sync.RWMutex
}
