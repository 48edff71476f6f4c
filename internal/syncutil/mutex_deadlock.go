//go:build deadlock

package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-checked mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-checked read/write mutex.
type RWMutex struct {
	deadlock.RWMutex
}
