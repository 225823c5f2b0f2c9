//go:build deadlock

// Package syncutil provides the mutex types used across go-ps2kbd.
// This file is compiled with -tags=deadlock and swaps in go-deadlock so that
// lock-order problems between the polling session and status readers show up
// in tests.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-detecting read/write mutex.
type RWMutex struct {
	deadlock.RWMutex
}
