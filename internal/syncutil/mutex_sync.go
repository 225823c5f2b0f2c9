//go:build !deadlock

// Package syncutil provides the mutex types used across go-ps2kbd.
// Default builds use the standard library locks; build with -tags=deadlock to
// get github.com/sasha-s/go-deadlock instead.
package syncutil

import "sync"

// Mutex is a plain sync.Mutex in default builds.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex is a plain sync.RWMutex in default builds.
//
//nolint:gocritic // embedding exposes the RWMutex method set directly
type RWMutex struct {
	sync.RWMutex
}
