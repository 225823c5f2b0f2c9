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

// Package polling runs the keyboard loop: it answers the host, feeds key
// events into the keyboard and releases repeat-driven keys once their
// repeats stop.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"github.com/ZaparooProject/go-ps2kbd/internal/syncutil"
)

// Keyboard is the part of *ps2kbd.Keyboard a session drives
type Keyboard interface {
	Poll() bool
	Press(key ps2kbd.Keycode) int
	Release(key ps2kbd.Keycode) int
	ReleaseAll() int
}

// EventKind says what an Event does
type EventKind int

const (
	// EventPress holds a key down until its EventRelease
	EventPress EventKind = iota
	// EventRelease lets a key up
	EventRelease
	// EventHit holds a key down until ReleaseTimeout passes without
	// another hit of the same key
	EventHit
	// EventReleaseAll lets every key up
	EventReleaseAll
)

// String returns the kind name
func (k EventKind) String() string {
	switch k {
	case EventPress:
		return "press"
	case EventRelease:
		return "release"
	case EventHit:
		return "hit"
	case EventReleaseAll:
		return "release-all"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one key transition from an event source
type Event struct {
	Kind EventKind
	Key  ps2kbd.Keycode
}

// String formats the event for logs
func (e Event) String() string {
	if e.Kind == EventReleaseAll {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Key)
}

// ErrSessionClosed is returned by Send and Run after Close
var ErrSessionClosed = errors.New("session closed")

// ErrSessionRunning is returned by Run while another Run is active
var ErrSessionRunning = errors.New("session already running")

// Stats counts what a session did
type Stats struct {
	Commands uint64
	Presses  uint64
	Releases uint64
	Dropped  uint64
	Stalls   uint64
}

// Session owns a keyboard and drives it from one goroutine
type Session struct {
	kb       Keyboard
	config   *Config
	events   chan Event
	now      func() time.Time
	hit      HitKey
	stats    Stats
	statsMu  syncutil.Mutex
	running  atomic.Bool
	closed   atomic.Bool
	isPaused atomic.Bool
}

// NewSession creates a session for kb
func NewSession(kb Keyboard, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	buffer := config.EventBuffer
	if buffer <= 0 {
		buffer = DefaultConfig().EventBuffer
	}
	return &Session{
		kb:     kb,
		config: config,
		events: make(chan Event, buffer),
		now:    time.Now,
	}
}

// Events returns the channel event sources write to
func (s *Session) Events() chan<- Event {
	return s.events
}

// Send queues ev, blocking while the buffer is full
func (s *Session) Send(ctx context.Context, ev Event) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops applying events. The host is still answered and a held hit
// key is still released on time.
func (s *Session) Pause() {
	s.isPaused.Store(true)
}

// Resume applies queued events again
func (s *Session) Resume() {
	s.isPaused.Store(false)
}

// IsPaused reports whether events are held back
func (s *Session) IsPaused() bool {
	return s.isPaused.Load()
}

// GetStats returns a snapshot of the counters
func (s *Session) GetStats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Close stops future Run and Send calls. A running loop exits on its next
// iteration and releases all keys.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Run polls the keyboard until ctx ends or the session is closed. Every key
// is released before it returns.
func (s *Session) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer s.running.Store(false)
	defer s.releaseAll("session ended")

	last := s.now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.closed.Load() {
			return ErrSessionClosed
		}

		now := s.now()
		if s.config.SleepRecovery.DetectSleep(now.Sub(last), s.config.PollInterval) {
			ps2kbd.Debugf("polling: loop stalled for %v", now.Sub(last))
			s.count(func(st *Stats) { st.Stalls++ })
			s.releaseAll("stall")
		}
		last = now

		s.Step(now)

		if err := s.wait(ctx); err != nil {
			return err
		}
	}
}

// wait sleeps for PollInterval, or not at all when it is zero.
func (s *Session) wait(ctx context.Context) error {
	if s.config.PollInterval <= 0 {
		return nil
	}
	timer := time.NewTimer(s.config.PollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step runs one iteration at time now: service the host, apply the queued
// events, then release an expired hit key. Run calls it in a loop; tests
// call it directly.
func (s *Session) Step(now time.Time) {
	if s.kb.Poll() {
		s.count(func(st *Stats) { st.Commands++ })
	}

	if !s.isPaused.Load() {
		s.drain(now)
	}

	if s.hit.Expired(now) {
		key := s.hit.Key
		s.hit.TransitionToIdle()
		s.release(key)
	}
}

func (s *Session) drain(now time.Time) {
	for {
		select {
		case ev := <-s.events:
			s.apply(ev, now)
		default:
			return
		}
	}
}

func (s *Session) apply(ev Event, now time.Time) {
	ps2kbd.Debugf("polling: %s", ev)

	switch ev.Kind {
	case EventPress:
		if s.hit.Holds(ev.Key) {
			// Already down; the explicit press keeps it down past the deadline.
			s.hit.TransitionToIdle()
			return
		}
		s.press(ev.Key)
	case EventRelease:
		if s.hit.Holds(ev.Key) {
			s.hit.TransitionToIdle()
		}
		s.release(ev.Key)
	case EventHit:
		s.applyHit(ev.Key, now)
	case EventReleaseAll:
		s.releaseAll("requested")
	default:
		ps2kbd.Debugf("polling: ignoring %s", ev)
	}
}

// applyHit holds key until the repeats stop. A hit of a different key lets
// the previous one up first.
func (s *Session) applyHit(key ps2kbd.Keycode, now time.Time) {
	timeout := s.config.ReleaseTimeout
	if s.hit.Holds(key) {
		s.hit.Extend(now, timeout)
		return
	}
	if s.hit.State == StateHeld {
		prev := s.hit.Key
		s.hit.TransitionToIdle()
		s.release(prev)
	}
	if s.press(key) {
		s.hit.TransitionToHeld(key, now, timeout)
	}
}

func (s *Session) press(key ps2kbd.Keycode) bool {
	if s.kb.Press(key) == 0 {
		s.count(func(st *Stats) { st.Dropped++ })
		return false
	}
	s.count(func(st *Stats) { st.Presses++ })
	return true
}

func (s *Session) release(key ps2kbd.Keycode) {
	if s.kb.Release(key) == 0 {
		s.count(func(st *Stats) { st.Dropped++ })
		return
	}
	s.count(func(st *Stats) { st.Releases++ })
}

func (s *Session) releaseAll(reason string) {
	s.hit.TransitionToIdle()
	n := s.kb.ReleaseAll()
	if n > 0 {
		ps2kbd.Debugf("polling: released %d keys (%s)", n, reason)
	}
	s.count(func(st *Stats) { st.Releases += uint64(n) })
}

func (s *Session) count(update func(*Stats)) {
	s.statsMu.Lock()
	update(&s.stats)
	s.statsMu.Unlock()
}
