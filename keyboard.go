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

// Package ps2kbd implements the keyboard side of the PS/2 protocol on two
// bit-banged open-drain lines.
//
// A Keyboard owns the lines. The embedding loop calls Poll on every
// iteration so host commands are answered, and calls Press and Release as
// key transitions arrive. Both block until the full scan code sequence has
// gone out; a host command arriving in the middle of a sequence is serviced
// first and the sequence is then sent again from its first byte.
package ps2kbd

import (
	"github.com/ZaparooProject/go-ps2kbd/internal/syncutil"
)

// Config contains configuration options for the Keyboard
type Config struct {
	// Timer supplies time and delays. Defaults to SystemTimer.
	Timer Timer
	// RetryConfig controls how command replies are retried
	RetryConfig *RetryConfig
	// Timings are the bus timing constants
	Timings Timings
	// TraceSize is the number of recent frames kept for error reports
	TraceSize int
}

// DefaultConfig returns default keyboard configuration
func DefaultConfig() *Config {
	return &Config{
		Timer:       SystemTimer{},
		RetryConfig: DefaultRetryConfig(),
		Timings:     DefaultTimings(),
		TraceSize:   16,
	}
}

// Option configures a Keyboard
type Option func(*Config) error

// WithTimer sets the time source used for bit timing
func WithTimer(timer Timer) Option {
	return func(c *Config) error {
		c.Timer = timer
		return nil
	}
}

// WithTimings overrides the bus timing constants
func WithTimings(timings Timings) Option {
	return func(c *Config) error {
		if err := timings.Validate(); err != nil {
			return err
		}
		c.Timings = timings
		return nil
	}
}

// WithRetryConfig sets how command replies are retried
func WithRetryConfig(config *RetryConfig) Option {
	return func(c *Config) error {
		c.RetryConfig = config
		return nil
	}
}

// WithTraceSize sets how many recent frames are attached to bus errors
func WithTraceSize(n int) Option {
	return func(c *Config) error {
		c.TraceSize = n
		return nil
	}
}

// Keyboard is a PS/2 keyboard device.
//
// Thread Safety: all methods lock the keyboard, so they may be called from
// several goroutines, but every bus-touching call blocks the others for the
// duration of its frames. Run the bus from one goroutine (see the polling
// package) and use PressedKeys and Enabled for status reporting.
type Keyboard struct {
	bus     *Bus
	config  *Config
	keys    registry
	mu      syncutil.Mutex
	enabled bool
}

// New creates a keyboard on the given clock and data lines. Both lines are
// released. Call Begin once the host may be listening.
func New(clock, data Line, opts ...Option) (*Keyboard, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig()
	}

	bus, err := NewBus(clock, data, config.Timer, config.Timings, config.TraceSize)
	if err != nil {
		return nil, err
	}

	return &Keyboard{
		bus:    bus,
		config: config,
	}, nil
}

// Bus returns the underlying line transport
func (k *Keyboard) Bus() *Bus {
	return k.bus
}

// Begin announces a passed self test to the host and enables reporting.
func (k *Keyboard) Begin() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.sendUntilAccepted(ReplySelfTestPassed); err != nil {
		return err
	}
	k.enabled = true
	return nil
}

// Enabled reports the host's last enable/disable reporting choice. It does
// not gate transmission.
func (k *Keyboard) Enabled() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.enabled
}

// PressedKeys returns the keys currently held, in slot order
func (k *Keyboard) PressedKeys() []Keycode {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keys.keys()
}

// Poll services a pending host-to-device transfer. It returns true if a
// command was received and answered.
func (k *Keyboard) Poll() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.poll()
}

func (k *Keyboard) poll() bool {
	// The host pulls the clock low to inhibit us before it starts talking.
	if k.bus.clock.Read() == Low {
		k.bus.waitFor(LineClock, High, 0)
	}

	if k.bus.data.Read() == High {
		return false
	}

	cmd, err := k.bus.Receive()
	if err != nil {
		Debugf("poll: %v", err)
		return false
	}
	if err := k.handleCommand(cmd); err != nil {
		Debugf("poll: command 0x%02X: %v", cmd, err)
	}
	return true
}

// Press sends the make sequence for key and records it as held. It returns 1
// when the key went down and 0 when nothing was sent: the key is KeyNone or
// unknown, it is already held, or MaxKeys keys are already held.
func (k *Keyboard) Press(key Keycode) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	sc, ok := key.Scancode()
	if !ok {
		Debugf("press %v: %v", key, ErrUnknownKey)
		return 0
	}
	if k.keys.indexOf(key) >= 0 {
		Debugf("press %v: %v", key, ErrAlreadyPressed)
		return 0
	}
	slot := k.keys.free()
	if slot < 0 {
		Debugf("press %v: %v", key, ErrTableFull)
		return 0
	}

	if err := k.sendSequence(sc.Make()); err != nil {
		Debugf("press %v: %v", key, err)
		return 0
	}
	k.keys.set(slot, key)
	return 1
}

// Release sends the break sequence for key and frees its slot. It returns 1
// when the key went up and 0 when key was not held.
func (k *Keyboard) Release(key Keycode) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.release(key)
}

func (k *Keyboard) release(key Keycode) int {
	if key == KeyNone {
		return 0
	}
	slot := k.keys.indexOf(key)
	if slot < 0 {
		Debugf("release %v: %v", key, ErrNotPressed)
		return 0
	}
	sc, ok := key.Scancode()
	if !ok {
		// Only known keys get into the table.
		k.keys.clear(slot)
		return 0
	}

	if err := k.sendSequence(sc.Break()); err != nil {
		Debugf("release %v: %v", key, err)
		return 0
	}
	k.keys.clear(slot)
	return 1
}

// ReleaseAll releases every held key, highest slot first, and returns the
// number of keys released.
func (k *Keyboard) ReleaseAll() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	released := 0
	for i := MaxKeys - 1; i >= 0; i-- {
		released += k.release(k.keys.slots[i])
	}
	return released
}

// sendSequence transmits seq in order. Whenever the host talks to us first,
// or a byte cannot be sent, the sequence starts over from its first byte.
// Only fatal line errors end the loop early.
func (k *Keyboard) sendSequence(seq []byte) error {
	for attempt := 1; ; attempt++ {
		if k.poll() {
			continue
		}
		err := k.transmitAll(seq)
		if err == nil {
			if attempt > 1 {
				Debugf("sequence % X sent after %d attempts", seq, attempt)
			}
			return nil
		}
		if IsFatal(err) {
			return err
		}
	}
}

func (k *Keyboard) transmitAll(seq []byte) error {
	for _, b := range seq {
		if err := k.bus.Transmit(b); err != nil {
			return err
		}
	}
	return nil
}
