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

package ps2kbd

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ps2kbd/internal/frame"
	"periph.io/x/conn/v3/physic"
)

// Timings holds the fixed bus timing constants.
type Timings struct {
	// HalfPeriod is the data setup time before each clock pulse and the
	// released time after it. The clock is held low for two half periods.
	HalfPeriod time.Duration

	// ByteSpacing bounds the wait for the host's clock pulse after a
	// transmitted frame. Measured from a stock keyboard.
	ByteSpacing time.Duration

	// ReceiveTimeout bounds the wait for the host's start bit.
	ReceiveTimeout time.Duration
}

// DefaultTimings returns the timing used by real PS/2 keyboards
func DefaultTimings() Timings {
	return Timings{
		HalfPeriod:     20 * time.Microsecond,
		ByteSpacing:    2 * time.Millisecond,
		ReceiveTimeout: 500 * time.Millisecond,
	}
}

// FullPeriod is how long the clock is held low during each pulse.
func (t Timings) FullPeriod() time.Duration {
	return 2 * t.HalfPeriod
}

// ClockFrequency returns the resulting bit rate. One bit takes a setup half
// period, a full period low and a half period released.
func (t Timings) ClockFrequency() physic.Frequency {
	bit := 2 * t.FullPeriod()
	if bit <= 0 {
		return 0
	}
	return physic.PeriodToFrequency(bit)
}

// Validate reports whether the timings can drive a bus
func (t Timings) Validate() error {
	switch {
	case t.HalfPeriod <= 0:
		return fmt.Errorf("half period must be positive, got %v", t.HalfPeriod)
	case t.ByteSpacing < 0:
		return fmt.Errorf("byte spacing must not be negative, got %v", t.ByteSpacing)
	case t.ReceiveTimeout <= 0:
		return fmt.Errorf("receive timeout must be positive, got %v", t.ReceiveTimeout)
	}
	return nil
}

// Bus implements PS/2 byte framing on top of two open-drain lines.
//
// Thread Safety: Bus is NOT thread-safe. The Keyboard that owns it
// serializes all access.
type Bus struct {
	clock   Line
	data    Line
	timer   Timer
	trace   *TraceBuffer
	timings Timings
}

// NewBus creates a bus on the given lines and releases both of them.
func NewBus(clock, data Line, timer Timer, timings Timings, traceSize int) (*Bus, error) {
	if clock == nil || data == nil {
		return nil, errors.New("clock and data lines are required")
	}
	if err := timings.Validate(); err != nil {
		return nil, err
	}
	if timer == nil {
		timer = SystemTimer{}
	}
	b := &Bus{
		clock:   clock,
		data:    data,
		timer:   timer,
		timings: timings,
		trace:   NewTraceBuffer("ps2", traceSize),
	}
	if err := b.release(LineClock); err != nil {
		return nil, err
	}
	if err := b.release(LineData); err != nil {
		return nil, err
	}
	return b, nil
}

// Timings returns the bus timing constants
func (b *Bus) Timings() Timings {
	return b.timings
}

// Trace returns the recent frames seen on the bus, oldest first
func (b *Bus) Trace() []TraceEntry {
	return b.trace.Entries()
}

func (b *Bus) line(id LineID) Line {
	if id == LineClock {
		return b.clock
	}
	return b.data
}

// release lets the pull-up bring the line high.
func (b *Bus) release(id LineID) error {
	if err := b.line(id).Release(); err != nil {
		return NewLineFaultError("release", id.String(), err)
	}
	return nil
}

// assertLow actively drives the line low.
func (b *Bus) assertLow(id LineID) error {
	if err := b.line(id).DriveLow(); err != nil {
		return NewLineFaultError("drive low", id.String(), err)
	}
	return nil
}

// setData presents one bit on the data line.
func (b *Bus) setData(bit byte) error {
	if bit != 0 {
		return b.release(LineData)
	}
	return b.assertLow(LineData)
}

// clockPulse holds the clock low for a full period and then releases it for
// half a period.
func (b *Bus) clockPulse() error {
	if err := b.assertLow(LineClock); err != nil {
		return err
	}
	b.timer.Sleep(b.timings.FullPeriod())
	if err := b.release(LineClock); err != nil {
		return err
	}
	b.timer.Sleep(b.timings.HalfPeriod)
	return nil
}

// waitFor spins until the line reads want. A zero limit waits forever.
// Returns false if the limit expired first.
func (b *Bus) waitFor(id LineID, want Level, limit time.Duration) bool {
	line := b.line(id)
	start := b.timer.Now()
	for line.Read() != want {
		if limit > 0 && b.timer.Now().Sub(start) >= limit {
			return false
		}
	}
	return true
}

// Transmit sends one byte to the host. The device drives the clock.
//
// A *CollisionError is returned when the host holds either line low at the
// start. A missing host acknowledgment after the frame is not an error.
func (b *Bus) Transmit(value byte) error {
	if b.clock.Read() == Low {
		return b.fail(TraceTX, &CollisionError{Line: LineClock}, value)
	}
	if b.data.Read() == Low {
		return b.fail(TraceTX, &CollisionError{Line: LineData}, value)
	}

	f := frame.Encode(value)
	for pos := range frame.Bits {
		if err := b.setData(frame.Bit(f, pos)); err != nil {
			return b.fail(TraceTX, err, value)
		}
		b.timer.Sleep(b.timings.HalfPeriod)
		if err := b.clockPulse(); err != nil {
			return b.fail(TraceTX, err, value)
		}
	}

	// The lines are ours no more. Give the host ByteSpacing to pulse the
	// clock before the next frame.
	note := ""
	if !b.waitHostPulse() {
		note = "no host pulse"
	}
	b.trace.RecordTX(b.timer.Now(), value, note)
	return nil
}

// waitHostPulse waits for the host to take the clock low and release it
// again, bounded by ByteSpacing in total.
func (b *Bus) waitHostPulse() bool {
	start := b.timer.Now()
	remaining := func() time.Duration {
		left := b.timings.ByteSpacing - b.timer.Now().Sub(start)
		if left <= 0 {
			return -1
		}
		return left
	}
	left := remaining()
	if left < 0 || !b.waitFor(LineClock, Low, left) {
		return false
	}
	left = remaining()
	return left > 0 && b.waitFor(LineClock, High, left)
}

// Receive reads one byte sent by the host. The host must already have
// requested to send by pulling data low, or do so within ReceiveTimeout.
//
// The received parity bit is sampled but not used to reject the frame.
func (b *Bus) Receive() (byte, error) {
	if !b.waitFor(LineData, Low, b.timings.ReceiveTimeout) {
		return 0, b.fail(TraceRX, NewTimeoutError("receive", LineData.String()), 0)
	}
	// The host releases the clock once the start bit is on the data line.
	b.waitFor(LineClock, High, 0)

	b.timer.Sleep(b.timings.HalfPeriod)
	if err := b.clockPulse(); err != nil {
		return 0, b.fail(TraceRX, err, 0)
	}

	var value byte
	parity := byte(1)
	for i := range frame.DataBits {
		if b.data.Read() == High {
			value |= 1 << i
			parity ^= 1
		}
		b.timer.Sleep(b.timings.HalfPeriod)
		if err := b.clockPulse(); err != nil {
			return 0, b.fail(TraceRX, err, value)
		}
	}
	// The last pulse above clocked in the parity bit.
	note := ""
	if hostParity := b.data.Read(); (hostParity == High) != (parity == 1) {
		note = "parity mismatch ignored"
		Debugf("ps2: parity mismatch on received byte 0x%02X", value)
	}

	// stop bit
	b.timer.Sleep(b.timings.HalfPeriod)
	if err := b.clockPulse(); err != nil {
		return 0, b.fail(TraceRX, err, value)
	}

	// acknowledge
	b.timer.Sleep(b.timings.HalfPeriod)
	if err := b.assertLow(LineData); err != nil {
		return 0, b.fail(TraceRX, err, value)
	}
	if err := b.clockPulse(); err != nil {
		return 0, b.fail(TraceRX, err, value)
	}
	if err := b.release(LineData); err != nil {
		return 0, b.fail(TraceRX, err, value)
	}

	b.trace.RecordRX(b.timer.Now(), value, note)
	return value, nil
}

// fail records the failed frame and attaches the trace to err.
func (b *Bus) fail(dir TraceDirection, err error, value byte) error {
	note := fmt.Sprintf("0x%02X: %v", value, err)
	b.trace.RecordEvent(b.timer.Now(), dir, note)
	return b.trace.WrapError(err)
}
