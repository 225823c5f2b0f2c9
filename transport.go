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
	"time"
)

// Level is the electrical level read back from a line.
type Level bool

const (
	// Low means some party is driving the line.
	Low Level = false
	// High means the line is released and pulled up.
	High Level = true
)

// String returns "high" or "low"
func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// LineID names one of the two PS/2 lines
type LineID int

const (
	// LineClock is the clock line
	LineClock LineID = iota
	// LineData is the data line
	LineData
)

// String returns the line name
func (id LineID) String() string {
	switch id {
	case LineClock:
		return "clock"
	case LineData:
		return "data"
	default:
		return "unknown"
	}
}

// Line is one open-drain PS/2 signal as provided by the GPIO layer.
// Implementations exist for periph.io pins (transport/gpio) and for the
// simulated host used in tests.
type Line interface {
	// Release configures the pin as an input with pull-up so the line
	// floats high unless the host drives it.
	Release() error

	// DriveLow writes a low level and then switches the pin to output.
	DriveLow() error

	// Read samples the current line level.
	Read() Level
}

// Timer supplies the monotonic time and the short blocking delays used for
// bit timing.
type Timer interface {
	// Now returns the current monotonic time
	Now() time.Time

	// Sleep blocks for d. Sub-millisecond accuracy is required.
	Sleep(d time.Duration)
}

// SystemTimer is the default Timer. Delays below spinThreshold busy-wait on
// the monotonic clock since the scheduler cannot wake up in time for a
// 20 µs half period.
type SystemTimer struct{}

const spinThreshold = time.Millisecond

// Now implements Timer
func (SystemTimer) Now() time.Time {
	return time.Now()
}

// Sleep implements Timer
func (SystemTimer) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= spinThreshold {
		time.Sleep(d)
		return
	}
	start := time.Now()
	for time.Since(start) < d { //nolint:revive // busy wait
	}
}
