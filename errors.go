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
	"strings"
	"time"
)

// Error categories for retry decisions
var (
	// Bus errors - retried by the caller
	ErrCollision = errors.New("bus not idle")
	ErrTimeout   = errors.New("timeout waiting for host")

	// Line errors - the GPIO backend failed, never retried
	ErrLineFault = errors.New("line fault")

	// Protocol errors - logged, never fatal
	ErrUnknownCommand = errors.New("unknown host command")

	// Key table preconditions - reported as a 0 result, never returned
	ErrTableFull      = errors.New("pressed-key table full")
	ErrAlreadyPressed = errors.New("key already pressed")
	ErrNotPressed     = errors.New("key not pressed")
	ErrUnknownKey     = errors.New("unknown keycode")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout
)

// CollisionError reports that the device wanted to start a frame while the
// named line was held low by the host.
type CollisionError struct {
	Line LineID
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("collision on %s line", e.Line)
}

func (*CollisionError) Unwrap() error {
	return ErrCollision
}

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Line name or serial port path
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrCollision),
		errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error means the lines themselves are unusable
// and the current operation should be abandoned instead of retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	return errors.Is(err, ErrLineFault)
}

// Error constructors for consistent error creation

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for a bus operation
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTimeout, ErrorTypeTimeout)
}

// NewLineFaultError wraps a GPIO failure. Line faults are permanent.
func NewLineFaultError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrLineFault, err), ErrorTypePermanent)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds the last bytes seen on the bus in errors, so a failed
// key transmission can be inspected after the fact.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates a frame sent from the keyboard to the host
	TraceTX TraceDirection = "TX"
	// TraceRX indicates a frame received from the host
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single frame on the bus
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
//
//	var te *ps2kbd.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Bus   string
	Trace []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Bus)
	}

	var sb strings.Builder
	_, _ = sb.WriteString(fmt.Sprintf("[%s] Wire trace (%d entries):\n", e.Bus, len(e.Trace)))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		hexData := formatHexBytes(entry.Data)
		if entry.Note != "" {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", direction, hexData, entry.Note))
		} else {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s\n", direction, hexData))
		}
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer keeps the most recent bus frames in a fixed-size ring.
type TraceBuffer struct {
	bus     string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(bus string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		bus:     bus,
	}
}

// RecordTX records a frame sent to the host
func (tb *TraceBuffer) RecordTX(at time.Time, data byte, note string) {
	tb.record(at, TraceTX, []byte{data}, note)
}

// RecordRX records a frame received from the host
func (tb *TraceBuffer) RecordRX(at time.Time, data byte, note string) {
	tb.record(at, TraceRX, []byte{data}, note)
}

// RecordEvent records a bus condition that carried no data, such as a collision
func (tb *TraceBuffer) RecordEvent(at time.Time, dir TraceDirection, note string) {
	tb.record(at, dir, nil, note)
}

// record adds an entry to the buffer, evicting oldest if full
func (tb *TraceBuffer) record(at time.Time, dir TraceDirection, data []byte, note string) {
	entry := TraceEntry{
		Direction: dir,
		Data:      data,
		Timestamp: at,
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	out := make([]TraceEntry, len(tb.entries))
	copy(out, tb.entries)
	return out
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	return &TraceableError{
		Err:   err,
		Trace: tb.Entries(),
		Bus:   tb.bus,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
