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

// Package testing provides test utilities, chiefly a simulated PS/2 host.
//
// VirtualHost owns a virtual timeline and both lines of the bus. It hands
// out Line and Timer implementations for the keyboard under test and plays
// the host side of the protocol against them:
//   - frames the keyboard clocks out are sampled on each falling clock edge
//     and decoded into Frames,
//   - SendCommand inhibits the bus, requests to send and then presents the
//     command bits on the keyboard's clock, checking the keyboard's
//     acknowledgment,
//   - parameter bytes of a command are sent once the keyboard answers 0xFA.
//
// Time only moves when the keyboard sleeps or samples a line, so tests are
// deterministic and run much faster than real time.
package testing

import (
	"errors"
	"sort"
	"time"

	"github.com/ZaparooProject/go-ps2kbd"
	"github.com/ZaparooProject/go-ps2kbd/internal/frame"
	"github.com/ZaparooProject/go-ps2kbd/internal/syncutil"
)

// Host-side timing of a request to send. The clock is held low for
// inhibitTime, data goes low shortly before the clock is released.
const (
	inhibitTime     = 100 * time.Microsecond
	requestLead     = 10 * time.Microsecond
	hostPulseDelay  = 100 * time.Microsecond
	hostPulseLength = 30 * time.Microsecond

	// DefaultSampleCost is how far virtual time advances on every line read.
	DefaultSampleCost = time.Microsecond
)

// ErrLineFault is returned by lines after InjectLineFault.
var ErrLineFault = errors.New("virtual line fault")

// Frame is one byte the keyboard sent to the host
type Frame struct {
	Err   error
	At    time.Duration
	Raw   uint16
	Value byte
}

// HostSend is one byte the host clocked into the keyboard
type HostSend struct {
	At    time.Duration
	Value byte
	Acked bool
}

type scheduledEvent struct {
	fn func()
	at time.Duration
}

// hostTx tracks a host-to-device frame in progress.
type hostTx struct {
	edges int
	raw   uint16
	value byte
}

// VirtualHost simulates a PS/2 host and the two wires between it and the
// keyboard.
type VirtualHost struct {
	epoch       time.Time
	lineFault   error
	tx          *hostTx
	clock       *VirtualLine
	data        *VirtualLine
	messages    [][]byte
	events      []scheduledEvent
	frames      []Frame
	sent        []HostSend
	interrupts  map[int][]byte
	now         time.Duration
	sampleCost  time.Duration
	rxRaw       uint16
	rxCount     int
	mu          syncutil.Mutex
	hostClockLo bool
	hostDataLo  bool
	hostPulse   bool
	awaitingAck bool
	requesting  bool
}

// VirtualLine is one wire as seen from the keyboard
type VirtualLine struct {
	host      *VirtualHost
	id        ps2kbd.LineID
	deviceLow bool
}

// NewVirtualHost creates an idle host with both lines released
func NewVirtualHost() *VirtualHost {
	h := &VirtualHost{
		epoch:      time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		sampleCost: DefaultSampleCost,
		interrupts: make(map[int][]byte),
	}
	h.clock = &VirtualLine{host: h, id: ps2kbd.LineClock}
	h.data = &VirtualLine{host: h, id: ps2kbd.LineData}
	return h
}

// Clock returns the clock line for the keyboard
func (h *VirtualHost) Clock() *VirtualLine { return h.clock }

// Data returns the data line for the keyboard
func (h *VirtualHost) Data() *VirtualLine { return h.data }

// Now implements ps2kbd.Timer
func (h *VirtualHost) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epoch.Add(h.now)
}

// Sleep implements ps2kbd.Timer by advancing virtual time
func (h *VirtualHost) Sleep(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advance(d)
}

// Elapsed returns the virtual time since the host was created
func (h *VirtualHost) Elapsed() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// SetHostPulse makes the host pulse the clock after every received frame,
// which the keyboard treats as the end-of-byte handshake.
func (h *VirtualHost) SetHostPulse(enabled bool) {
	h.mu.Lock()
	h.hostPulse = enabled
	h.mu.Unlock()
}

// InjectLineFault makes every Release and DriveLow fail with err.
// Pass nil to clear.
func (h *VirtualHost) InjectLineFault(err error) {
	h.mu.Lock()
	h.lineFault = err
	h.mu.Unlock()
}

// HoldClock keeps the clock low for d starting now
func (h *VirtualHost) HoldClock(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hostClockLo = true
	h.schedule(h.now+d, func() { h.hostClockLo = false })
}

// HoldData keeps the data line low for d starting now
func (h *VirtualHost) HoldData(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hostDataLo = true
	h.schedule(h.now+d, func() { h.hostDataLo = false })
}

// SendCommand queues a command followed by its parameter bytes. The first
// byte goes out as soon as the host is idle; each further byte is sent after
// the keyboard replies 0xFA.
func (h *VirtualHost) SendCommand(msg ...byte) {
	if len(msg) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, append([]byte(nil), msg...))
	if !h.busy() {
		h.startNext()
	}
}

// InterruptAfterFrames sends msg as soon as the keyboard has sent n frames
// in total, cutting into whatever sequence it is sending.
func (h *VirtualHost) InterruptAfterFrames(n int, msg ...byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interrupts[n] = append([]byte(nil), msg...)
}

// Frames returns every frame received from the keyboard
func (h *VirtualHost) Frames() []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Frame, len(h.frames))
	copy(out, h.frames)
	return out
}

// Received returns the byte values of all received frames
func (h *VirtualHost) Received() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]byte, len(h.frames))
	for i, f := range h.frames {
		out[i] = f.Value
	}
	return out
}

// Sent returns the bytes the host clocked into the keyboard
func (h *VirtualHost) Sent() []HostSend {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HostSend, len(h.sent))
	copy(out, h.sent)
	return out
}

// Idle reports whether the host has nothing left to send
func (h *VirtualHost) Idle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.busy() && len(h.messages) == 0
}

// Reset forgets received frames and sent bytes
func (h *VirtualHost) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = nil
	h.sent = nil
}

// Release implements ps2kbd.Line
func (l *VirtualLine) Release() error {
	return l.host.drive(l, false)
}

// DriveLow implements ps2kbd.Line
func (l *VirtualLine) DriveLow() error {
	return l.host.drive(l, true)
}

// Read implements ps2kbd.Line. Every read costs sampleCost of virtual time.
func (l *VirtualLine) Read() ps2kbd.Level {
	h := l.host
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advance(h.sampleCost)
	return h.level(l)
}

// busy reports whether a message is in flight. Caller holds mu.
func (h *VirtualHost) busy() bool {
	return h.requesting || h.tx != nil || h.awaitingAck
}

// level is the wired-AND of both drivers. Caller holds mu.
func (h *VirtualHost) level(l *VirtualLine) ps2kbd.Level {
	hostLow := h.hostClockLo
	if l.id == ps2kbd.LineData {
		hostLow = h.hostDataLo
	}
	return ps2kbd.Level(!(l.deviceLow || hostLow))
}

func (h *VirtualHost) drive(l *VirtualLine, low bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lineFault != nil {
		return h.lineFault
	}
	before := h.level(l)
	l.deviceLow = low
	if l.id == ps2kbd.LineClock && before == ps2kbd.High && h.level(l) == ps2kbd.Low {
		h.clockFell()
	}
	return nil
}

// schedule runs fn when virtual time reaches at. Caller holds mu.
func (h *VirtualHost) schedule(at time.Duration, fn func()) {
	h.events = append(h.events, scheduledEvent{at: at, fn: fn})
	sort.SliceStable(h.events, func(i, j int) bool { return h.events[i].at < h.events[j].at })
}

// advance moves time forward by d, firing due events in order. Caller holds mu.
func (h *VirtualHost) advance(d time.Duration) {
	target := h.now + d
	for len(h.events) > 0 && h.events[0].at <= target {
		ev := h.events[0]
		h.events = h.events[1:]
		if ev.at > h.now {
			h.now = ev.at
		}
		ev.fn()
	}
	h.now = target
}

// clockFell handles a falling clock edge caused by the keyboard. Caller holds mu.
func (h *VirtualHost) clockFell() {
	if h.tx != nil {
		h.txEdge()
		return
	}

	bit := uint16(0)
	if h.level(h.data) == ps2kbd.High {
		bit = 1
	}
	h.rxRaw |= bit << h.rxCount
	h.rxCount++
	if h.rxCount < frame.Bits {
		return
	}

	value, err := frame.Decode(h.rxRaw)
	h.frames = append(h.frames, Frame{Value: value, Raw: h.rxRaw, Err: err, At: h.now})
	h.rxRaw, h.rxCount = 0, 0
	h.frameReceived(value)
}

// frameReceived reacts to a complete frame from the keyboard. Caller holds mu.
func (h *VirtualHost) frameReceived(value byte) {
	if msg, ok := h.interrupts[len(h.frames)]; ok {
		delete(h.interrupts, len(h.frames))
		h.messages = append([][]byte{msg}, h.messages...)
	}
	if h.awaitingAck && value == ps2kbd.ReplyAck {
		h.awaitingAck = false
	}

	if !h.busy() && len(h.messages) > 0 {
		h.startNext()
		return
	}

	if h.hostPulse {
		start := h.now + hostPulseDelay
		h.schedule(start, func() { h.hostClockLo = true })
		h.schedule(start+hostPulseLength, func() { h.hostClockLo = false })
	}
}

// startNext begins a request to send for the next pending byte. Caller holds mu.
func (h *VirtualHost) startNext() {
	for len(h.messages) > 0 && len(h.messages[0]) == 0 {
		h.messages = h.messages[1:]
	}
	if len(h.messages) == 0 {
		return
	}
	value := h.messages[0][0]
	h.messages[0] = h.messages[0][1:]

	h.requesting = true
	start := h.now
	h.hostClockLo = true
	h.schedule(start+inhibitTime-requestLead, func() { h.hostDataLo = true })
	h.schedule(start+inhibitTime, func() {
		h.hostClockLo = false
		h.requesting = false
		h.tx = &hostTx{value: value, raw: frame.Encode(value)}
	})
}

// txEdge presents the next bit of a host-to-device frame on a falling
// clock edge. Caller holds mu.
func (h *VirtualHost) txEdge() {
	tx := h.tx
	tx.edges++
	switch {
	case tx.edges <= frame.StopPos:
		// edges 1-8 carry data bits, 9 the parity bit, 10 the stop bit
		h.hostDataLo = frame.Bit(tx.raw, tx.edges) == 0
	default:
		// edge 11: the keyboard holds data low to acknowledge
		acked := h.data.deviceLow
		h.hostDataLo = false
		h.sent = append(h.sent, HostSend{Value: tx.value, Acked: acked, At: h.now})
		h.tx = nil
		if len(h.messages) > 0 && len(h.messages[0]) > 0 {
			h.awaitingAck = true
		} else if len(h.messages) > 0 {
			h.messages = h.messages[1:]
		}
	}
}
