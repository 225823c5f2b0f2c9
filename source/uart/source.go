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

// Package uart reads key events from a serial port, one event per line:
//
//	+NAME    press NAME and hold it
//	-NAME    release NAME
//	NAME     hit NAME: hold it until its repeats stop
//	!        release every key
//	# ...    comment
//
// NAME is a key name such as KEY_A or a remote code from the key map.
package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"github.com/ZaparooProject/go-ps2kbd/internal/syncutil"
	"github.com/ZaparooProject/go-ps2kbd/keymap"
	"github.com/ZaparooProject/go-ps2kbd/polling"
	"go.bug.st/serial"
)

// ErrLineTooLong is reported for lines longer than Config.MaxLine
var ErrLineTooLong = errors.New("event line too long")

// Config configures a serial event source
type Config struct {
	Keymap      *keymap.Map
	PortName    string
	BaudRate    int
	ReadTimeout time.Duration
	MaxLine     int
}

// DefaultConfig returns the settings used by the bundled remote receivers
func DefaultConfig() *Config {
	return &Config{
		BaudRate:    115200,
		ReadTimeout: 50 * time.Millisecond,
		MaxLine:     256,
	}
}

// Source turns serial lines into polling events
type Source struct {
	port    io.ReadCloser
	keymap  *keymap.Map
	name    string
	pending []byte
	maxLine int
	mu      syncutil.Mutex
	closed  bool
	// skipping drops input up to the next newline after an overlong line
	skipping bool
}

// Open opens the serial port named in config
func Open(config *Config) (*Source, error) {
	if config == nil || config.PortName == "" {
		return nil, errors.New("serial port name is required")
	}
	defaults := DefaultConfig()
	baud := config.BaudRate
	if baud <= 0 {
		baud = defaults.BaudRate
	}
	timeout := config.ReadTimeout
	if timeout <= 0 {
		timeout = defaults.ReadTimeout
	}

	port, err := serial.Open(config.PortName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, openError(config.PortName, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set serial read timeout: %w", err)
	}
	_ = port.ResetInputBuffer()

	return NewSource(port, config.PortName, config.Keymap, config.MaxLine), nil
}

// openError classifies serial open failures. A missing or busy port may come
// back, a port that cannot be configured will not.
func openError(name string, err error) error {
	errType := ps2kbd.ErrorTypeTransient
	var pe *serial.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case serial.InvalidSerialPort, serial.PermissionDenied, serial.InvalidSpeed:
			errType = ps2kbd.ErrorTypePermanent
		default:
		}
	}
	return ps2kbd.NewTransportError("open", name, err, errType)
}

// NewSource reads events from an already open port. maxLine of 0 uses the
// default.
func NewSource(port io.ReadCloser, name string, km *keymap.Map, maxLine int) *Source {
	if maxLine <= 0 {
		maxLine = DefaultConfig().MaxLine
	}
	return &Source{
		port:    port,
		name:    name,
		keymap:  km,
		maxLine: maxLine,
	}
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Name returns the port name
func (s *Source) Name() string {
	return s.name
}

// Close closes the port. A blocked Run returns.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("serial close failed: %w", err)
	}
	return nil
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Run reads lines and sends their events to out until ctx ends or the port
// fails. Bad lines are logged and skipped. A read failure is returned as a
// transient *ps2kbd.TransportError so the caller may reopen the port.
func (s *Source) Run(ctx context.Context, out chan<- polling.Event) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			if sendErr := s.consume(ctx, buf[:n], out); sendErr != nil {
				return sendErr
			}
		}
		if err != nil {
			if s.isClosed() {
				return ps2kbd.NewTransportError("read", s.name, err, ps2kbd.ErrorTypePermanent)
			}
			return ps2kbd.NewTransportError("read", s.name, err, ps2kbd.ErrorTypeTransient)
		}
	}
}

// consume splits data into lines and emits their events.
func (s *Source) consume(ctx context.Context, data []byte, out chan<- polling.Event) error {
	s.pending = append(s.pending, data...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := string(s.pending[:i])
		s.pending = s.pending[i+1:]

		if s.skipping {
			s.skipping = false
			continue
		}
		if len(line) > s.maxLine {
			ps2kbd.Debugf("%s: %v (%d bytes)", s.name, ErrLineTooLong, len(line))
			continue
		}
		if err := s.emit(ctx, line, out); err != nil {
			return err
		}
	}

	// Drop an unterminated line once it cannot fit any more
	if len(s.pending) > s.maxLine {
		if !s.skipping {
			ps2kbd.Debugf("%s: %v, skipping to the next line", s.name, ErrLineTooLong)
		}
		s.pending = s.pending[:0]
		s.skipping = true
	}
	return nil
}

func (s *Source) emit(ctx context.Context, line string, out chan<- polling.Event) error {
	ev, ok, err := ParseEvent(line, s.keymap)
	if err != nil {
		ps2kbd.Debugf("%s: %v", s.name, err)
		return nil
	}
	if !ok {
		return nil
	}
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseEvent parses one line. ok is false for blank lines and comments.
func ParseEvent(line string, km *keymap.Map) (ev polling.Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return polling.Event{}, false, nil
	}
	if line == "!" {
		return polling.Event{Kind: polling.EventReleaseAll}, true, nil
	}

	kind := polling.EventHit
	name := line
	switch line[0] {
	case '+':
		kind, name = polling.EventPress, line[1:]
	case '-':
		kind, name = polling.EventRelease, line[1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return polling.Event{}, false, fmt.Errorf("event %q: missing key", line)
	}

	key, found := km.Lookup(name)
	if !found {
		return polling.Event{}, false, fmt.Errorf("event %q: %w", line, ps2kbd.ErrUnknownKey)
	}
	return polling.Event{Kind: kind, Key: key}, true, nil
}
