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

// Package gpio drives the PS/2 clock and data lines from two GPIO pins
// through periph.io.
//
// Each line is open-drain emulated: released means input with pull-up,
// driven means output low. The pins must be wired to the PS/2 port through
// suitable level shifting; the host side supplies its own pull-ups.
package gpio

import (
	"errors"
	"fmt"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Line is one PS/2 signal on a GPIO pin. It implements ps2kbd.Line.
type Line struct {
	pin  gpio.PinIO
	pull gpio.Pull
}

// NewLine wraps an already opened pin. pull is applied whenever the line is
// released; use gpio.Float when the board has external pull-ups.
func NewLine(pin gpio.PinIO, pull gpio.Pull) *Line {
	return &Line{pin: pin, pull: pull}
}

// Release switches the pin to input so the line floats high
func (l *Line) Release() error {
	if err := l.pin.In(l.pull, gpio.NoEdge); err != nil {
		return fmt.Errorf("%s: release: %w", l.pin.Name(), err)
	}
	return nil
}

// DriveLow outputs a low level
func (l *Line) DriveLow() error {
	if err := l.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("%s: drive low: %w", l.pin.Name(), err)
	}
	return nil
}

// Read samples the pin
func (l *Line) Read() ps2kbd.Level {
	return ps2kbd.Level(l.pin.Read() == gpio.High)
}

// Name returns the pin name
func (l *Line) Name() string {
	return l.pin.Name()
}

// Transport holds the two lines of a PS/2 port
type Transport struct {
	clock *Line
	data  *Line
}

// Config selects the pins of a port
type Config struct {
	// ClockPin and DataPin are periph pin names such as "GPIO17"
	ClockPin string
	DataPin  string
	// Float disables the internal pull-ups on released lines, for boards
	// with external resistors
	Float bool
}

// Open initializes the periph host drivers and opens the configured pins.
// Both lines are left released.
func Open(config Config) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	return open(config, gpioreg.ByName)
}

func open(config Config, byName func(string) gpio.PinIO) (*Transport, error) {
	if config.ClockPin == "" || config.DataPin == "" {
		return nil, errors.New("clock and data pins are required")
	}
	if config.ClockPin == config.DataPin {
		return nil, fmt.Errorf("clock and data cannot share pin %s", config.ClockPin)
	}
	pull := gpio.PullUp
	if config.Float {
		pull = gpio.Float
	}

	clock := byName(config.ClockPin)
	if clock == nil {
		return nil, fmt.Errorf("clock pin %s not found", config.ClockPin)
	}
	data := byName(config.DataPin)
	if data == nil {
		return nil, fmt.Errorf("data pin %s not found", config.DataPin)
	}

	t := New(clock, data, pull)
	if err := t.releaseAll(); err != nil {
		return nil, err
	}
	return t, nil
}

// New creates a transport on two opened pins
func New(clock, data gpio.PinIO, pull gpio.Pull) *Transport {
	return &Transport{
		clock: NewLine(clock, pull),
		data:  NewLine(data, pull),
	}
}

// Clock returns the clock line
func (t *Transport) Clock() *Line {
	return t.clock
}

// Data returns the data line
func (t *Transport) Data() *Line {
	return t.data
}

// String describes the pins in use
func (t *Transport) String() string {
	return fmt.Sprintf("gpio clock=%s data=%s", t.clock.Name(), t.data.Name())
}

func (t *Transport) releaseAll() error {
	if err := t.clock.Release(); err != nil {
		return err
	}
	return t.data.Release()
}

// Close releases both lines and halts the pins
func (t *Transport) Close() error {
	err := t.releaseAll()
	if haltErr := t.clock.pin.Halt(); haltErr != nil && err == nil {
		err = haltErr
	}
	if haltErr := t.data.pin.Halt(); haltErr != nil && err == nil {
		err = haltErr
	}
	return err
}
