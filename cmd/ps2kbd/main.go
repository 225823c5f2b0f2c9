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

// Command ps2kbd turns a GPIO-equipped board into a PS/2 keyboard driven by
// key events from a serial port (or stdin).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"github.com/ZaparooProject/go-ps2kbd/keymap"
	"github.com/ZaparooProject/go-ps2kbd/polling"
	"github.com/ZaparooProject/go-ps2kbd/source/uart"
	"github.com/ZaparooProject/go-ps2kbd/transport/gpio"
	"golang.org/x/sync/errgroup"
)

// stdinSource selects stdin as the event source
const stdinSource = "-"

// errSourceEnded stops the session once stdin reaches EOF.
var errSourceEnded = errors.New("event source ended")

type config struct {
	stdin        io.Reader
	clockPin     string
	dataPin      string
	source       string
	keymapPath   string
	logDir       string
	baud         int
	pollInterval time.Duration
	debug        bool
	sessionLog   bool
	floatPins    bool
	listPorts    bool
}

// Package-level flag variables
var (
	flagClock        string
	flagData         string
	flagSource       string
	flagKeymap       string
	flagLogDir       string
	flagBaud         int
	flagPollInterval time.Duration
	flagDebug        bool
	flagSessionLog   bool
	flagFloat        bool
	flagList         bool
)

func init() {
	flag.StringVar(&flagClock, "clock", "GPIO17", "GPIO pin wired to the PS/2 clock line")
	flag.StringVar(&flagData, "data", "GPIO27", "GPIO pin wired to the PS/2 data line")
	flag.StringVar(&flagSource, "source", stdinSource, "Serial port to read key events from, - for stdin")
	flag.IntVar(&flagBaud, "baud", uart.DefaultConfig().BaudRate, "Serial baud rate")
	flag.StringVar(&flagKeymap, "keymap", "", "YAML file mapping remote codes to keys")
	flag.DurationVar(&flagPollInterval, "poll", 0, "Pause between bus polls (0 spins)")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagSessionLog, "log", false, "Write a session log file")
	flag.StringVar(&flagLogDir, "log-dir", "", "Directory for the session log (default: current)")
	flag.BoolVar(&flagFloat, "float", false, "Disable internal pull-ups (board has external resistors)")
	flag.BoolVar(&flagList, "list", false, "List serial ports and exit")
}

func parseConfig() *config {
	cfg := &config{
		stdin:        os.Stdin,
		clockPin:     flagClock,
		dataPin:      flagData,
		source:       flagSource,
		keymapPath:   flagKeymap,
		logDir:       flagLogDir,
		baud:         flagBaud,
		pollInterval: flagPollInterval,
		debug:        flagDebug,
		sessionLog:   flagSessionLog,
		floatPins:    flagFloat,
		listPorts:    flagList,
	}

	if cfg.debug {
		ps2kbd.SetDebugEnabled(true)
	}

	return cfg
}

func (cfg *config) validate() error {
	if cfg.listPorts {
		return nil
	}
	switch {
	case cfg.clockPin == "" || cfg.dataPin == "":
		return errors.New("-clock and -data are required")
	case cfg.clockPin == cfg.dataPin:
		return errors.New("-clock and -data must be different pins")
	case cfg.source == "":
		return errors.New("-source is required")
	case cfg.baud <= 0:
		return fmt.Errorf("invalid baud rate %d", cfg.baud)
	case cfg.pollInterval < 0:
		return fmt.Errorf("invalid poll interval %v", cfg.pollInterval)
	}
	return nil
}

// sessionConfig builds the polling configuration, letting the key map
// override the release timeout.
func (cfg *config) sessionConfig(km *keymap.Map) *polling.Config {
	pc := polling.DefaultConfig()
	pc.PollInterval = cfg.pollInterval
	if km != nil && km.ReleaseTimeout > 0 {
		pc.ReleaseTimeout = km.ReleaseTimeout
	}
	return pc
}

func loadKeymap(path string) (*keymap.Map, error) {
	if path == "" {
		return nil, nil
	}
	km, err := keymap.LoadFile(path)
	if err != nil {
		return nil, err
	}
	ps2kbd.Debugf("key map %s: %d codes", path, km.Len())
	return km, nil
}

// runSource feeds session events from the configured source until ctx ends.
func runSource(ctx context.Context, cfg *config, km *keymap.Map, events chan<- polling.Event) error {
	if cfg.source == stdinSource {
		return runStdin(ctx, cfg.stdin, km, events)
	}

	open := func() (*uart.Source, error) {
		return uart.Open(&uart.Config{
			PortName: cfg.source,
			BaudRate: cfg.baud,
			Keymap:   km,
		})
	}
	return uart.RunWithReconnect(ctx, open, events, nil)
}

// runStdin reads events from in. A blocked read on stdin cannot be
// interrupted, so in is copied through a pipe that Close can break.
func runStdin(ctx context.Context, in io.Reader, km *keymap.Map, events chan<- polling.Event) error {
	if in == nil {
		in = os.Stdin
	}
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, in)
		_ = pw.CloseWithError(err)
	}()

	src := uart.NewSource(pr, "stdin", km, 0)
	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	err := src.Run(ctx, events)
	switch {
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, io.EOF):
		return errSourceEnded
	default:
		return err
	}
}

func listSerialPorts() error {
	ports, err := uart.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		_, _ = fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		_, _ = fmt.Println(p)
	}
	return nil
}

func run(ctx context.Context, cfg *config) error {
	if cfg.listPorts {
		return listSerialPorts()
	}

	if cfg.sessionLog {
		path, err := ps2kbd.InitSessionLog(cfg.logDir)
		if err != nil {
			return err
		}
		_, _ = fmt.Printf("Session log: %s\n", path)
		defer func() { _ = ps2kbd.CloseSessionLog() }()
	}

	if err := lockMemory(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: could not lock memory, bit timing may suffer: %v\n", err)
	}

	km, err := loadKeymap(cfg.keymapPath)
	if err != nil {
		return err
	}

	lines, err := gpio.Open(gpio.Config{ClockPin: cfg.clockPin, DataPin: cfg.dataPin, Float: cfg.floatPins})
	if err != nil {
		return fmt.Errorf("failed to open GPIO: %w", err)
	}
	defer func() {
		if err := lines.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to release GPIO: %v\n", err)
		}
	}()

	kb, err := ps2kbd.New(lines.Clock(), lines.Data())
	if err != nil {
		return err
	}
	ps2kbd.Debugf("%s, bit clock %s", lines, kb.Bus().Timings().ClockFrequency())

	if err := kb.Begin(); err != nil {
		return fmt.Errorf("failed to announce keyboard: %w", err)
	}

	session := polling.NewSession(kb, cfg.sessionConfig(km))
	defer func() { _ = session.Close() }()

	_, _ = fmt.Printf("PS/2 keyboard on %s, events from %s. Press Ctrl+C to stop...\n", lines, cfg.source)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runSource(gctx, cfg, km, session.Events())
	})
	g.Go(func() error {
		return session.Run(gctx)
	})
	err = g.Wait()

	stats := session.GetStats()
	ps2kbd.Debugf("session: %d presses, %d releases, %d dropped, %d host commands",
		stats.Presses, stats.Releases, stats.Dropped, stats.Commands)
	return err
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()
	if err := cfg.validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, errSourceEnded) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
