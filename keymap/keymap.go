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

// Package keymap loads the YAML table that translates remote control codes
// into PS/2 keycodes.
//
//	release_timeout: 120ms
//	keys:
//	  nec:0x20df10ef: KEY_ENTER
//	  power: KEY_POWER
package keymap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout
type file struct {
	Keys           map[string]string `yaml:"keys"`
	ReleaseTimeout time.Duration     `yaml:"release_timeout,omitempty"`
}

// Map translates event codes to keycodes. The zero value and nil map only
// resolve key names.
type Map struct {
	keys map[string]ps2kbd.Keycode
	// ReleaseTimeout overrides the polling release timeout when non-zero
	ReleaseTimeout time.Duration
}

// Load parses a key map. Every key name must resolve.
func Load(r io.Reader) (*Map, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse key map: %w", err)
	}
	if f.ReleaseTimeout < 0 {
		return nil, fmt.Errorf("release_timeout must not be negative, got %v", f.ReleaseTimeout)
	}

	m := &Map{
		keys:           make(map[string]ps2kbd.Keycode, len(f.Keys)),
		ReleaseTimeout: f.ReleaseTimeout,
	}
	for code, name := range f.Keys {
		key, err := ps2kbd.ParseKeycode(name)
		if err != nil {
			return nil, fmt.Errorf("key map entry %q: %w", code, err)
		}
		norm := normalize(code)
		if _, dup := m.keys[norm]; dup {
			return nil, fmt.Errorf("key map entry %q: duplicate code", code)
		}
		m.keys[norm] = key
	}
	return m, nil
}

// LoadFile reads a key map from path
func LoadFile(path string) (*Map, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("open key map: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Lookup resolves code through the table, then as a key name.
func (m *Map) Lookup(code string) (ps2kbd.Keycode, bool) {
	if m != nil {
		if key, ok := m.keys[normalize(code)]; ok {
			return key, true
		}
	}
	key, err := ps2kbd.ParseKeycode(code)
	if err != nil {
		return ps2kbd.KeyNone, false
	}
	return key, true
}

// Len returns the number of mapped codes
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Codes returns the mapped codes in sorted order
func (m *Map) Codes() []string {
	if m == nil {
		return nil
	}
	codes := make([]string, 0, len(m.keys))
	for code := range m.keys {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// normalize makes hex remote codes case-insensitive
func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
