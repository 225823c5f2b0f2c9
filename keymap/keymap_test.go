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

package keymap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ps2kbd "github.com/ZaparooProject/go-ps2kbd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
release_timeout: 150ms
keys:
  nec:0x20DF10EF: KEY_ENTER
  nec:0x20df40bf: up
  power: KEY_POWER
  print: KEY_PRINT_SCREEN
`

func TestLoad(t *testing.T) {
	t.Parallel()

	m, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, m.ReleaseTimeout)
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, []string{"nec:0x20df10ef", "nec:0x20df40bf", "power", "print"}, m.Codes())
}

func TestMap_Lookup(t *testing.T) {
	t.Parallel()

	m, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	tests := []struct {
		code   string
		want   ps2kbd.Keycode
		wantOK bool
	}{
		{code: "nec:0x20df10ef", want: ps2kbd.KeyEnter, wantOK: true},
		{code: "NEC:0x20DF10EF", want: ps2kbd.KeyEnter, wantOK: true},
		{code: "nec:0x20df40bf", want: ps2kbd.KeyUpArrow, wantOK: true},
		{code: "power", want: ps2kbd.KeyPower, wantOK: true},
		{code: "print", want: ps2kbd.KeyPrintScreen, wantOK: true},
		{code: "KEY_ESC", want: ps2kbd.KeyEsc, wantOK: true},
		{code: "f5", want: ps2kbd.KeyF5, wantOK: true},
		{code: "nec:0xdeadbeef", want: ps2kbd.KeyNone, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()

			got, ok := m.Lookup(tt.code)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMap_NilLookup(t *testing.T) {
	t.Parallel()

	var m *Map
	key, ok := m.Lookup("KEY_A")
	assert.True(t, ok)
	assert.Equal(t, ps2kbd.KeyA, key)

	_, ok = m.Lookup("power-button")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
	assert.Nil(t, m.Codes())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "unknown key name", input: "keys:\n  power: KEY_WARP_DRIVE\n"},
		{name: "unknown field", input: "repeat: true\n"},
		{name: "bad duration", input: "release_timeout: soon\n"},
		{name: "negative duration", input: "release_timeout: -5ms\n"},
		{name: "duplicate after folding case", input: "keys:\n  NEC:0x01: KEY_A\n  nec:0x01: KEY_B\n"},
		{name: "not a mapping", input: "- KEY_A\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	t.Parallel()

	m, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, m.Len())
	assert.Zero(t, m.ReleaseTimeout)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "remote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
