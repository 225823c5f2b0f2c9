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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeycode_Scancode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		wantMake  []byte
		wantBreak []byte
		key       Keycode
	}{
		{name: "plain letter", key: KeyA, wantMake: []byte{0x1C}, wantBreak: []byte{0xF0, 0x1C}},
		{name: "function key", key: KeyF7, wantMake: []byte{0x83}, wantBreak: []byte{0xF0, 0x83}},
		{name: "modifier", key: KeyLeftShift, wantMake: []byte{0x12}, wantBreak: []byte{0xF0, 0x12}},
		{
			name:      "extended arrow",
			key:       KeyRightArrow,
			wantMake:  []byte{0xE0, 0x74},
			wantBreak: []byte{0xE0, 0xF0, 0x74},
		},
		{
			name:      "extended keypad enter",
			key:       KeypadEnter,
			wantMake:  []byte{0xE0, 0x5A},
			wantBreak: []byte{0xE0, 0xF0, 0x5A},
		},
		{
			name:      "print screen",
			key:       KeyPrintScreen,
			wantMake:  []byte{0xE0, 0x12, 0xE0, 0x7C},
			wantBreak: []byte{0xE0, 0xF0, 0x7C, 0xE0, 0xF0, 0x12},
		},
		{
			name:     "pause has no break",
			key:      KeyPause,
			wantMake: []byte{0xE1, 0x14, 0x77, 0xE1, 0xF0, 0x14, 0xF0, 0x77},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sc, ok := tt.key.Scancode()
			require.True(t, ok)
			assert.Equal(t, tt.wantMake, sc.Make())
			assert.Equal(t, tt.wantBreak, sc.Break())
		})
	}
}

func TestKeycode_ScancodeVariants(t *testing.T) {
	t.Parallel()

	sc, ok := KeyUpArrow.Scancode()
	require.True(t, ok)
	assert.Equal(t, SimpleScancode{Prefix: 0xE0, Code: 0x75}, sc)

	sc, ok = KeyPrintScreen.Scancode()
	require.True(t, ok)
	assert.IsType(t, SpecialScancode{}, sc)
}

func TestSpecialScancode_ReturnsCopies(t *testing.T) {
	t.Parallel()

	sc, ok := KeyPrintScreen.Scancode()
	require.True(t, ok)
	seq := sc.Make()
	seq[0] = 0x00
	brk := sc.Break()
	brk[0] = 0x00

	again, ok := KeyPrintScreen.Scancode()
	require.True(t, ok)
	assert.Equal(t, []byte{0xE0, 0x12, 0xE0, 0x7C}, again.Make())
	assert.Equal(t, []byte{0xE0, 0xF0, 0x7C, 0xE0, 0xF0, 0x12}, again.Break())
}

func TestKeycode_ScancodeRejected(t *testing.T) {
	t.Parallel()

	for _, key := range []Keycode{KeyNone, 0xFF03, 0xFF00, 0xE114, 0x1234} {
		_, ok := key.Scancode()
		assert.False(t, ok, "%v", key)
	}
}

func TestParseKeycode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Keycode
	}{
		{name: "KEY_A", want: KeyA},
		{name: "key_a", want: KeyA},
		{name: "a", want: KeyA},
		{name: " KEY_ENTER ", want: KeyEnter},
		{name: "KEY_RETURN", want: KeyEnter},
		{name: "right", want: KeyRightArrow},
		{name: "KEYPAD_ENTER", want: KeypadEnter},
		{name: "KEY_PRINT_SCREEN", want: KeyPrintScreen},
		{name: "pause", want: KeyPause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseKeycode(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeycode_Unknown(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "KEY_", "KEY_BOGUS", "F13"} {
		got, err := ParseKeycode(name)
		require.ErrorIs(t, err, ErrUnknownKey, name)
		assert.Equal(t, KeyNone, got)
	}
}

func TestKeycode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "KEY_A", KeyA.String())
	assert.Equal(t, "KEY_ENTER", KeyReturn.String(), "aliases print the canonical name")
	assert.Equal(t, "KEY_RIGHT_ARROW", KeyRight.String())
	assert.Equal(t, "KEY_NONE", KeyNone.String())
	assert.Equal(t, "Keycode(0xFF09)", Keycode(0xFF09).String())
}

func TestKeyNames_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, kn := range keyNames {
		got, err := ParseKeycode(kn.code.String())
		require.NoError(t, err, kn.name)
		assert.Equal(t, kn.code, got, kn.name)
		if kn.code != KeyNone {
			_, ok := kn.code.Scancode()
			assert.True(t, ok, "%s has no scan code", kn.name)
		}
	}
}
