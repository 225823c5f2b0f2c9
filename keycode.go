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
	"fmt"
	"slices"
	"strings"
)

// Keycode identifies a logical key. The low byte is the set 2 scan code; the
// high byte is 0x00 for one-byte codes, 0xE0 for extended codes and 0xFF for
// keys with their own hardcoded sequences.
type Keycode uint16

// KeyNone marks an empty slot. It is never sent.
const KeyNone Keycode = 0x0000

// Prefix bytes carried in the high byte of a Keycode
const (
	prefixNone     = 0x00
	prefixExtended = 0xE0
	prefixSpecial  = 0xFF
)

// Break code sent before the scan code of a released key
const breakCode = 0xF0

//nolint:revive // names follow the keyboard legend
const (
	// Letters
	KeyA Keycode = 0x001C
	KeyB Keycode = 0x0032
	KeyC Keycode = 0x0021
	KeyD Keycode = 0x0023
	KeyE Keycode = 0x0024
	KeyF Keycode = 0x002B
	KeyG Keycode = 0x0034
	KeyH Keycode = 0x0033
	KeyI Keycode = 0x0043
	KeyJ Keycode = 0x003B
	KeyK Keycode = 0x0042
	KeyL Keycode = 0x004B
	KeyM Keycode = 0x003A
	KeyN Keycode = 0x0031
	KeyO Keycode = 0x0044
	KeyP Keycode = 0x004D
	KeyQ Keycode = 0x0015
	KeyR Keycode = 0x002D
	KeyS Keycode = 0x001B
	KeyT Keycode = 0x002C
	KeyU Keycode = 0x003C
	KeyV Keycode = 0x002A
	KeyW Keycode = 0x001D
	KeyX Keycode = 0x0022
	KeyY Keycode = 0x0035
	KeyZ Keycode = 0x001A

	// Digits
	Key1 Keycode = 0x0016
	Key2 Keycode = 0x001E
	Key3 Keycode = 0x0026
	Key4 Keycode = 0x0025
	Key5 Keycode = 0x002E
	Key6 Keycode = 0x0036
	Key7 Keycode = 0x003D
	Key8 Keycode = 0x003E
	Key9 Keycode = 0x0046
	Key0 Keycode = 0x0045

	// Editing and punctuation
	KeyEnter      Keycode = 0x005A
	KeyReturn             = KeyEnter
	KeyEsc        Keycode = 0x0076
	KeyBackspace  Keycode = 0x0066
	KeyTab        Keycode = 0x000D
	KeySpace      Keycode = 0x0029
	KeyMinus      Keycode = 0x004E
	KeyEqual      Keycode = 0x0055
	KeyLeftBrace  Keycode = 0x0054
	KeyRightBrace Keycode = 0x005B
	KeyBackslash  Keycode = 0x005D
	KeySemicolon  Keycode = 0x004C
	KeyQuote      Keycode = 0x0052
	KeyTilde      Keycode = 0x000E
	KeyComma      Keycode = 0x0041
	KeyPeriod     Keycode = 0x0049
	KeySlash      Keycode = 0x004A
	KeyCapsLock   Keycode = 0x0058

	// Function keys
	KeyF1  Keycode = 0x0005
	KeyF2  Keycode = 0x0006
	KeyF3  Keycode = 0x0004
	KeyF4  Keycode = 0x000C
	KeyF5  Keycode = 0x0003
	KeyF6  Keycode = 0x000B
	KeyF7  Keycode = 0x0083
	KeyF8  Keycode = 0x000A
	KeyF9  Keycode = 0x0001
	KeyF10 Keycode = 0x0009
	KeyF11 Keycode = 0x0078
	KeyF12 Keycode = 0x0007

	// Navigation (extended)
	KeyInsert     Keycode = 0xE070
	KeyHome       Keycode = 0xE06C
	KeyPageUp     Keycode = 0xE07D
	KeyDelete     Keycode = 0xE071
	KeyEnd        Keycode = 0xE069
	KeyPageDown   Keycode = 0xE07A
	KeyRightArrow Keycode = 0xE074
	KeyLeftArrow  Keycode = 0xE06B
	KeyDownArrow  Keycode = 0xE072
	KeyUpArrow    Keycode = 0xE075
	KeyRight              = KeyRightArrow
	KeyLeft               = KeyLeftArrow
	KeyDown               = KeyDownArrow
	KeyUp                 = KeyUpArrow

	// Keypad
	KeyNumLock     Keycode = 0x0077
	KeypadDivide   Keycode = 0xE04A
	KeypadMultiply Keycode = 0x007C
	KeypadSubtract Keycode = 0x007B
	KeypadAdd      Keycode = 0x0079
	KeypadEnter    Keycode = 0xE05A
	Keypad1        Keycode = 0x0069
	Keypad2        Keycode = 0x0072
	Keypad3        Keycode = 0x007A
	Keypad4        Keycode = 0x006B
	Keypad5        Keycode = 0x0073
	Keypad6        Keycode = 0x0074
	Keypad7        Keycode = 0x006C
	Keypad8        Keycode = 0x0075
	Keypad9        Keycode = 0x007D
	Keypad0        Keycode = 0x0070
	KeypadDot      Keycode = 0x0071

	// System
	KeyApplication Keycode = 0xE02F
	KeyMenu                = KeyApplication
	KeyPower       Keycode = 0xE037

	// Modifiers
	KeyLeftCtrl     Keycode = 0x0014
	KeyLeftShift    Keycode = 0x0012
	KeyLeftAlt      Keycode = 0x0011
	KeyLeftGUI      Keycode = 0xE01F
	KeyLeftWindows          = KeyLeftGUI
	KeyRightCtrl    Keycode = 0xE014
	KeyRightShift   Keycode = 0x0059
	KeyRightAlt     Keycode = 0xE011
	KeyRightGUI     Keycode = 0xE027
	KeyRightWindows         = KeyRightGUI

	// Combined "<", ">" and "|" on ISO layouts, absent on US keyboards
	KeyNonUS Keycode = 0x0061

	// Keys with hardcoded sequences
	KeyPrintScreen Keycode = 0xFF01
	KeyPause       Keycode = 0xFF02
)

// keyNames lists every named key. The first name for a code is its
// canonical name.
var keyNames = []struct {
	name string
	code Keycode
}{
	{"KEY_NONE", KeyNone},
	{"KEY_A", KeyA},
	{"KEY_B", KeyB},
	{"KEY_C", KeyC},
	{"KEY_D", KeyD},
	{"KEY_E", KeyE},
	{"KEY_F", KeyF},
	{"KEY_G", KeyG},
	{"KEY_H", KeyH},
	{"KEY_I", KeyI},
	{"KEY_J", KeyJ},
	{"KEY_K", KeyK},
	{"KEY_L", KeyL},
	{"KEY_M", KeyM},
	{"KEY_N", KeyN},
	{"KEY_O", KeyO},
	{"KEY_P", KeyP},
	{"KEY_Q", KeyQ},
	{"KEY_R", KeyR},
	{"KEY_S", KeyS},
	{"KEY_T", KeyT},
	{"KEY_U", KeyU},
	{"KEY_V", KeyV},
	{"KEY_W", KeyW},
	{"KEY_X", KeyX},
	{"KEY_Y", KeyY},
	{"KEY_Z", KeyZ},
	{"KEY_1", Key1},
	{"KEY_2", Key2},
	{"KEY_3", Key3},
	{"KEY_4", Key4},
	{"KEY_5", Key5},
	{"KEY_6", Key6},
	{"KEY_7", Key7},
	{"KEY_8", Key8},
	{"KEY_9", Key9},
	{"KEY_0", Key0},
	{"KEY_ENTER", KeyEnter},
	{"KEY_RETURN", KeyReturn},
	{"KEY_ESC", KeyEsc},
	{"KEY_BACKSPACE", KeyBackspace},
	{"KEY_TAB", KeyTab},
	{"KEY_SPACE", KeySpace},
	{"KEY_MINUS", KeyMinus},
	{"KEY_EQUAL", KeyEqual},
	{"KEY_LEFT_BRACE", KeyLeftBrace},
	{"KEY_RIGHT_BRACE", KeyRightBrace},
	{"KEY_BACKSLASH", KeyBackslash},
	{"KEY_SEMICOLON", KeySemicolon},
	{"KEY_QUOTE", KeyQuote},
	{"KEY_TILDE", KeyTilde},
	{"KEY_COMMA", KeyComma},
	{"KEY_PERIOD", KeyPeriod},
	{"KEY_SLASH", KeySlash},
	{"KEY_CAPS_LOCK", KeyCapsLock},
	{"KEY_F1", KeyF1},
	{"KEY_F2", KeyF2},
	{"KEY_F3", KeyF3},
	{"KEY_F4", KeyF4},
	{"KEY_F5", KeyF5},
	{"KEY_F6", KeyF6},
	{"KEY_F7", KeyF7},
	{"KEY_F8", KeyF8},
	{"KEY_F9", KeyF9},
	{"KEY_F10", KeyF10},
	{"KEY_F11", KeyF11},
	{"KEY_F12", KeyF12},
	{"KEY_INSERT", KeyInsert},
	{"KEY_HOME", KeyHome},
	{"KEY_PAGE_UP", KeyPageUp},
	{"KEY_DELETE", KeyDelete},
	{"KEY_END", KeyEnd},
	{"KEY_PAGE_DOWN", KeyPageDown},
	{"KEY_RIGHT_ARROW", KeyRightArrow},
	{"KEY_LEFT_ARROW", KeyLeftArrow},
	{"KEY_DOWN_ARROW", KeyDownArrow},
	{"KEY_UP_ARROW", KeyUpArrow},
	{"KEY_RIGHT", KeyRight},
	{"KEY_LEFT", KeyLeft},
	{"KEY_DOWN", KeyDown},
	{"KEY_UP", KeyUp},
	{"KEY_NUM_LOCK", KeyNumLock},
	{"KEYPAD_DIVIDE", KeypadDivide},
	{"KEYPAD_MULTIPLY", KeypadMultiply},
	{"KEYPAD_SUBTRACT", KeypadSubtract},
	{"KEYPAD_ADD", KeypadAdd},
	{"KEYPAD_ENTER", KeypadEnter},
	{"KEYPAD_1", Keypad1},
	{"KEYPAD_2", Keypad2},
	{"KEYPAD_3", Keypad3},
	{"KEYPAD_4", Keypad4},
	{"KEYPAD_5", Keypad5},
	{"KEYPAD_6", Keypad6},
	{"KEYPAD_7", Keypad7},
	{"KEYPAD_8", Keypad8},
	{"KEYPAD_9", Keypad9},
	{"KEYPAD_0", Keypad0},
	{"KEYPAD_DOT", KeypadDot},
	{"KEY_APPLICATION", KeyApplication},
	{"KEY_MENU", KeyMenu},
	{"KEY_POWER", KeyPower},
	{"KEY_LEFT_CTRL", KeyLeftCtrl},
	{"KEY_LEFT_SHIFT", KeyLeftShift},
	{"KEY_LEFT_ALT", KeyLeftAlt},
	{"KEY_LEFT_GUI", KeyLeftGUI},
	{"KEY_LEFT_WINDOWS", KeyLeftWindows},
	{"KEY_RIGHT_CTRL", KeyRightCtrl},
	{"KEY_RIGHT_SHIFT", KeyRightShift},
	{"KEY_RIGHT_ALT", KeyRightAlt},
	{"KEY_RIGHT_GUI", KeyRightGUI},
	{"KEY_RIGHT_WINDOWS", KeyRightWindows},
	{"KEY_NON_US", KeyNonUS},
	{"KEY_PRINT_SCREEN", KeyPrintScreen},
	{"KEY_PAUSE", KeyPause},
}

var (
	codeByName = make(map[string]Keycode, len(keyNames))
	nameByCode = make(map[Keycode]string, len(keyNames))
)

func init() {
	for _, kn := range keyNames {
		codeByName[kn.name] = kn.code
		if _, ok := nameByCode[kn.code]; !ok {
			nameByCode[kn.code] = kn.name
		}
	}
}

// ParseKeycode resolves a key name such as "KEY_A" or "keypad_enter".
// The "KEY_" prefix may be omitted ("a", "enter").
func ParseKeycode(name string) (Keycode, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if code, ok := codeByName[n]; ok {
		return code, nil
	}
	if code, ok := codeByName["KEY_"+n]; ok {
		return code, nil
	}
	return KeyNone, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// String returns the canonical key name, or the hex value for unnamed codes
func (k Keycode) String() string {
	if name, ok := nameByCode[k]; ok {
		return name
	}
	return fmt.Sprintf("Keycode(0x%04X)", uint16(k))
}

// Scancode is the wire encoding of a key. It is either a SimpleScancode or a
// SpecialScancode.
type Scancode interface {
	// Make returns the bytes sent when the key goes down
	Make() []byte
	// Break returns the bytes sent when the key goes up. May be empty.
	Break() []byte
}

// SimpleScancode is a scan code with an optional 0xE0 prefix.
type SimpleScancode struct {
	Prefix byte // 0 for none
	Code   byte
}

// Make implements Scancode
func (s SimpleScancode) Make() []byte {
	if s.Prefix != prefixNone {
		return []byte{s.Prefix, s.Code}
	}
	return []byte{s.Code}
}

// Break implements Scancode
func (s SimpleScancode) Break() []byte {
	if s.Prefix != prefixNone {
		return []byte{s.Prefix, breakCode, s.Code}
	}
	return []byte{breakCode, s.Code}
}

// SpecialScancode is a key whose make and break sequences do not follow the
// prefix/code pattern.
type SpecialScancode struct {
	PressSeq   []byte
	ReleaseSeq []byte
}

// Make implements Scancode. The result is a copy.
func (s SpecialScancode) Make() []byte {
	return slices.Clone(s.PressSeq)
}

// Break implements Scancode. The result is a copy.
func (s SpecialScancode) Break() []byte {
	return slices.Clone(s.ReleaseSeq)
}

// specialScancodes maps the low byte of 0xFF-prefixed keycodes to their
// sequences. Pause has no break sequence.
var specialScancodes = map[byte]SpecialScancode{
	0x01: { // Print Screen
		PressSeq:   []byte{0xE0, 0x12, 0xE0, 0x7C},
		ReleaseSeq: []byte{0xE0, 0xF0, 0x7C, 0xE0, 0xF0, 0x12},
	},
	0x02: { // Pause
		PressSeq: []byte{0xE1, 0x14, 0x77, 0xE1, 0xF0, 0x14, 0xF0, 0x77},
	},
}

// Scancode returns the wire encoding of k. ok is false for KeyNone, for
// unknown special keys and for prefixes other than none and 0xE0.
func (k Keycode) Scancode() (sc Scancode, ok bool) {
	prefix, code := byte(k>>8), byte(k)
	switch prefix {
	case prefixNone:
		if k == KeyNone {
			return nil, false
		}
		return SimpleScancode{Code: code}, true
	case prefixExtended:
		return SimpleScancode{Prefix: prefix, Code: code}, true
	case prefixSpecial:
		special, found := specialScancodes[code]
		if !found {
			return nil, false
		}
		return special, true
	default:
		return nil, false
	}
}
