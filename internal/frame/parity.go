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

package frame

import (
	"errors"
	"math/bits"
)

// Frame decode errors
var (
	ErrStartBit = errors.New("start bit not low")
	ErrStopBit  = errors.New("stop bit not high")
	ErrParity   = errors.New("parity mismatch")
)

// ParityBit returns the odd parity bit for b, i.e. the bit that makes the
// total number of ones across the data bits and the parity bit odd.
func ParityBit(b byte) byte {
	return byte(bits.OnesCount8(b)&1) ^ 1
}

// Encode packs b into an 11-bit frame. Bit 0 of the result is the first bit
// on the wire.
func Encode(b byte) uint16 {
	f := uint16(b) << FirstData
	f |= uint16(ParityBit(b)) << ParityPos
	f |= 1 << StopPos
	return f
}

// Bit returns the bit at wire position pos of f.
func Bit(f uint16, pos int) byte {
	return byte(f>>pos) & 1
}

// Decode unpacks an 11-bit frame. The data byte is returned even when an
// error is reported so callers can log what arrived.
func Decode(f uint16) (byte, error) {
	b := byte(f >> FirstData)
	switch {
	case Bit(f, StartBit) != 0:
		return b, ErrStartBit
	case Bit(f, StopPos) != 1:
		return b, ErrStopBit
	case Bit(f, ParityPos) != ParityBit(b):
		return b, ErrParity
	}
	return b, nil
}
