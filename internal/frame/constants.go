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

// Package frame holds the PS/2 11-bit frame layout shared by the line
// transport and the simulated host.
package frame

// Frame layout. Bits are numbered in wire order, start bit first.
const (
	StartBit  = 0  // position of the start bit (always 0)
	FirstData = 1  // position of data bit 0 (LSB)
	DataBits  = 8  // number of data bits
	ParityPos = 9  // position of the odd parity bit
	StopPos   = 10 // position of the stop bit (always 1)
	Bits      = 11 // total bits in a frame
)
