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

// MaxKeys is the number of keys that can be held down at the same time.
const MaxKeys = 6

// registry is the fixed table of currently pressed keys. Empty slots hold
// KeyNone and a key occupies at most one slot.
type registry struct {
	slots [MaxKeys]Keycode
}

// indexOf returns the slot holding k, or -1.
func (r *registry) indexOf(k Keycode) int {
	for i, slot := range r.slots {
		if slot == k {
			return i
		}
	}
	return -1
}

// free returns the lowest empty slot, or -1 when the table is full.
func (r *registry) free() int {
	return r.indexOf(KeyNone)
}

func (r *registry) set(i int, k Keycode) {
	r.slots[i] = k
}

func (r *registry) clear(i int) {
	r.slots[i] = KeyNone
}

// keys returns the pressed keys in slot order.
func (r *registry) keys() []Keycode {
	out := make([]Keycode, 0, MaxKeys)
	for _, slot := range r.slots {
		if slot != KeyNone {
			out = append(out, slot)
		}
	}
	return out
}
